package enrich

import (
	"github.com/sells-group/rx-intel/internal/model"
)

// Dedup keeps one record per physical location. Records are grouped by
// normalized street line and ZIP; records without a street line are kept
// as-is. The winner in each group is the active record, then the one with
// an owner, then the longer name, then the lowest NPI. Output order follows
// the first appearance of each location.
func Dedup(in []model.Pharmacy) (kept []model.Pharmacy, dropped int) {
	index := make(map[string]int, len(in))
	kept = make([]model.Pharmacy, 0, len(in))

	for _, p := range in {
		street := NormalizeStreet(p.Address1)
		if street == "" {
			kept = append(kept, p)
			continue
		}
		key := street + "|" + p.ZIP
		i, seen := index[key]
		if !seen {
			index[key] = len(kept)
			kept = append(kept, p)
			continue
		}
		dropped++
		if better(p, kept[i]) {
			kept[i] = p
		}
	}
	return kept, dropped
}

func better(a, b model.Pharmacy) bool {
	if aa, ba := a.Status == model.StatusActive, b.Status == model.StatusActive; aa != ba {
		return aa
	}
	if ao, bo := a.OwnerName != "", b.OwnerName != ""; ao != bo {
		return ao
	}
	if len(a.Name) != len(b.Name) {
		return len(a.Name) > len(b.Name)
	}
	return a.NPI < b.NPI
}
