package enrich

import (
	"strings"
	"time"

	"github.com/sells-group/rx-intel/internal/model"
)

// Verify reconciles a stored record with what the registry returned. A
// missing NPI or any disagreement on name, state or ZIP leaves the record
// unverified with the disagreements listed. The record is never dropped.
func Verify(p model.Pharmacy, rec model.RegistryRecord, now time.Time) model.Pharmacy {
	p.Mismatches = nil

	if !rec.Found {
		p.Status = model.StatusUnverified
		p.Mismatches = []string{"npi: not found in registry"}
		return p
	}

	if rec.Name != "" && !sameName(p.Name, rec.Name) {
		p.Mismatches = append(p.Mismatches, "name: registry has "+rec.Name)
	}
	if rec.State != "" {
		if st, ok := NormalizeState(rec.State); ok && st != p.State {
			p.Mismatches = append(p.Mismatches, "state: registry has "+st)
		}
	}
	if z := NormalizeZIP(rec.ZIP); z != "" && p.ZIP != "" && z != p.ZIP {
		p.Mismatches = append(p.Mismatches, "zip: registry has "+z)
	}

	if rec.LastUpdated != "" {
		p.OperatingStatus = OperatingStatusFor(rec.LastUpdated)
	}
	if p.OwnerName == "" && rec.OwnerName != "" {
		p.OwnerName = TitleCase(rec.OwnerName)
	}

	switch {
	case len(p.Mismatches) > 0:
		p.Status = model.StatusUnverified
	default:
		p.Status = RegistryStatus(rec.Status)
	}
	if p.Status != model.StatusUnverified {
		t := now.UTC()
		p.VerifiedAt = &t
	}
	return p
}

// sameName compares names ignoring case and punctuation. A stored trade
// name that contains the legal name, or the reverse, still matches.
func sameName(a, b string) bool {
	ca, cb := canonicalName(a), canonicalName(b)
	if ca == "" || cb == "" {
		return ca == cb
	}
	return ca == cb || strings.Contains(ca, cb) || strings.Contains(cb, ca)
}

var corporateSuffixes = map[string]bool{
	"INC": true, "LLC": true, "CORP": true, "CO": true, "LTD": true,
}

// canonicalName uppercases s, drops punctuation and trailing corporate
// suffix words, then joins the remaining words. Suffixes only match whole
// words, so "MEXICO" keeps its "CO".
func canonicalName(s string) string {
	words := strings.FieldsFunc(strings.ToUpper(s), func(r rune) bool {
		return r == ' ' || r == ',' || r == '-' || r == '/' || r == '&'
	})
	for i, w := range words {
		words[i] = strings.Map(func(r rune) rune {
			if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, w)
	}
	for len(words) > 0 {
		last := words[len(words)-1]
		if last != "" && !corporateSuffixes[last] {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.Join(words, "")
}
