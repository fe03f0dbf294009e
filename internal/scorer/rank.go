package scorer

import (
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/model"
)

// Distribution counts records per grade.
type Distribution map[model.Grade]int

// Rescore recomputes the breakdown of every row in place and returns the
// resulting grade distribution.
func (s *Scorer) Rescore(rows []model.ScoredPharmacy) Distribution {
	dist := Distribution{}
	lowConf := 0
	for i := range rows {
		rows[i].Score = s.Score(rows[i].Attributes)
		dist[rows[i].Score.Grade]++
		if len(rows[i].Score.LowConfidence()) > 0 {
			lowConf++
		}
	}

	zap.L().Info("scorer: bulk scoring complete",
		zap.Int("total", len(rows)),
		zap.Int("grade_a", dist[model.GradeA]),
		zap.Int("grade_b", dist[model.GradeB]),
		zap.Int("grade_c", dist[model.GradeC]),
		zap.Int("grade_d", dist[model.GradeD]),
		zap.Int("low_confidence", lowConf),
	)
	return dist
}

// Rank orders rows by composite score descending. Equal composites are
// ordered by NPI so the ranking is stable across runs.
func Rank(rows []model.ScoredPharmacy) {
	sort.SliceStable(rows, func(i, j int) bool {
		ci, cj := rows[i].Score.Composite, rows[j].Score.Composite
		if ci != cj {
			return ci > cj
		}
		return rows[i].Pharmacy.NPI < rows[j].Pharmacy.NPI
	})
}

// GradeDistribution counts rows per grade without rescoring.
func GradeDistribution(rows []model.ScoredPharmacy) Distribution {
	dist := Distribution{}
	for _, r := range rows {
		dist[r.Score.Grade]++
	}
	return dist
}
