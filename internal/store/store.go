// Package store persists the verified, ranked pharmacy collection and the
// re-verification run history.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rx-intel/internal/model"
)

// DefaultListLimit caps ListPharmacies when no limit is given.
const DefaultListLimit = 500

// PharmacyFilter selects rows for ListPharmacies.
type PharmacyFilter struct {
	State string `json:"state,omitempty"`
	// AfterNPI is the last NPI of the previous page. With ByScore the page
	// continues after that record's position in score order.
	AfterNPI     string `json:"after_npi,omitempty"`
	VerifiedOnly bool   `json:"verified_only,omitempty"`
	// ByScore orders by composite score descending instead of NPI.
	ByScore bool `json:"by_score,omitempty"`
	Limit   int  `json:"limit,omitempty"`
}

func (f PharmacyFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// StateSummary aggregates the collection for one state.
type StateSummary struct {
	State    string                 `json:"state"`
	Total    int                    `json:"total"`
	Verified int                    `json:"verified"`
	Grades   map[model.Grade]int    `json:"grades"`
	Top      []model.ScoredPharmacy `json:"top"`
}

// Store defines the persistence interface for scored pharmacies.
type Store interface {
	// Pharmacies
	UpsertPharmacies(ctx context.Context, rows []model.ScoredPharmacy) (int64, error)
	GetPharmacy(ctx context.Context, npi string) (*model.ScoredPharmacy, error)
	ListPharmacies(ctx context.Context, filter PharmacyFilter) ([]model.ScoredPharmacy, error)
	StateSummary(ctx context.Context, state string, top int) (*StateSummary, error)

	// Re-verification runs
	CreateBatchRun(ctx context.Context, startAfter string) (*model.BatchRun, error)
	UpdateBatchRun(ctx context.Context, run model.BatchRun) error
	LatestBatchRun(ctx context.Context) (*model.BatchRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// pharmacyColumns is the column order shared by both backends.
var pharmacyColumns = []string{
	"npi", "pharmacy_name", "state", "zip", "active_status",
	"composite_score", "grade", "data", "updated_at",
}

func encodePharmacy(sp model.ScoredPharmacy) ([]byte, error) {
	data, err := json.Marshal(sp)
	if err != nil {
		return nil, eris.Wrapf(err, "store: marshal pharmacy %s", sp.Pharmacy.NPI)
	}
	return data, nil
}

func decodePharmacy(data []byte) (*model.ScoredPharmacy, error) {
	var sp model.ScoredPharmacy
	if err := json.Unmarshal(data, &sp); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal pharmacy")
	}
	return &sp, nil
}

func newSummary(state string) *StateSummary {
	return &StateSummary{
		State:  state,
		Grades: map[model.Grade]int{model.GradeA: 0, model.GradeB: 0, model.GradeC: 0, model.GradeD: 0},
		Top:    []model.ScoredPharmacy{},
	}
}

func (s *StateSummary) add(grade string, total, verified int64) {
	s.Total += int(total)
	s.Verified += int(verified)
	s.Grades[model.Grade(grade)] += int(total)
}
