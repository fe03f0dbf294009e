package batch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rx-intel/internal/config"
	"github.com/sells-group/rx-intel/internal/model"
	"github.com/sells-group/rx-intel/internal/store"
)

var fixedNow = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

// NPIs in store order.
var npis = []string{"1000000004", "1003000126", "1234567893", "1245319599", "1588667638"}

type stubRegistry struct {
	mu       sync.Mutex
	records  map[string]model.RegistryRecord
	errs     map[string]error
	calls    []string
	onLookup func(ctx context.Context, npi string) error
}

func (s *stubRegistry) Lookup(ctx context.Context, npi string) (model.RegistryRecord, error) {
	s.mu.Lock()
	s.calls = append(s.calls, npi)
	s.mu.Unlock()

	if s.onLookup != nil {
		if err := s.onLookup(ctx, npi); err != nil {
			return model.RegistryRecord{}, err
		}
	}
	if err, ok := s.errs[npi]; ok {
		return model.RegistryRecord{}, err
	}
	if rec, ok := s.records[npi]; ok {
		return rec, nil
	}
	return model.RegistryRecord{NPI: npi}, nil
}

func (s *stubRegistry) count(npi string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == npi {
			n++
		}
	}
	return n
}

func active(npi string) model.RegistryRecord {
	return model.RegistryRecord{
		NPI:         npi,
		Found:       true,
		Name:        "PHARMACY " + npi + " LLC",
		State:       "TX",
		ZIP:         "78701-1234",
		Status:      "A",
		LastUpdated: "2025-06-30",
	}
}

func newStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "batch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	rows := make([]model.ScoredPharmacy, 0, len(npis))
	for _, npi := range npis {
		rows = append(rows, model.ScoredPharmacy{
			Pharmacy: model.Pharmacy{
				NPI:    npi,
				Name:   "Pharmacy " + npi,
				State:  "TX",
				ZIP:    "78701",
				Status: model.StatusUnverified,
			},
			Score:     model.ScoreBreakdown{Composite: 61.5, Grade: model.GradeB, Segment: model.SegmentGLP1},
			UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	_, err = st.UpsertPharmacies(context.Background(), rows)
	require.NoError(t, err)
	return st
}

func newReverifier(st store.Store, reg *stubRegistry, concurrency, shard int) *Reverifier {
	return NewReverifier(st, reg, config.BatchConfig{Concurrency: concurrency, ShardSize: shard},
		WithClock(func() time.Time { return fixedNow }))
}

func TestRun_VerifiesCollection(t *testing.T) {
	st := newStore(t)
	mismatch := active(npis[2])
	mismatch.State = "OK"
	reg := &stubRegistry{
		records: map[string]model.RegistryRecord{
			npis[0]: active(npis[0]),
			npis[1]: active(npis[1]),
			npis[2]: mismatch,
			// npis[3] is not in the registry
		},
		errs: map[string]error{npis[4]: errors.New("registry unavailable")},
	}

	run, err := newReverifier(st, reg, 2, 2).Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, model.BatchComplete, run.Status)
	assert.Equal(t, int64(5), run.Processed)
	assert.Equal(t, int64(2), run.Verified)
	assert.Equal(t, int64(2), run.Unverified)
	assert.Equal(t, int64(1), run.Failed)
	assert.Equal(t, npis[4], run.LastNPI)
	require.NotNil(t, run.FinishedAt)

	ctx := context.Background()
	got, err := st.GetPharmacy(ctx, npis[0])
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, got.Pharmacy.Status)
	assert.Equal(t, model.OperatingActive, got.Pharmacy.OperatingStatus)
	require.NotNil(t, got.Pharmacy.VerifiedAt)
	assert.True(t, got.Pharmacy.VerifiedAt.Equal(fixedNow))
	assert.Equal(t, model.GradeB, got.Score.Grade, "verification leaves the score alone")

	got, err = st.GetPharmacy(ctx, npis[2])
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnverified, got.Pharmacy.Status)
	assert.Equal(t, []string{"state: registry has OK"}, got.Pharmacy.Mismatches)

	got, err = st.GetPharmacy(ctx, npis[3])
	require.NoError(t, err)
	assert.Equal(t, []string{"npi: not found in registry"}, got.Pharmacy.Mismatches)

	// A failed lookup leaves the stored record untouched.
	got, err = st.GetPharmacy(ctx, npis[4])
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))

	latest, err := st.LatestBatchRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, run.ID, latest.ID)
	assert.Equal(t, model.BatchComplete, latest.Status)
	assert.Equal(t, int64(5), latest.Processed)
}

func TestRun_StartAfterAndLimit(t *testing.T) {
	st := newStore(t)
	reg := &stubRegistry{}

	run, err := newReverifier(st, reg, 4, 10).Run(context.Background(), Options{StartAfter: npis[0], Limit: 2})
	require.NoError(t, err)

	assert.Equal(t, model.BatchComplete, run.Status)
	assert.Equal(t, npis[0], run.StartAfter)
	assert.Equal(t, int64(2), run.Processed)
	assert.Equal(t, npis[2], run.LastNPI)
	assert.Zero(t, reg.count(npis[0]))
	assert.Zero(t, reg.count(npis[3]))
}

func TestRun_CancelThenResume(t *testing.T) {
	st := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := &stubRegistry{
		onLookup: func(ctx context.Context, npi string) error {
			if npi == npis[2] {
				cancel()
				return ctx.Err()
			}
			return nil
		},
	}

	run, err := newReverifier(st, reg, 1, 2).Run(ctx, Options{})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, run)
	assert.Equal(t, model.BatchCanceled, run.Status)
	assert.Equal(t, int64(2), run.Processed)
	assert.Equal(t, npis[1], run.LastNPI)
	assert.Zero(t, reg.count(npis[3]), "no new lookups after cancel")

	reg.onLookup = nil
	resumed, err := newReverifier(st, reg, 2, 2).Run(context.Background(), Options{Resume: true})
	require.NoError(t, err)

	assert.Equal(t, model.BatchComplete, resumed.Status)
	assert.Equal(t, npis[1], resumed.StartAfter)
	assert.Equal(t, int64(3), resumed.Processed)
	assert.Equal(t, npis[4], resumed.LastNPI)
	assert.Equal(t, 1, reg.count(npis[0]))
	assert.Equal(t, 1, reg.count(npis[1]))
}

func TestRun_ResumeAfterCompleteStartsOver(t *testing.T) {
	st := newStore(t)
	reg := &stubRegistry{}
	r := newReverifier(st, reg, 2, 3)

	_, err := r.Run(context.Background(), Options{})
	require.NoError(t, err)

	again, err := r.Run(context.Background(), Options{Resume: true})
	require.NoError(t, err)
	assert.Empty(t, again.StartAfter)
	assert.Equal(t, int64(5), again.Processed)
	assert.Equal(t, 2, reg.count(npis[0]))
}

func TestRun_EmptyStore(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	run, err := newReverifier(st, &stubRegistry{}, 0, 0).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, model.BatchComplete, run.Status)
	assert.Zero(t, run.Processed)
	assert.Empty(t, run.LastNPI)
}
