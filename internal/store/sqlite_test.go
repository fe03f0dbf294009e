package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rx-intel/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func scored(npi, state string, composite float64, grade model.Grade, status model.ActiveStatus) model.ScoredPharmacy {
	return model.ScoredPharmacy{
		Pharmacy: model.Pharmacy{
			NPI:    npi,
			Name:   "Pharmacy " + npi,
			State:  state,
			ZIP:    "78701",
			Status: status,
		},
		Attributes: model.EnrichmentAttributes{
			DiabetesPct: model.Float64Ptr(12.5),
			Unknown:     []string{"median_income"},
		},
		Score: model.ScoreBreakdown{
			Composite: composite,
			Grade:     grade,
			Segment:   model.SegmentGLP1,
		},
		Estimate:  model.FinancialEstimate{Mode: model.ModeBenchmark, MonthlyLoss: 3700, IsEstimate: true},
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func seed(t *testing.T, st Store) {
	t.Helper()
	rows := []model.ScoredPharmacy{
		scored("1234567893", "TX", 81.5, model.GradeA, model.StatusActive),
		scored("1003000126", "TX", 55.0, model.GradeC, model.StatusUnverified),
		scored("1245319599", "TX", 67.2, model.GradeB, model.StatusActive),
		scored("1000000004", "OK", 42.0, model.GradeD, model.StatusInactive),
	}
	n, err := st.UpsertPharmacies(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestSQLite_UpsertAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seed(t, st)

	got, err := st.GetPharmacy(ctx, "1234567893")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Pharmacy 1234567893", got.Pharmacy.Name)
	assert.Equal(t, model.StatusActive, got.Pharmacy.Status)
	assert.Equal(t, model.GradeA, got.Score.Grade)
	assert.Equal(t, 12.5, *got.Attributes.DiabetesPct)
	assert.Equal(t, []string{"median_income"}, got.Attributes.Unknown)
	assert.True(t, got.Estimate.IsEstimate)
	assert.True(t, got.UpdatedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestSQLite_GetPharmacy_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetPharmacy(context.Background(), "1111111112")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Upsert_Overwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seed(t, st)

	updated := scored("1003000126", "TX", 72.0, model.GradeB, model.StatusActive)
	_, err := st.UpsertPharmacies(ctx, []model.ScoredPharmacy{updated})
	require.NoError(t, err)

	got, err := st.GetPharmacy(ctx, "1003000126")
	require.NoError(t, err)
	assert.Equal(t, model.GradeB, got.Score.Grade)
	assert.Equal(t, model.StatusActive, got.Pharmacy.Status)

	all, err := st.ListPharmacies(ctx, PharmacyFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestSQLite_Upsert_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	n, err := st.UpsertPharmacies(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_ListPharmacies(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seed(t, st)

	npis := func(rows []model.ScoredPharmacy) []string {
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = r.Pharmacy.NPI
		}
		return out
	}

	tests := []struct {
		name   string
		filter PharmacyFilter
		want   []string
	}{
		{"by npi", PharmacyFilter{}, []string{"1000000004", "1003000126", "1234567893", "1245319599"}},
		{"cursor", PharmacyFilter{AfterNPI: "1003000126", Limit: 1}, []string{"1234567893"}},
		{"state by score", PharmacyFilter{State: "TX", ByScore: true}, []string{"1234567893", "1245319599", "1003000126"}},
		{"verified only", PharmacyFilter{VerifiedOnly: true}, []string{"1234567893", "1245319599"}},
		{"no match", PharmacyFilter{State: "WY"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := st.ListPharmacies(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, npis(rows))
		})
	}
}

func TestSQLite_ListPharmacies_PagesByScore(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seed(t, st)
	_, err := st.UpsertPharmacies(ctx, []model.ScoredPharmacy{
		scored("1100000009", "TX", 67.2, model.GradeB, model.StatusActive),
	})
	require.NoError(t, err)

	var got []string
	filter := PharmacyFilter{ByScore: true, Limit: 2}
	for {
		page, err := st.ListPharmacies(ctx, filter)
		require.NoError(t, err)
		for _, r := range page {
			got = append(got, r.Pharmacy.NPI)
		}
		if len(page) < filter.Limit {
			break
		}
		filter.AfterNPI = page[len(page)-1].Pharmacy.NPI
	}

	assert.Equal(t, []string{"1234567893", "1100000009", "1245319599", "1003000126", "1000000004"}, got)
}

func TestSQLite_StateSummary(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seed(t, st)

	sum, err := st.StateSummary(ctx, "TX", 2)
	require.NoError(t, err)
	assert.Equal(t, "TX", sum.State)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.Verified)
	assert.Equal(t, map[model.Grade]int{model.GradeA: 1, model.GradeB: 1, model.GradeC: 1, model.GradeD: 0}, sum.Grades)
	require.Len(t, sum.Top, 2)
	assert.Equal(t, "1234567893", sum.Top[0].Pharmacy.NPI)
	assert.Equal(t, "1245319599", sum.Top[1].Pharmacy.NPI)

	empty, err := st.StateSummary(ctx, "WY", 5)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Empty(t, empty.Top)
}

func TestSQLite_BatchRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	latest, err := st.LatestBatchRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	run, err := st.CreateBatchRun(ctx, "1000000004")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.BatchRunning, run.Status)

	finished := time.Now().UTC()
	run.Status = model.BatchComplete
	run.LastNPI = "1245319599"
	run.Processed = 3
	run.Verified = 2
	run.Unverified = 1
	run.FinishedAt = &finished
	require.NoError(t, st.UpdateBatchRun(ctx, *run))

	latest, err = st.LatestBatchRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, run.ID, latest.ID)
	assert.Equal(t, model.BatchComplete, latest.Status)
	assert.Equal(t, "1000000004", latest.StartAfter)
	assert.Equal(t, "1245319599", latest.LastNPI)
	assert.Equal(t, int64(3), latest.Processed)
	assert.Equal(t, int64(1), latest.Unverified)
	require.NotNil(t, latest.FinishedAt)
}

func TestSQLite_UpdateBatchRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateBatchRun(context.Background(), model.BatchRun{ID: "missing", Status: model.BatchFailed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch run not found")
}
