package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rx-intel/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func pharmacyJSON(t *testing.T, sp model.ScoredPharmacy) []byte {
	t.Helper()
	data, err := json.Marshal(sp)
	require.NoError(t, err)
	return data
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS pharmacies`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPharmacies(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rows := []model.ScoredPharmacy{
		scored("1234567893", "TX", 81.5, model.GradeA, model.StatusActive),
		scored("1245319599", "TX", 67.2, model.GradeB, model.StatusActive),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_pharmacies"`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_pharmacies"}, pharmacyColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "pharmacies" .* ON CONFLICT \("npi"\) DO UPDATE SET "pharmacy_name" = EXCLUDED."pharmacy_name"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := s.UpsertPharmacies(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPharmacies_CopyFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_pharmacies"}, pharmacyColumns).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.UpsertPharmacies(context.Background(), []model.ScoredPharmacy{
		scored("1234567893", "TX", 81.5, model.GradeA, model.StatusActive),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: upsert pharmacies")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPharmacy(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	want := scored("1234567893", "TX", 81.5, model.GradeA, model.StatusActive)

	mock.ExpectQuery(`SELECT data FROM pharmacies WHERE npi = \$1`).
		WithArgs("1234567893").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(pharmacyJSON(t, want)))

	got, err := s.GetPharmacy(context.Background(), "1234567893")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Pharmacy.Name, got.Pharmacy.Name)
	assert.Equal(t, model.GradeA, got.Score.Grade)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetPharmacy_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM pharmacies`).
		WithArgs("1111111112").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetPharmacy(context.Background(), "1111111112")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListPharmacies(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	row := scored("1245319599", "TX", 67.2, model.GradeB, model.StatusActive)

	mock.ExpectQuery(`WHERE 1=1 AND state = \$1 AND npi > \$2 AND active_status = \$3 ORDER BY npi LIMIT \$4`).
		WithArgs("TX", "1234567893", "active", 100).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(pharmacyJSON(t, row)))

	rows, err := s.ListPharmacies(context.Background(), PharmacyFilter{
		State: "TX", AfterNPI: "1234567893", VerifiedOnly: true, Limit: 100,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1245319599", rows[0].Pharmacy.NPI)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListPharmacies_ScoreCursor(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	row := scored("1003000126", "TX", 55.0, model.GradeC, model.StatusUnverified)

	mock.ExpectQuery(`AND \(composite_score < \(SELECT composite_score FROM pharmacies WHERE npi = \$1\) ` +
		`OR \(composite_score = \(SELECT composite_score FROM pharmacies WHERE npi = \$1\) AND npi > \$1\)\) ` +
		`ORDER BY composite_score DESC, npi LIMIT \$2`).
		WithArgs("1245319599", 1).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(pharmacyJSON(t, row)))

	rows, err := s.ListPharmacies(context.Background(), PharmacyFilter{AfterNPI: "1245319599", ByScore: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1003000126", rows[0].Pharmacy.NPI)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StateSummary(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	top := scored("1234567893", "TX", 81.5, model.GradeA, model.StatusActive)

	mock.ExpectQuery(`FROM pharmacies WHERE state = \$1 GROUP BY grade`).
		WithArgs("TX").
		WillReturnRows(pgxmock.NewRows([]string{"grade", "count", "verified"}).
			AddRow("A", int64(1), int64(1)).
			AddRow("C", int64(4), int64(2)))
	mock.ExpectQuery(`ORDER BY composite_score DESC, npi LIMIT \$2`).
		WithArgs("TX", 1).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow(pharmacyJSON(t, top)))

	sum, err := s.StateSummary(context.Background(), "TX", 1)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Total)
	assert.Equal(t, 3, sum.Verified)
	assert.Equal(t, 4, sum.Grades[model.GradeC])
	assert.Equal(t, 0, sum.Grades[model.GradeB])
	require.Len(t, sum.Top, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_BatchRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO batch_runs`).
		WithArgs(pgxmock.AnyArg(), "running", "1000000004", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateBatchRun(ctx, "1000000004")
	require.NoError(t, err)

	run.Status = model.BatchCanceled
	run.LastNPI = "1003000126"
	mock.ExpectExec(`UPDATE batch_runs SET`).
		WithArgs("canceled", "1003000126", int64(0), int64(0), int64(0), int64(0), run.FinishedAt, run.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.UpdateBatchRun(ctx, *run))

	started := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM batch_runs ORDER BY started_at DESC LIMIT 1`).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "status", "start_after", "last_npi", "processed", "verified", "unverified", "failed", "started_at", "finished_at",
		}).AddRow(run.ID, "canceled", "1000000004", "1003000126", int64(2), int64(1), int64(1), int64(0), started, (*time.Time)(nil)))

	latest, err := s.LatestBatchRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, model.BatchCanceled, latest.Status)
	assert.Equal(t, "1003000126", latest.LastNPI)
	assert.Nil(t, latest.FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateBatchRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE batch_runs SET`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateBatchRun(context.Background(), model.BatchRun{ID: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
