package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

var pharmacyUpsert = UpsertConfig{
	Table:        "pharmacies",
	Columns:      []string{"npi", "name", "grade"},
	ConflictKeys: []string{"npi"},
}

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, pharmacyUpsert, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "pharmacies",
		ConflictKeys: []string{"npi"},
	}, [][]any{{"1234567893"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "pharmacies",
		Columns: []string{"npi"},
	}, [][]any{{"1234567893"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Success(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_pharmacies" \(LIKE "pharmacies" INCLUDING DEFAULTS\) ON COMMIT DROP`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_pharmacies"}, []string{"npi", "name", "grade"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "pharmacies" .* ON CONFLICT \("npi"\) DO UPDATE SET "name" = EXCLUDED."name", "grade" = EXCLUDED."grade"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, pharmacyUpsert, [][]any{
		{"1234567893", "Main Street Pharmacy", "A"},
		{"1245319599", "Corner Drug", "C"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_KeysOnly(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_ref_states"}, []string{"state"}).WillReturnResult(1)
	mock.ExpectExec(`ON CONFLICT \("state"\) DO NOTHING`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	_, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "ref.states",
		Columns:      []string{"state"},
		ConflictKeys: []string{"state"},
	}, [][]any{{"TX"}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsert_CopyFails(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_pharmacies"}, []string{"npi", "name", "grade"}).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := BulkUpsert(context.Background(), mock, pharmacyUpsert, [][]any{{"1234567893", "x", "A"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY into temp table for pharmacies")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	assert.Equal(t, `"simple"`, sanitizeTable("simple"))
	assert.Equal(t, `"ref"."states"`, sanitizeTable("ref.states"))
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"npi", "name"`, quoteAndJoin([]string{"npi", "name"}))
}
