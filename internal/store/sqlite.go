package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/rx-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pharmacies (
	npi             TEXT PRIMARY KEY,
	pharmacy_name   TEXT NOT NULL,
	state           TEXT NOT NULL,
	zip             TEXT NOT NULL DEFAULT '',
	active_status   TEXT NOT NULL DEFAULT 'unverified',
	composite_score REAL NOT NULL DEFAULT 0,
	grade           TEXT NOT NULL DEFAULT 'D',
	data            TEXT NOT NULL,
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS batch_runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	start_after TEXT NOT NULL DEFAULT '',
	last_npi    TEXT NOT NULL DEFAULT '',
	processed   INTEGER NOT NULL DEFAULT 0,
	verified    INTEGER NOT NULL DEFAULT 0,
	unverified  INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_pharmacies_state ON pharmacies(state);
CREATE INDEX IF NOT EXISTS idx_pharmacies_composite ON pharmacies(composite_score DESC);
CREATE INDEX IF NOT EXISTS idx_batch_runs_started_at ON batch_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertPharmacies(ctx context.Context, rows []model.ScoredPharmacy) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO pharmacies (`+strings.Join(pharmacyColumns, ", ")+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (npi) DO UPDATE SET
			pharmacy_name = excluded.pharmacy_name,
			state = excluded.state,
			zip = excluded.zip,
			active_status = excluded.active_status,
			composite_score = excluded.composite_score,
			grade = excluded.grade,
			data = excluded.data,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, sp := range rows {
		if sp.UpdatedAt.IsZero() {
			sp.UpdatedAt = time.Now().UTC()
		}
		data, err := encodePharmacy(sp)
		if err != nil {
			return 0, err
		}
		p := sp.Pharmacy
		if _, err := stmt.ExecContext(ctx,
			p.NPI, p.Name, p.State, p.ZIP, string(p.Status),
			sp.Score.Composite, string(sp.Score.Grade), string(data), sp.UpdatedAt,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert pharmacy %s", p.NPI)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert")
	}
	return n, nil
}

func (s *SQLiteStore) GetPharmacy(ctx context.Context, npi string) (*model.ScoredPharmacy, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM pharmacies WHERE npi = ?`, npi).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get pharmacy %s", npi)
	}
	return decodePharmacy([]byte(data))
}

func (s *SQLiteStore) ListPharmacies(ctx context.Context, filter PharmacyFilter) ([]model.ScoredPharmacy, error) {
	query := `SELECT data FROM pharmacies WHERE 1=1`
	var args []any

	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	switch {
	case filter.AfterNPI != "" && filter.ByScore:
		query += ` AND (composite_score < (SELECT composite_score FROM pharmacies WHERE npi = ?)
			OR (composite_score = (SELECT composite_score FROM pharmacies WHERE npi = ?) AND npi > ?))`
		args = append(args, filter.AfterNPI, filter.AfterNPI, filter.AfterNPI)
	case filter.AfterNPI != "":
		query += ` AND npi > ?`
		args = append(args, filter.AfterNPI)
	}
	if filter.VerifiedOnly {
		query += ` AND active_status = ?`
		args = append(args, string(model.StatusActive))
	}
	if filter.ByScore {
		query += ` ORDER BY composite_score DESC, npi`
	} else {
		query += ` ORDER BY npi`
	}
	query += ` LIMIT ?`
	args = append(args, filter.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pharmacies")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ScoredPharmacy
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pharmacy")
		}
		sp, err := decodePharmacy([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, *sp)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list pharmacies iterate")
}

func (s *SQLiteStore) StateSummary(ctx context.Context, state string, top int) (*StateSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT grade, COUNT(*), SUM(CASE WHEN active_status = 'active' THEN 1 ELSE 0 END)
		 FROM pharmacies WHERE state = ? GROUP BY grade`,
		state,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: state summary %s", state)
	}
	defer rows.Close() //nolint:errcheck

	sum := newSummary(state)
	for rows.Next() {
		var grade string
		var total, verified int64
		if err := rows.Scan(&grade, &total, &verified); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan state summary")
		}
		sum.add(grade, total, verified)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: state summary iterate")
	}
	if sum.Total == 0 || top <= 0 {
		return sum, nil
	}

	best, err := s.ListPharmacies(ctx, PharmacyFilter{State: state, ByScore: true, Limit: top})
	if err != nil {
		return nil, err
	}
	sum.Top = best
	return sum, nil
}

func (s *SQLiteStore) CreateBatchRun(ctx context.Context, startAfter string) (*model.BatchRun, error) {
	run := &model.BatchRun{
		ID:         uuid.New().String(),
		Status:     model.BatchRunning,
		StartAfter: startAfter,
		StartedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batch_runs (id, status, start_after, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, string(run.Status), run.StartAfter, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert batch run")
	}
	return run, nil
}

func (s *SQLiteStore) UpdateBatchRun(ctx context.Context, run model.BatchRun) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE batch_runs SET status = ?, last_npi = ?, processed = ?, verified = ?,
		 unverified = ?, failed = ?, finished_at = ? WHERE id = ?`,
		string(run.Status), run.LastNPI, run.Processed, run.Verified,
		run.Unverified, run.Failed, run.FinishedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update batch run %s", run.ID)
	}
	return checkRowsAffected(res, "batch run", run.ID)
}

func (s *SQLiteStore) LatestBatchRun(ctx context.Context) (*model.BatchRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, start_after, last_npi, processed, verified, unverified, failed, started_at, finished_at
		 FROM batch_runs ORDER BY started_at DESC, rowid DESC LIMIT 1`,
	)

	var r model.BatchRun
	var finished sql.NullTime
	err := row.Scan(&r.ID, &r.Status, &r.StartAfter, &r.LastNPI,
		&r.Processed, &r.Verified, &r.Unverified, &r.Failed, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest batch run")
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
