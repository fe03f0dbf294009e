package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/rx-intel/internal/db"
	"github.com/sells-group/rx-intel/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that query it
// directly, such as the reference indicator lookups.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS pharmacies (
	npi             TEXT PRIMARY KEY,
	pharmacy_name   TEXT NOT NULL,
	state           TEXT NOT NULL,
	zip             TEXT NOT NULL DEFAULT '',
	active_status   TEXT NOT NULL DEFAULT 'unverified',
	composite_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	grade           TEXT NOT NULL DEFAULT 'D',
	data            JSONB NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS batch_runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status      TEXT NOT NULL DEFAULT 'running',
	start_after TEXT NOT NULL DEFAULT '',
	last_npi    TEXT NOT NULL DEFAULT '',
	processed   BIGINT NOT NULL DEFAULT 0,
	verified    BIGINT NOT NULL DEFAULT 0,
	unverified  BIGINT NOT NULL DEFAULT 0,
	failed      BIGINT NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_pharmacies_state ON pharmacies(state);
CREATE INDEX IF NOT EXISTS idx_pharmacies_composite ON pharmacies(composite_score DESC);
CREATE INDEX IF NOT EXISTS idx_batch_runs_started_at ON batch_runs(started_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertPharmacies(ctx context.Context, rows []model.ScoredPharmacy) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	values := make([][]any, 0, len(rows))
	for _, sp := range rows {
		if sp.UpdatedAt.IsZero() {
			sp.UpdatedAt = time.Now().UTC()
		}
		data, err := encodePharmacy(sp)
		if err != nil {
			return 0, err
		}
		p := sp.Pharmacy
		values = append(values, []any{
			p.NPI, p.Name, p.State, p.ZIP, string(p.Status),
			sp.Score.Composite, string(sp.Score.Grade), data, sp.UpdatedAt,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "pharmacies",
		Columns:      pharmacyColumns,
		ConflictKeys: []string{"npi"},
	}, values)
	return n, eris.Wrap(err, "postgres: upsert pharmacies")
}

func (s *PostgresStore) GetPharmacy(ctx context.Context, npi string) (*model.ScoredPharmacy, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM pharmacies WHERE npi = $1`, npi).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get pharmacy %s", npi)
	}
	return decodePharmacy(data)
}

func (s *PostgresStore) ListPharmacies(ctx context.Context, filter PharmacyFilter) ([]model.ScoredPharmacy, error) {
	query := `SELECT data FROM pharmacies WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.State != "" {
		query += ` AND state = ` + arg(filter.State)
	}
	switch {
	case filter.AfterNPI != "" && filter.ByScore:
		cursor := arg(filter.AfterNPI)
		score := `(SELECT composite_score FROM pharmacies WHERE npi = ` + cursor + `)`
		query += ` AND (composite_score < ` + score + ` OR (composite_score = ` + score + ` AND npi > ` + cursor + `))`
	case filter.AfterNPI != "":
		query += ` AND npi > ` + arg(filter.AfterNPI)
	}
	if filter.VerifiedOnly {
		query += ` AND active_status = ` + arg(string(model.StatusActive))
	}
	if filter.ByScore {
		query += ` ORDER BY composite_score DESC, npi`
	} else {
		query += ` ORDER BY npi`
	}
	query += ` LIMIT ` + arg(filter.limit())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pharmacies")
	}
	defer rows.Close()

	var out []model.ScoredPharmacy
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pharmacy")
		}
		sp, err := decodePharmacy(data)
		if err != nil {
			return nil, err
		}
		out = append(out, *sp)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list pharmacies iterate")
}

func (s *PostgresStore) StateSummary(ctx context.Context, state string, top int) (*StateSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT grade, COUNT(*), COUNT(*) FILTER (WHERE active_status = 'active')
		 FROM pharmacies WHERE state = $1 GROUP BY grade`,
		state,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: state summary %s", state)
	}

	sum := newSummary(state)
	for rows.Next() {
		var grade string
		var total, verified int64
		if err := rows.Scan(&grade, &total, &verified); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan state summary")
		}
		sum.add(grade, total, verified)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: state summary iterate")
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

func (s *PostgresStore) CreateBatchRun(ctx context.Context, startAfter string) (*model.BatchRun, error) {
	run := &model.BatchRun{
		ID:         uuid.New().String(),
		Status:     model.BatchRunning,
		StartAfter: startAfter,
		StartedAt:  time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO batch_runs (id, status, start_after, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, string(run.Status), run.StartAfter, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert batch run")
	}
	return run, nil
}

func (s *PostgresStore) UpdateBatchRun(ctx context.Context, run model.BatchRun) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE batch_runs SET status = $1, last_npi = $2, processed = $3, verified = $4,
		 unverified = $5, failed = $6, finished_at = $7 WHERE id = $8`,
		string(run.Status), run.LastNPI, run.Processed, run.Verified,
		run.Unverified, run.Failed, run.FinishedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update batch run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("batch run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) LatestBatchRun(ctx context.Context) (*model.BatchRun, error) {
	var r model.BatchRun
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, start_after, last_npi, processed, verified, unverified, failed, started_at, finished_at
		 FROM batch_runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&r.ID, &status, &r.StartAfter, &r.LastNPI,
		&r.Processed, &r.Verified, &r.Unverified, &r.Failed, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: latest batch run")
	}
	r.Status = model.BatchRunStatus(status)
	return &r, nil
}
