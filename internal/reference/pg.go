package reference

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/db"
	"github.com/sells-group/rx-intel/internal/enrich"
	"github.com/sells-group/rx-intel/internal/model"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS ref_zip_indicators (
	zip             TEXT PRIMARY KEY,
	hpsa_designated BOOLEAN,
	hpsa_score      DOUBLE PRECISION,
	diabetes_pct    DOUBLE PRECISION,
	obesity_pct     DOUBLE PRECISION,
	senior_pct      DOUBLE PRECISION,
	median_income   DOUBLE PRECISION,
	population      DOUBLE PRECISION,
	rucc_code       INTEGER
);
CREATE TABLE IF NOT EXISTS ref_state_indicators (
	state                    TEXT PRIMARY KEY,
	payer_spend_per_pharmacy DOUBLE PRECISION,
	diabetes_pct             DOUBLE PRECISION,
	obesity_pct              DOUBLE PRECISION,
	senior_pct               DOUBLE PRECISION,
	median_income            DOUBLE PRECISION,
	pharmacy_count           INTEGER NOT NULL DEFAULT 0,
	loss_per_fill            DOUBLE PRECISION
);
ALTER TABLE ref_zip_indicators ADD COLUMN IF NOT EXISTS population DOUBLE PRECISION;
ALTER TABLE ref_zip_indicators ADD COLUMN IF NOT EXISTS rucc_code INTEGER;
ALTER TABLE ref_state_indicators ADD COLUMN IF NOT EXISTS loss_per_fill DOUBLE PRECISION;`

var (
	zipColumns   = []string{"zip", "hpsa_designated", "hpsa_score", "diabetes_pct", "obesity_pct", "senior_pct", "median_income", "population", "rucc_code"}
	stateColumns = []string{"state", "payer_spend_per_pharmacy", "diabetes_pct", "obesity_pct", "senior_pct", "median_income", "pharmacy_count", "loss_per_fill"}
)

// PGLookup reads indicators from the reference tables in Postgres.
type PGLookup struct {
	pool db.Pool
}

// NewPGLookup returns nil if pool is nil.
func NewPGLookup(pool db.Pool) *PGLookup {
	if pool == nil {
		return nil
	}
	return &PGLookup{pool: pool}
}

// Lookups returns the Postgres tables as enrichment lookups.
func (l *PGLookup) Lookups() enrich.Lookups {
	return enrich.Lookups{ZIP: l, State: l}
}

// Migrate creates the reference tables if they do not exist.
func (l *PGLookup) Migrate(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, schemaDDL); err != nil {
		return eris.Wrap(err, "reference: migrate")
	}
	return nil
}

// ZIPIndicators implements enrich.ZIPLookup. A missing ZIP is nil, nil.
func (l *PGLookup) ZIPIndicators(ctx context.Context, zip string) (*model.ZIPIndicators, error) {
	z := model.ZIPIndicators{}
	err := l.pool.QueryRow(ctx, `
		SELECT zip, hpsa_designated, hpsa_score, diabetes_pct, obesity_pct, senior_pct, median_income, population, rucc_code
		FROM ref_zip_indicators
		WHERE zip = $1`, zip).Scan(
		&z.ZIP, &z.HPSADesignated, &z.HPSAScore, &z.DiabetesPct, &z.ObesityPct, &z.SeniorPct, &z.MedianIncome, &z.Population, &z.RUCCCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "reference: query zip %s", zip)
	}
	return &z, nil
}

// StateIndicators implements enrich.StateLookup. A missing state is nil, nil.
func (l *PGLookup) StateIndicators(ctx context.Context, state string) (*model.StateIndicators, error) {
	s := model.StateIndicators{}
	err := l.pool.QueryRow(ctx, `
		SELECT state, payer_spend_per_pharmacy, diabetes_pct, obesity_pct, senior_pct, median_income, pharmacy_count, loss_per_fill
		FROM ref_state_indicators
		WHERE state = $1`, state).Scan(
		&s.State, &s.PayerSpend, &s.DiabetesPct, &s.ObesityPct, &s.SeniorPct, &s.MedianIncome, &s.PharmacyCount, &s.LossPerFill,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "reference: query state %s", state)
	}
	return &s, nil
}

// Sync upserts an in-memory table into Postgres.
func (l *PGLookup) Sync(ctx context.Context, t *Table) error {
	zipRows := make([][]any, 0, len(t.zips))
	for _, z := range t.zips {
		zipRows = append(zipRows, []any{z.ZIP, z.HPSADesignated, z.HPSAScore, z.DiabetesPct, z.ObesityPct, z.SeniorPct, z.MedianIncome, z.Population, z.RUCCCode})
	}
	stateRows := make([][]any, 0, len(t.states))
	for _, s := range t.states {
		stateRows = append(stateRows, []any{s.State, s.PayerSpend, s.DiabetesPct, s.ObesityPct, s.SeniorPct, s.MedianIncome, s.PharmacyCount, s.LossPerFill})
	}

	nz, err := db.BulkUpsert(ctx, l.pool, db.UpsertConfig{
		Table:        "ref_zip_indicators",
		Columns:      zipColumns,
		ConflictKeys: []string{"zip"},
	}, zipRows)
	if err != nil {
		return eris.Wrap(err, "reference: sync zips")
	}
	ns, err := db.BulkUpsert(ctx, l.pool, db.UpsertConfig{
		Table:        "ref_state_indicators",
		Columns:      stateColumns,
		ConflictKeys: []string{"state"},
	}, stateRows)
	if err != nil {
		return eris.Wrap(err, "reference: sync states")
	}

	zap.L().Info("reference: synced to postgres", zap.Int64("zips", nz), zap.Int64("states", ns))
	return nil
}
