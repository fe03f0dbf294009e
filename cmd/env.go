package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/config"
	"github.com/sells-group/rx-intel/internal/enrich"
	"github.com/sells-group/rx-intel/internal/estimate"
	"github.com/sells-group/rx-intel/internal/intake"
	"github.com/sells-group/rx-intel/internal/reference"
	"github.com/sells-group/rx-intel/internal/resilience"
	"github.com/sells-group/rx-intel/internal/scorer"
	"github.com/sells-group/rx-intel/internal/store"
	"github.com/sells-group/rx-intel/pkg/docgen"
	"github.com/sells-group/rx-intel/pkg/nppes"
)

// appEnv holds the components shared by the commands. Store may be nil for
// commands that never touch the collection. Docs is nil when no document
// service is configured.
type appEnv struct {
	Store     store.Store
	Lookups   enrich.Lookups
	Scorer    *scorer.Scorer
	Calc      *estimate.Calculator
	Assembler *intake.Assembler
	Docs      docgen.Client
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var st store.Store
	var err error
	switch c.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(c.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, c.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initLookups prefers the reference files. Without them a Postgres store
// serves the indicators from its reference tables, and a SQLite store has
// none.
func initLookups(ctx context.Context, c *config.Config, st store.Store) (enrich.Lookups, error) {
	if c.Reference.ZIPFile != "" || c.Reference.StateFile != "" {
		t, err := reference.Load(ctx, c.Reference.ZIPFile, c.Reference.StateFile)
		if err != nil {
			return enrich.Lookups{}, err
		}
		return t.Lookups(), nil
	}
	if pg, ok := st.(*store.PostgresStore); ok {
		lk := reference.NewPGLookup(pg.Pool())
		if err := lk.Migrate(ctx); err != nil {
			return enrich.Lookups{}, err
		}
		return lk.Lookups(), nil
	}
	zap.L().Warn("no reference tables configured, every indicator will be unknown")
	return enrich.Lookups{}, nil
}

func initScorer(c *config.Config) (*scorer.Scorer, error) {
	cal, err := scorer.LoadCalibration(c.Scorer.CalibrationFile)
	if err != nil {
		return nil, err
	}
	return scorer.New(cal)
}

func initRegistry(c *config.Config) nppes.Client {
	opts := []nppes.Option{
		nppes.WithBaseURL(c.Registry.BaseURL),
		nppes.WithRateLimit(c.Registry.RateLimit),
	}
	if c.Registry.TimeoutSecs > 0 {
		opts = append(opts, nppes.WithHTTPClient(&http.Client{Timeout: time.Duration(c.Registry.TimeoutSecs) * time.Second}))
	}
	if c.Registry.MaxRetries > 0 {
		p := resilience.DefaultPolicy()
		p.Attempts = c.Registry.MaxRetries
		opts = append(opts, nppes.WithRetryPolicy(p))
	}
	return nppes.NewClient(opts...)
}

// initEnv builds everything a command needs. withStore controls whether
// the collection is opened.
func initEnv(ctx context.Context, c *config.Config, withStore bool) (*appEnv, error) {
	env := &appEnv{Calc: estimate.New(c.Estimate)}

	if withStore {
		st, err := initStore(ctx, c)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}

	lk, err := initLookups(ctx, c, env.Store)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Lookups = lk

	sc, err := initScorer(c)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Scorer = sc

	opts := []intake.Option{intake.WithLookups(lk)}
	if c.DocGen.Enabled() {
		timeout := time.Duration(c.DocGen.TimeoutSecs) * time.Second
		env.Docs = docgen.NewClient(c.DocGen.BaseURL, docgen.WithHTTPClient(&http.Client{Timeout: timeout}))
		opts = append(opts, intake.WithDocuments(env.Docs, timeout))
	}
	env.Assembler = intake.NewAssembler(sc, env.Calc, opts...)
	return env, nil
}
