package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/rx-intel/internal/config"
	"github.com/sells-group/rx-intel/internal/estimate"
	"github.com/sells-group/rx-intel/internal/intake"
	"github.com/sells-group/rx-intel/internal/model"
	"github.com/sells-group/rx-intel/internal/reference"
	"github.com/sells-group/rx-intel/internal/scorer"
	"github.com/sells-group/rx-intel/internal/store"
)

type stubDocs struct {
	pdf     []byte
	pingErr error
}

func (s stubDocs) Compile(context.Context, string, any) ([]byte, error) { return s.pdf, nil }

func (s stubDocs) Ping(context.Context) error { return s.pingErr }

// newTestEnv builds an environment over a fresh SQLite store with Texas
// state indicators. docs may be nil.
func newTestEnv(t *testing.T, docs *stubDocs) *appEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "rx.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))

	table := reference.NewTable(
		[]model.ZIPIndicators{{
			ZIP:            "78701",
			HPSADesignated: model.BoolPtr(true),
			HPSAScore:      model.Float64Ptr(18),
			DiabetesPct:    model.Float64Ptr(13.1),
			SeniorPct:      model.Float64Ptr(16.4),
			MedianIncome:   model.Float64Ptr(48_000),
		}},
		[]model.StateIndicators{{
			State:       "TX",
			PayerSpend:  model.Float64Ptr(910_000),
			DiabetesPct: model.Float64Ptr(12.4),
			ObesityPct:  model.Float64Ptr(35.8),
			SeniorPct:   model.Float64Ptr(13.2),
		}},
	)

	env := &appEnv{
		Store:   st,
		Lookups: table.Lookups(),
		Scorer:  scorer.NewDefault(),
		Calc:    estimate.New(config.DefaultEstimate()),
	}
	opts := []intake.Option{intake.WithLookups(env.Lookups)}
	if docs != nil {
		env.Docs = docs
		opts = append(opts, intake.WithDocuments(docs, time.Second))
	}
	env.Assembler = intake.NewAssembler(env.Scorer, env.Calc, opts...)
	t.Cleanup(env.Close)
	return env
}
