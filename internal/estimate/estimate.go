// Package estimate computes dollar-denominated GLP-1 loss and subscription
// breakeven figures, from population benchmarks or from pharmacy-supplied
// drug-level actuals.
package estimate

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rx-intel/internal/config"
	"github.com/sells-group/rx-intel/internal/model"
)

// Input is the mode-specific estimator input. It is implemented by
// BenchmarkInput and ActualInput only.
type Input interface {
	Mode() model.EstimateMode
}

// BenchmarkInput estimates from enrichment attributes alone.
type BenchmarkInput struct {
	Attributes model.EnrichmentAttributes
}

// Mode implements Input.
func (BenchmarkInput) Mode() model.EstimateMode { return model.ModeBenchmark }

// ActualInput estimates from pharmacy-supplied drug lines.
type ActualInput struct {
	Drugs []model.DrugLossEntry
	MFP   []model.MfpExposureEntry

	// Self-reported aggregates. Zero when not provided.
	SpecialtyLoss    float64
	GenericsBelowPct float64 // percent, 0-100
	MonthlyVolume    float64
}

// Mode implements Input.
func (ActualInput) Mode() model.EstimateMode { return model.ModeActual }

// Estimator produces a FinancialEstimate from either input mode.
type Estimator interface {
	Estimate(in Input) (model.FinancialEstimate, error)
}

// Calculator implements Estimator. It is stateless apart from its
// constants and is safe for concurrent use.
type Calculator struct {
	cfg config.EstimateConfig
}

var _ Estimator = (*Calculator)(nil)

// New creates a Calculator.
func New(cfg config.EstimateConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// Config returns the calculator's constants.
func (c *Calculator) Config() config.EstimateConfig { return c.cfg }

// Estimate dispatches on the input mode.
func (c *Calculator) Estimate(in Input) (model.FinancialEstimate, error) {
	switch v := in.(type) {
	case BenchmarkInput:
		return c.Benchmark(v.Attributes), nil
	case *BenchmarkInput:
		return c.Benchmark(v.Attributes), nil
	case ActualInput:
		return c.Actual(v)
	case *ActualInput:
		return c.Actual(*v)
	default:
		return model.FinancialEstimate{}, eris.Errorf("estimate: unsupported input %T", in)
	}
}

// BreakevenFills returns the fills needed to cover the subscription at
// lossPerFill. It returns nil when lossPerFill is not positive.
func (c *Calculator) BreakevenFills(lossPerFill float64) *int {
	if lossPerFill <= 0 || math.IsNaN(lossPerFill) || math.IsInf(lossPerFill, 0) {
		return nil
	}
	n := int(math.Ceil(c.cfg.SubscriptionPrice / lossPerFill))
	return &n
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
