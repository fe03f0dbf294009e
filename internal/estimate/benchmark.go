package estimate

import (
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/model"
)

// Benchmark extrapolates monthly GLP-1 loss from population figures. The
// result is always labelled an estimate.
//
// Fill volume comes from the pharmacy's reported GLP-1 fills when present.
// Otherwise it is the state payer spend per pharmacy converted to fills at
// the benchmark price, scaled by a local market-share proxy (local diabetes
// prevalence relative to the national rate). The loss per fill is the
// state's own figure when the reference table carries one.
func (c *Calculator) Benchmark(a model.EnrichmentAttributes) model.FinancialEstimate {
	fills, lowConf := c.benchmarkFills(a)
	loss := c.cfg.LossPerFill
	if a.StateLossPerFill != nil && *a.StateLossPerFill > 0 {
		loss = *a.StateLossPerFill
	}
	monthly := roundCents(fills * loss)

	return model.FinancialEstimate{
		Mode:                   model.ModeBenchmark,
		MonthlyLoss:            monthly,
		AnnualLoss:             roundCents(monthly * 12),
		WeightedAvgLossPerFill: &loss,
		BreakevenFills:         c.BreakevenFills(loss),
		IsEstimate:             true,
		Disclosure:             model.BenchmarkDisclosure,
		LowConfidence:          lowConf,
		EstimatedMonthlyFills:  math.Round(fills*10) / 10,
	}
}

func (c *Calculator) benchmarkFills(a model.EnrichmentAttributes) (float64, bool) {
	if f := a.Reported.GLP1MonthlyFills; f != nil && *f >= 0 {
		return *f, false
	}

	lowConf := false
	spend := c.cfg.FallbackAnnualSpend
	if a.StatePayerSpend != nil && *a.StatePayerSpend >= 0 {
		spend = *a.StatePayerSpend
	} else {
		lowConf = true
	}

	share := 1.0
	if a.DiabetesPct != nil && c.cfg.NationalDiabetesPct > 0 {
		share = math.Max(c.cfg.MinMarketShare, math.Min(c.cfg.MaxMarketShare, *a.DiabetesPct/c.cfg.NationalDiabetesPct))
	} else {
		lowConf = true
	}

	fills := spend / 12 / c.cfg.PricePerFill * share
	if lowConf {
		zap.L().Debug("estimate: benchmark fills from fallback",
			zap.Bool("spend_known", a.StatePayerSpend != nil),
			zap.Bool("diabetes_known", a.DiabetesPct != nil),
			zap.Float64("fills", fills),
		)
	}
	return fills, lowConf
}
