package estimate

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/model"
)

// Actual computes drug-by-drug loss from pharmacy-supplied figures. It
// returns model.ValidationErrors when the input is unusable and an
// InvariantError when the computed result is internally inconsistent.
func (c *Calculator) Actual(in ActualInput) (model.FinancialEstimate, error) {
	drugs, mfp, err := c.validateActual(in)
	if err != nil {
		return model.FinancialEstimate{}, err
	}

	est := model.FinancialEstimate{
		Mode:  model.ModeActual,
		Drugs: make([]model.DrugResult, 0, len(drugs)),
	}

	var losingFills int
	var losingTotal float64
	for _, d := range drugs {
		net := d.Reimbursement - d.AcquisitionCost
		r := model.DrugResult{
			DrugLossEntry: d,
			NetPerFill:    net,
			Class:         classify(net),
			Routing:       c.route(net),
		}
		if r.Class == model.ClassLosing {
			r.MonthlyContribution = -net * float64(d.FillsPerMonth)
			losingTotal += r.MonthlyContribution
			losingFills += d.FillsPerMonth
			est.LosingDrugCount++
		}
		est.Drugs = append(est.Drugs, r)
	}

	est.GLP1MonthlyLoss = roundCents(losingTotal)
	if losingFills > 0 {
		avg := losingTotal / float64(losingFills)
		est.WeightedAvgLossPerFill = &avg
		est.BreakevenFills = c.BreakevenFills(avg)
	}

	est.SpecialtyLoss = roundCents(in.SpecialtyLoss)
	est.GenericErosionLoss = roundCents(in.GenericsBelowPct / 100 * c.cfg.GenericErosionPerFill * in.MonthlyVolume)
	est.MonthlyLoss = roundCents(losingTotal + in.SpecialtyLoss + in.GenericsBelowPct/100*c.cfg.GenericErosionPerFill*in.MonthlyVolume)
	est.AnnualLoss = roundCents(est.MonthlyLoss * 12)

	if len(mfp) > 0 {
		est.MFP = c.mfpSummary(mfp)
	}

	if err := checkInvariants(est); err != nil {
		return model.FinancialEstimate{}, err
	}

	zap.L().Debug("estimate: actual computed",
		zap.Int("drugs", len(est.Drugs)),
		zap.Int("losing", est.LosingDrugCount),
		zap.Float64("monthly_loss", est.MonthlyLoss),
		zap.Bool("mfp", est.MFP != nil),
	)
	return est, nil
}

func classify(net float64) model.DrugClass {
	switch {
	case net < 0:
		return model.ClassLosing
	case net > 0:
		return model.ClassProfitable
	default:
		return model.ClassBreakeven
	}
}

// route recommends routing a drug away only when its loss exceeds the
// materiality threshold. Small losses and exact breakeven get a second look.
func (c *Calculator) route(net float64) model.Routing {
	switch {
	case net < -c.cfg.MaterialityThreshold:
		return model.RouteOut
	case net > 0:
		return model.Retain
	default:
		return model.Investigate
	}
}

func (c *Calculator) mfpSummary(entries []model.MfpExposureEntry) *model.MfpSummary {
	sum := &model.MfpSummary{Entries: make([]model.MfpResult, 0, len(entries))}
	for _, e := range entries {
		days := c.cfg.MFPDaysOutstanding
		if e.DaysOutstanding != nil {
			days = *e.DaysOutstanding
		}
		e.DaysOutstanding = &days
		r := model.MfpResult{
			MfpExposureEntry: e,
			CashFloat:        (e.AcquisitionCost - e.PayerReimbursement) * float64(e.FillsPerMonth) * float64(days) / 30,
		}
		if e.ActualRebate != nil {
			short := e.ExpectedRebate - *e.ActualRebate
			r.RebateShortfall = &short
			sum.TotalShortfall += short
			sum.ReportedRebates++
		} else {
			sum.AwaitingRebate++
		}
		sum.TotalCashFloat += r.CashFloat
		sum.Entries = append(sum.Entries, r)
	}
	sum.TotalCashFloat = roundCents(sum.TotalCashFloat)
	sum.TotalShortfall = roundCents(sum.TotalShortfall)
	return sum
}

// ValidateActual runs the actual-mode input checks without computing
// anything.
func (c *Calculator) ValidateActual(in ActualInput) error {
	_, _, err := c.validateActual(in)
	return err
}

// validateActual returns the drug and MFP lists with picklist names and
// payer types canonicalized.
func (c *Calculator) validateActual(in ActualInput) ([]model.DrugLossEntry, []model.MfpExposureEntry, error) {
	var errs model.ValidationErrors

	if len(in.Drugs) == 0 {
		errs = append(errs, model.NewValidationError("glp1_drugs", "at least one drug entry is required"))
	}

	drugs := make([]model.DrugLossEntry, 0, len(in.Drugs))
	for i, d := range in.Drugs {
		field := func(name string) string { return fieldName("glp1_drugs", i, name) }

		name, ok := model.CanonicalDrug(model.GLP1Drugs, d.Drug)
		if !ok {
			errs = append(errs, model.NewValidationError(field("drug"), "%q is not a recognized GLP-1 drug", d.Drug))
		}
		if d.FillsPerMonth <= 0 {
			errs = append(errs, model.NewValidationError(field("fills_per_month"), "must be a positive integer"))
		}
		if !nonNegative(d.AcquisitionCost) {
			errs = append(errs, model.NewValidationError(field("acquisition_cost"), "must be a non-negative amount"))
		}
		if !nonNegative(d.Reimbursement) {
			errs = append(errs, model.NewValidationError(field("reimbursement"), "must be a non-negative amount"))
		}
		payer, ok := model.ParsePayerType(string(d.PayerType))
		if !ok {
			errs = append(errs, model.NewValidationError(field("payer_type"), "%q is not a recognized payer type", d.PayerType))
		}

		d.Drug = name
		d.PayerType = payer
		drugs = append(drugs, d)
	}

	mfp := make([]model.MfpExposureEntry, 0, len(in.MFP))
	for i, m := range in.MFP {
		field := func(name string) string { return fieldName("mfp_drugs", i, name) }

		name, ok := model.CanonicalDrug(model.MFPDrugs, m.Drug)
		if !ok {
			errs = append(errs, model.NewValidationError(field("drug"), "%q is not a recognized price-negotiated drug", m.Drug))
		}
		if m.FillsPerMonth <= 0 {
			errs = append(errs, model.NewValidationError(field("fills_per_month"), "must be a positive integer"))
		}
		amounts := []struct {
			name string
			v    float64
		}{
			{"acquisition_cost", m.AcquisitionCost},
			{"payer_reimbursement", m.PayerReimbursement},
			{"expected_rebate", m.ExpectedRebate},
		}
		for _, a := range amounts {
			if !nonNegative(a.v) {
				errs = append(errs, model.NewValidationError(field(a.name), "must be a non-negative amount"))
			}
		}
		if m.ActualRebate != nil && !nonNegative(*m.ActualRebate) {
			errs = append(errs, model.NewValidationError(field("actual_rebate"), "must be a non-negative amount"))
		}
		if m.DaysOutstanding != nil && *m.DaysOutstanding < 0 {
			errs = append(errs, model.NewValidationError(field("days_outstanding"), "must not be negative"))
		}

		m.Drug = name
		mfp = append(mfp, m)
	}

	if !nonNegative(in.SpecialtyLoss) {
		errs = append(errs, model.NewValidationError("specialty_loss", "must be a non-negative amount"))
	}
	if !nonNegative(in.GenericsBelowPct) || in.GenericsBelowPct > 100 {
		errs = append(errs, model.NewValidationError("generics_below_pct", "must be between 0 and 100"))
	}
	if !nonNegative(in.MonthlyVolume) {
		errs = append(errs, model.NewValidationError("monthly_volume", "must not be negative"))
	}

	if err := errs.Err(); err != nil {
		return nil, nil, err
	}
	return drugs, mfp, nil
}

// checkInvariants guards the computed result against states validation
// should already have made impossible.
func checkInvariants(est model.FinancialEstimate) error {
	losing := 0
	for _, d := range est.Drugs {
		if d.FillsPerMonth <= 0 {
			return eris.Wrap(&model.InvariantError{Reason: "non-positive fill count for " + d.Drug}, "estimate")
		}
		if d.NetPerFill != d.Reimbursement-d.AcquisitionCost {
			return eris.Wrap(&model.InvariantError{Reason: "net per fill mismatch for " + d.Drug}, "estimate")
		}
		if d.Class == model.ClassLosing {
			losing++
		}
	}
	if losing != est.LosingDrugCount {
		return eris.Wrap(&model.InvariantError{Reason: "losing drug count mismatch"}, "estimate")
	}
	if est.MonthlyLoss < 0 || math.IsNaN(est.MonthlyLoss) || math.IsInf(est.MonthlyLoss, 0) {
		return eris.Wrap(&model.InvariantError{Reason: "monthly loss is not a finite non-negative amount"}, "estimate")
	}
	if (est.WeightedAvgLossPerFill == nil) != (est.LosingDrugCount == 0) {
		return eris.Wrap(&model.InvariantError{Reason: "weighted average defined without losing drugs"}, "estimate")
	}
	return nil
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

func fieldName(list string, i int, name string) string {
	return fmt.Sprintf("%s[%d].%s", list, i, name)
}
