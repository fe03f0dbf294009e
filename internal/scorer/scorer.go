package scorer

import (
	"math"

	"github.com/sells-group/rx-intel/internal/model"
)

// Scorer turns EnrichmentAttributes into a ScoreBreakdown. It holds only
// its calibration and is safe for concurrent use.
type Scorer struct {
	cal Calibration
}

// New creates a Scorer after validating cal.
func New(cal Calibration) (*Scorer, error) {
	if err := ValidateCalibration(cal); err != nil {
		return nil, err
	}
	return &Scorer{cal: cal}, nil
}

// NewDefault creates a Scorer with the built-in calibration.
func NewDefault() *Scorer {
	return &Scorer{cal: DefaultCalibration()}
}

// Calibration returns the scorer's calibration.
func (s *Scorer) Calibration() Calibration { return s.cal }

// component is one normalized sub-indicator. A nil value means no data.
type component struct {
	name   string
	weight float64
	value  *float64
	proxy  bool
}

// Score computes the full breakdown. Identical input always yields an
// identical result.
func (s *Scorer) Score(a model.EnrichmentAttributes) model.ScoreBreakdown {
	opp := s.blend(s.opportunity(a), s.cal.MinCoverage.Opportunity)
	fin := s.blend(s.financialImpact(a), s.cal.MinCoverage.FinancialImpact)
	urg := s.blend(s.urgency(a), s.cal.MinCoverage.Urgency)

	w := s.cal.Dimensions
	oc := opp.Score * w.Opportunity
	fc := fin.Score * w.FinancialImpact
	uc := urg.Score * w.Urgency
	composite := round1(oc + fc + uc)

	return model.ScoreBreakdown{
		Opportunity:     opp,
		FinancialImpact: fin,
		Urgency:         urg,
		Composite:       composite,
		Grade:           s.Grade(composite),
		Segment:         segmentFor(oc, fc, uc),
	}
}

// Grade maps a composite score to a letter grade. It is monotonic
// non-decreasing in composite.
func (s *Scorer) Grade(composite float64) model.Grade {
	g := s.cal.Grades
	switch {
	case composite >= g.A:
		return model.GradeA
	case composite >= g.B:
		return model.GradeB
	case composite >= g.C:
		return model.GradeC
	default:
		return model.GradeD
	}
}

// segmentFor picks the segment of the dimension with the largest weighted
// contribution. Ties go to the earlier dimension.
func segmentFor(opp, fin, urg float64) model.Segment {
	seg, best := model.SegmentMFP, opp
	if fin > best {
		seg, best = model.SegmentGLP1, fin
	}
	if urg > best {
		seg = model.SegmentDIR
	}
	return seg
}

// blend combines components into a dimension score. Missing components
// are dropped and the remaining weights renormalized. When present
// coverage is below floor the neutral score is used; when observed
// (non-proxy) coverage is below floor the dimension is flagged.
func (s *Scorer) blend(cs []component, floor float64) model.DimensionScore {
	var total, present, observed, sum float64
	var missing []string
	for _, c := range cs {
		total += c.weight
		if c.value == nil {
			missing = append(missing, c.name)
			continue
		}
		present += c.weight
		if !c.proxy {
			observed += c.weight
		}
		sum += c.weight * clamp01(*c.value)
	}

	if total <= 0 {
		return model.DimensionScore{Score: s.cal.LowConfidenceScore, LowConfidence: true, Missing: missing}
	}

	coverage := present / total
	out := model.DimensionScore{
		Coverage:      round2(coverage),
		LowConfidence: observed/total < floor,
		Missing:       missing,
	}
	if present == 0 || coverage < floor {
		out.Score = s.cal.LowConfidenceScore
		out.LowConfidence = true
		return out
	}
	out.Score = round1(sum / present * 100)
	return out
}

func (s *Scorer) opportunity(a model.EnrichmentAttributes) []component {
	w := s.cal.Opportunity
	r := s.cal.Ranges
	payer, payerProxy := s.govPayerShare(a)
	return []component{
		{name: "hpsa", weight: w.HPSA, value: s.hpsa(a)},
		{name: "diabetes", weight: w.Diabetes, value: linear(a.DiabetesPct, r.DiabetesPct)},
		{name: "obesity", weight: w.Obesity, value: linear(a.ObesityPct, r.ObesityPct)},
		{name: "payer_density", weight: w.PayerDensity, value: payer, proxy: payerProxy},
		{name: "low_income", weight: w.LowIncome, value: inverted(a.MedianIncome, r.MedianIncome)},
		{name: "small_market", weight: w.SmallMarket, value: inverted(a.ZIPPopulation, r.Population)},
		{name: "rurality", weight: w.Rurality, value: s.rurality(a)},
	}
}

func (s *Scorer) financialImpact(a model.EnrichmentAttributes) []component {
	w := s.cal.FinancialImpact
	r := s.cal.Ranges
	payer, payerProxy := s.govPayerShare(a)

	glp1 := linear(a.Reported.GLP1MonthlyFills, r.GLP1Fills)
	glp1Proxy := false
	if glp1 == nil {
		glp1 = linear(a.StatePayerSpend, r.StateSpend)
		glp1Proxy = glp1 != nil
	}

	return []component{
		{name: "glp1_volume", weight: w.GLP1Volume, value: glp1, proxy: glp1Proxy},
		{name: "gov_payer", weight: w.GovPayer, value: payer, proxy: payerProxy},
		{name: "rx_volume", weight: w.RxVolume, value: linear(a.Reported.MonthlyRxVolume, r.RxVolume)},
	}
}

func (s *Scorer) urgency(a model.EnrichmentAttributes) []component {
	w := s.cal.Urgency
	r := s.cal.Ranges

	mfp := a.Reported.MFPExposure
	mfpProxy := false
	if mfp == nil {
		mfp = linear(a.SeniorPct, r.SeniorPct)
		mfpProxy = mfp != nil
	}

	return []component{
		{name: "dir_pressure", weight: w.DIRPressure, value: a.Reported.DIRPressure},
		{name: "mfp_exposure", weight: w.MFPExposure, value: mfp, proxy: mfpProxy},
		{name: "underwater", weight: w.Underwater, value: a.Reported.UnderwaterAware},
		{name: "mail_order", weight: w.MailOrder, value: a.Reported.MailOrderLoss},
		{name: "income_pressure", weight: w.IncomePressure, value: inverted(a.MedianIncome, r.MedianIncome)},
	}
}

// hpsa prefers the numeric shortage score and falls back to the
// designation flag.
func (s *Scorer) hpsa(a model.EnrichmentAttributes) *float64 {
	if v := linear(a.HPSAScore, s.cal.Ranges.HPSAScore); v != nil {
		return v
	}
	if a.HPSADesignated != nil {
		if *a.HPSADesignated {
			return ptr(1)
		}
		return ptr(0)
	}
	return nil
}

// rurality scales the RUCC code so that 1 (large metro) is 0 and 9
// (remote rural) is 1.
func (s *Scorer) rurality(a model.EnrichmentAttributes) *float64 {
	if a.RUCCCode == nil {
		return nil
	}
	code := float64(*a.RUCCCode)
	return linear(&code, s.cal.Ranges.RUCCCode)
}

// govPayerShare returns the government-payer share in [0,1], from the
// reported figure when present or from the senior-population proxy.
func (s *Scorer) govPayerShare(a model.EnrichmentAttributes) (*float64, bool) {
	if a.Reported.GovPayerPct != nil {
		return ptr(clamp01(*a.Reported.GovPayerPct / 100)), false
	}
	if a.SeniorPct != nil {
		return ptr(SeniorPayerProxy(*a.SeniorPct, s.cal.Ranges) / 100), true
	}
	return nil, false
}

// SeniorPayerProxy estimates government-payer percentage from senior
// population percentage.
func SeniorPayerProxy(seniorPct float64, r Ranges) float64 {
	return math.Min(seniorPct*r.SeniorPayerMultiplier, r.SeniorPayerCap)
}

func linear(v *float64, r Range) *float64 {
	if v == nil {
		return nil
	}
	return ptr(clamp01((*v - r.Min) / (r.Max - r.Min)))
}

func inverted(v *float64, r Range) *float64 {
	n := linear(v, r)
	if n == nil {
		return nil
	}
	return ptr(1 - *n)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func ptr(v float64) *float64 { return &v }
