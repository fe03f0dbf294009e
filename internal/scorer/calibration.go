// Package scorer computes the three-dimension pharmacy opportunity score,
// the weighted composite, the outreach grade and the conversation segment.
package scorer

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Dimension weights (sum = 1).
const (
	OpportunityWeight     = 0.45
	FinancialImpactWeight = 0.30
	UrgencyWeight         = 0.25
)

// Grade cut points on the 0-100 composite. A composite at or above a cut
// point earns that grade.
const (
	GradeAThreshold = 72.0
	GradeBThreshold = 58.0
	GradeCThreshold = 45.0
)

// Opportunity sub-indicator weights (sum = 1).
const (
	HPSAWeight         = 0.20
	DiabetesWeight     = 0.20
	ObesityWeight      = 0.10
	PayerDensityWeight = 0.25
	LowIncomeWeight    = 0.10
	SmallMarketWeight  = 0.10
	RuralityWeight     = 0.05
)

// Financial Impact sub-indicator weights (sum = 1).
const (
	GLP1VolumeWeight = 0.60
	GovPayerWeight   = 0.25
	RxVolumeWeight   = 0.15
)

// Urgency sub-indicator weights (sum = 1).
const (
	DIRPressureWeight    = 0.30
	MFPExposureWeight    = 0.20
	UnderwaterWeight     = 0.15
	MailOrderWeight      = 0.10
	IncomePressureWeight = 0.25
)

// Coverage floors. A dimension whose observed weight share falls below its
// floor is flagged low confidence.
const (
	OpportunityMinCoverage     = 0.5
	FinancialImpactMinCoverage = 0.5
	UrgencyMinCoverage         = 0.4
)

// LowConfidenceScore is the neutral score used when a dimension has too
// little data to compute anything.
const LowConfidenceScore = 50.0

// DimensionWeights blends the three dimensions into the composite.
type DimensionWeights struct {
	Opportunity     float64 `yaml:"opportunity"`
	FinancialImpact float64 `yaml:"financial_impact"`
	Urgency         float64 `yaml:"urgency"`
}

// OpportunityWeights weights the Opportunity sub-indicators.
type OpportunityWeights struct {
	HPSA         float64 `yaml:"hpsa"`
	Diabetes     float64 `yaml:"diabetes"`
	Obesity      float64 `yaml:"obesity"`
	PayerDensity float64 `yaml:"payer_density"`
	LowIncome    float64 `yaml:"low_income"`
	// SmallMarket scores ZIP population inverted: fewer residents means
	// less competition.
	SmallMarket float64 `yaml:"small_market"`
	Rurality    float64 `yaml:"rurality"`
}

// FinancialWeights weights the Financial Impact sub-indicators.
type FinancialWeights struct {
	GLP1Volume float64 `yaml:"glp1_volume"`
	GovPayer   float64 `yaml:"gov_payer"`
	RxVolume   float64 `yaml:"rx_volume"`
}

// UrgencyWeights weights the Urgency sub-indicators.
type UrgencyWeights struct {
	DIRPressure    float64 `yaml:"dir_pressure"`
	MFPExposure    float64 `yaml:"mfp_exposure"`
	Underwater     float64 `yaml:"underwater"`
	MailOrder      float64 `yaml:"mail_order"`
	IncomePressure float64 `yaml:"income_pressure"`
}

// GradeThresholds are the composite cut points for A, B and C.
type GradeThresholds struct {
	A float64 `yaml:"a"`
	B float64 `yaml:"b"`
	C float64 `yaml:"c"`
}

// CoverageFloors holds the per-dimension minimum observed coverage.
type CoverageFloors struct {
	Opportunity     float64 `yaml:"opportunity"`
	FinancialImpact float64 `yaml:"financial_impact"`
	Urgency         float64 `yaml:"urgency"`
}

// Range is a linear normalization window. Values at or below Min map to 0,
// at or above Max to 1.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Ranges holds the normalization windows for raw indicators.
type Ranges struct {
	HPSAScore    Range `yaml:"hpsa_score"`
	DiabetesPct  Range `yaml:"diabetes_pct"`
	ObesityPct   Range `yaml:"obesity_pct"`
	SeniorPct    Range `yaml:"senior_pct"`
	MedianIncome Range `yaml:"median_income"`
	StateSpend   Range `yaml:"state_spend"`
	GLP1Fills    Range `yaml:"glp1_fills"`
	RxVolume     Range `yaml:"rx_volume"`
	Population   Range `yaml:"population"`
	RUCCCode     Range `yaml:"rucc_code"`

	// SeniorPayerMultiplier converts senior share into a government-payer
	// share proxy, capped at SeniorPayerCap.
	SeniorPayerMultiplier float64 `yaml:"senior_payer_multiplier"`
	SeniorPayerCap        float64 `yaml:"senior_payer_cap"`
}

// Calibration is the full set of tunable scoring parameters.
type Calibration struct {
	Dimensions         DimensionWeights   `yaml:"dimensions"`
	Opportunity        OpportunityWeights `yaml:"opportunity"`
	FinancialImpact    FinancialWeights   `yaml:"financial_impact"`
	Urgency            UrgencyWeights     `yaml:"urgency"`
	Grades             GradeThresholds    `yaml:"grades"`
	MinCoverage        CoverageFloors     `yaml:"min_coverage"`
	LowConfidenceScore float64            `yaml:"low_confidence_score"`
	Ranges             Ranges             `yaml:"ranges"`
}

// DefaultCalibration returns the built-in calibration.
func DefaultCalibration() Calibration {
	return Calibration{
		Dimensions: DimensionWeights{
			Opportunity:     OpportunityWeight,
			FinancialImpact: FinancialImpactWeight,
			Urgency:         UrgencyWeight,
		},
		Opportunity: OpportunityWeights{
			HPSA:         HPSAWeight,
			Diabetes:     DiabetesWeight,
			Obesity:      ObesityWeight,
			PayerDensity: PayerDensityWeight,
			LowIncome:    LowIncomeWeight,
			SmallMarket:  SmallMarketWeight,
			Rurality:     RuralityWeight,
		},
		FinancialImpact: FinancialWeights{
			GLP1Volume: GLP1VolumeWeight,
			GovPayer:   GovPayerWeight,
			RxVolume:   RxVolumeWeight,
		},
		Urgency: UrgencyWeights{
			DIRPressure:    DIRPressureWeight,
			MFPExposure:    MFPExposureWeight,
			Underwater:     UnderwaterWeight,
			MailOrder:      MailOrderWeight,
			IncomePressure: IncomePressureWeight,
		},
		Grades: GradeThresholds{
			A: GradeAThreshold,
			B: GradeBThreshold,
			C: GradeCThreshold,
		},
		MinCoverage: CoverageFloors{
			Opportunity:     OpportunityMinCoverage,
			FinancialImpact: FinancialImpactMinCoverage,
			Urgency:         UrgencyMinCoverage,
		},
		LowConfidenceScore: LowConfidenceScore,
		Ranges: Ranges{
			HPSAScore:             Range{Min: 0, Max: 25},
			DiabetesPct:           Range{Min: 5, Max: 20},
			ObesityPct:            Range{Min: 20, Max: 45},
			SeniorPct:             Range{Min: 10, Max: 30},
			MedianIncome:          Range{Min: 30_000, Max: 120_000},
			StateSpend:            Range{Min: 250_000, Max: 2_000_000},
			GLP1Fills:             Range{Min: 0, Max: 500},
			RxVolume:              Range{Min: 0, Max: 10_000},
			Population:            Range{Min: 1_000, Max: 60_000},
			RUCCCode:              Range{Min: 1, Max: 9},
			SeniorPayerMultiplier: 2.5,
			SeniorPayerCap:        95,
		},
	}
}

// LoadCalibration overlays the YAML file at path onto the defaults. An
// empty path returns the defaults unchanged.
func LoadCalibration(path string) (Calibration, error) {
	cal := DefaultCalibration()
	if path == "" {
		return cal, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cal, eris.Wrapf(err, "scorer: read calibration %s", path)
	}
	if err := yaml.Unmarshal(data, &cal); err != nil {
		return cal, eris.Wrapf(err, "scorer: parse calibration %s", path)
	}
	if err := ValidateCalibration(cal); err != nil {
		return cal, err
	}
	return cal, nil
}

// ValidateCalibration checks that a Calibration is internally consistent.
func ValidateCalibration(c Calibration) error {
	var errs []string

	groups := []struct {
		name    string
		weights []float64
	}{
		{"dimensions", []float64{c.Dimensions.Opportunity, c.Dimensions.FinancialImpact, c.Dimensions.Urgency}},
		{"opportunity", []float64{c.Opportunity.HPSA, c.Opportunity.Diabetes, c.Opportunity.Obesity, c.Opportunity.PayerDensity, c.Opportunity.LowIncome, c.Opportunity.SmallMarket, c.Opportunity.Rurality}},
		{"financial_impact", []float64{c.FinancialImpact.GLP1Volume, c.FinancialImpact.GovPayer, c.FinancialImpact.RxVolume}},
		{"urgency", []float64{c.Urgency.DIRPressure, c.Urgency.MFPExposure, c.Urgency.Underwater, c.Urgency.MailOrder, c.Urgency.IncomePressure}},
	}
	for _, g := range groups {
		var sum float64
		for _, w := range g.weights {
			if w < 0 {
				errs = append(errs, fmt.Sprintf("%s weights must be >= 0", g.name))
				break
			}
			sum += w
		}
		// Allow tolerance for floating-point.
		if math.Abs(sum-1) > 0.01 {
			errs = append(errs, fmt.Sprintf("%s weights should sum to 1, got %.3f", g.name, sum))
		}
	}

	gr := c.Grades
	if !(gr.A > gr.B && gr.B > gr.C) {
		errs = append(errs, "grade thresholds must satisfy a > b > c")
	}
	if gr.C < 0 || gr.A > 100 {
		errs = append(errs, "grade thresholds must be between 0 and 100")
	}

	for name, f := range map[string]float64{
		"opportunity":      c.MinCoverage.Opportunity,
		"financial_impact": c.MinCoverage.FinancialImpact,
		"urgency":          c.MinCoverage.Urgency,
	} {
		if f < 0 || f > 1 {
			errs = append(errs, fmt.Sprintf("min_coverage.%s must be between 0 and 1", name))
		}
	}

	if c.LowConfidenceScore < 0 || c.LowConfidenceScore > 100 {
		errs = append(errs, "low_confidence_score must be between 0 and 100")
	}

	r := c.Ranges
	for name, rg := range map[string]Range{
		"hpsa_score":    r.HPSAScore,
		"diabetes_pct":  r.DiabetesPct,
		"obesity_pct":   r.ObesityPct,
		"senior_pct":    r.SeniorPct,
		"median_income": r.MedianIncome,
		"state_spend":   r.StateSpend,
		"glp1_fills":    r.GLP1Fills,
		"rx_volume":     r.RxVolume,
		"population":    r.Population,
		"rucc_code":     r.RUCCCode,
	} {
		if rg.Max <= rg.Min {
			errs = append(errs, fmt.Sprintf("ranges.%s max must be > min", name))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: calibration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
