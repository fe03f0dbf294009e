// Package enrich normalizes raw pharmacy identity records and attaches the
// population and claims indicators used for scoring.
package enrich

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/model"
)

// Indicator names recorded in EnrichmentAttributes.Unknown.
const (
	IndicatorHPSA         = "hpsa"
	IndicatorDiabetes     = "diabetes"
	IndicatorObesity      = "obesity"
	IndicatorSenior       = "senior"
	IndicatorMedianIncome = "median_income"
	IndicatorPayerSpend   = "state_payer_spend"
	IndicatorPopulation   = "zip_population"
	IndicatorRUCC         = "rucc"
)

// incomeSentinel is the census placeholder for a suppressed value. Anything
// below it is unknown.
const incomeSentinel = -999_999

// ZIPLookup returns location-level indicators. A nil result with a nil
// error means the ZIP is not in the table.
type ZIPLookup interface {
	ZIPIndicators(ctx context.Context, zip string) (*model.ZIPIndicators, error)
}

// StateLookup returns state-level indicators. A nil result with a nil
// error means the state is not in the table.
type StateLookup interface {
	StateIndicators(ctx context.Context, state string) (*model.StateIndicators, error)
}

// Lookups are the external indicator sources. Either may be nil.
type Lookups struct {
	ZIP   ZIPLookup
	State StateLookup
}

// Normalize validates and cleans a raw identity record and attaches its
// indicators. Lookup misses and lookup failures leave the attribute
// unknown. It returns model.ValidationErrors when the NPI, name or state
// is absent or malformed.
func Normalize(ctx context.Context, raw model.RawPharmacy, lk Lookups) (model.Pharmacy, model.EnrichmentAttributes, error) {
	var errs model.ValidationErrors

	npi := strings.TrimSpace(raw.NPI)
	switch {
	case npi == "":
		errs = append(errs, model.NewValidationError("npi", "is required"))
	case !ValidNPI(npi):
		errs = append(errs, model.NewValidationError("npi", "%q is not a valid 10-digit NPI", npi))
	}

	name := TitleCase(raw.Name)
	if name == "" {
		errs = append(errs, model.NewValidationError("name", "is required"))
	}

	state, ok := NormalizeState(raw.State)
	if !ok {
		if strings.TrimSpace(raw.State) == "" {
			errs = append(errs, model.NewValidationError("state", "is required"))
		} else {
			errs = append(errs, model.NewValidationError("state", "%q is not a recognized state", raw.State))
		}
	}

	if err := errs.Err(); err != nil {
		return model.Pharmacy{}, model.EnrichmentAttributes{}, err
	}

	p := model.Pharmacy{
		NPI:             npi,
		Name:            name,
		OwnerName:       TitleCase(raw.OwnerName),
		Address1:        TitleCase(raw.Address1),
		City:            TitleCase(raw.City),
		State:           state,
		ZIP:             NormalizeZIP(raw.ZIP),
		Phone:           FormatPhone(raw.Phone),
		Taxonomy:        strings.TrimSpace(raw.Taxonomy),
		Status:          RegistryStatus(raw.RegistryFlag),
		OperatingStatus: OperatingStatusFor(raw.LastUpdated),
	}

	return p, Attach(ctx, p.ZIP, p.State, lk), nil
}

// Attach builds the indicator set for a location. ZIP-level figures win;
// state-level figures fill the prevalence and income gaps.
func Attach(ctx context.Context, zip, state string, lk Lookups) model.EnrichmentAttributes {
	var a model.EnrichmentAttributes

	zi := lookupZIP(ctx, lk.ZIP, zip)
	si := lookupState(ctx, lk.State, state)

	if zi != nil {
		a.HPSADesignated = zi.HPSADesignated
		a.HPSAScore = zi.HPSAScore
		a.DiabetesPct = zi.DiabetesPct
		a.ObesityPct = zi.ObesityPct
		a.SeniorPct = zi.SeniorPct
		a.MedianIncome = validIncome(zi.MedianIncome)
		a.ZIPPopulation = zi.Population
		if zi.RUCCCode != nil {
			if class := model.RuralClassFor(*zi.RUCCCode); class != "" {
				a.RUCCCode = zi.RUCCCode
				a.RuralClass = class
			}
		}
	}
	if si != nil {
		a.DiabetesPct = firstNonNil(a.DiabetesPct, si.DiabetesPct)
		a.ObesityPct = firstNonNil(a.ObesityPct, si.ObesityPct)
		a.SeniorPct = firstNonNil(a.SeniorPct, si.SeniorPct)
		a.MedianIncome = firstNonNil(a.MedianIncome, validIncome(si.MedianIncome))
		a.StatePayerSpend = si.PayerSpend
		a.StateLossPerFill = si.LossPerFill
	}

	markGaps(&a)
	return a
}

// FromState builds the indicator set for a request that only names a
// state, as the scorecard does.
func FromState(ctx context.Context, state string, lk Lookups) model.EnrichmentAttributes {
	abbr, ok := NormalizeState(state)
	if !ok {
		var a model.EnrichmentAttributes
		markGaps(&a)
		return a
	}
	return Attach(ctx, "", abbr, Lookups{State: lk.State})
}

func markGaps(a *model.EnrichmentAttributes) {
	if a.HPSADesignated == nil && a.HPSAScore == nil {
		a.MarkUnknown(IndicatorHPSA)
	}
	if a.DiabetesPct == nil {
		a.MarkUnknown(IndicatorDiabetes)
	}
	if a.ObesityPct == nil {
		a.MarkUnknown(IndicatorObesity)
	}
	if a.SeniorPct == nil {
		a.MarkUnknown(IndicatorSenior)
	}
	if a.MedianIncome == nil {
		a.MarkUnknown(IndicatorMedianIncome)
	}
	if a.StatePayerSpend == nil {
		a.MarkUnknown(IndicatorPayerSpend)
	}
	if a.ZIPPopulation == nil {
		a.MarkUnknown(IndicatorPopulation)
	}
	if a.RUCCCode == nil {
		a.MarkUnknown(IndicatorRUCC)
	}
}

func lookupZIP(ctx context.Context, l ZIPLookup, zip string) *model.ZIPIndicators {
	if l == nil || zip == "" {
		return nil
	}
	zi, err := l.ZIPIndicators(ctx, zip)
	if err != nil {
		zap.L().Warn("enrich: zip lookup failed", zap.String("zip", zip), zap.Error(err))
		return nil
	}
	return zi
}

func lookupState(ctx context.Context, l StateLookup, state string) *model.StateIndicators {
	if l == nil || state == "" {
		return nil
	}
	si, err := l.StateIndicators(ctx, state)
	if err != nil {
		zap.L().Warn("enrich: state lookup failed", zap.String("state", state), zap.Error(err))
		return nil
	}
	return si
}

func validIncome(v *float64) *float64 {
	if v == nil || *v < incomeSentinel {
		return nil
	}
	return v
}

func firstNonNil(vs ...*float64) *float64 {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}
