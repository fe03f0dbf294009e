// Package intake validates scorecard and deep-dive requests, applies the
// documented defaults and assembles the response payloads.
package intake

import (
	"fmt"
	"strings"

	"github.com/sells-group/rx-intel/internal/enrich"
	"github.com/sells-group/rx-intel/internal/estimate"
	"github.com/sells-group/rx-intel/internal/model"
)

// NoProcess is the default answer for the deep-dive process questions.
const NoProcess = "We don't."

// ScorecardRequest is the free scorecard form submission.
type ScorecardRequest struct {
	PharmacyName     string `json:"pharmacy_name"`
	City             string `json:"city"`
	State            string `json:"state"`
	MonthlyRxVolume  string `json:"monthly_rx_volume"`
	GLP1MonthlyFills string `json:"glp1_monthly_fills"`
	GovPayerPct      string `json:"gov_payer_pct"`
	PMSSystem        string `json:"pms_system"`
	NumTechnicians   string `json:"num_technicians"`
	OwnerName        string `json:"owner_name"`

	YearsInBusiness         *int    `json:"years_in_business,omitempty"`
	AwareOfUnderwaterRx     string  `json:"aware_of_underwater_rx,omitempty"`
	LostPatientsToMailOrder string  `json:"lost_patients_to_mail_order,omitempty"`
	DIRFeePressure          string  `json:"dir_fee_pressure,omitempty"`
	DispensesMFPDrugs       string  `json:"dispenses_mfp_drugs,omitempty"`
	Email                   *string `json:"email,omitempty"`
	Phone                   *string `json:"phone,omitempty"`
}

// Scorecard is a validated scorecard request with every dropdown resolved.
type Scorecard struct {
	PharmacyName    string
	City            string
	State           string
	OwnerName       string
	RxVolume        RxVolume
	GLP1Fills       GLP1Fills
	GovPayer        GovPayer
	PMS             string
	Technicians     Technicians
	YearsInBusiness *int
	Underwater      Answer
	MailOrder       Answer
	DIR             DIRPressure
	MFP             Answer
	Email           *string
	Phone           *string
}

// ParseScorecard validates the required identity fields and resolves the
// dropdowns. Unrecognized dropdown values take their defaults.
func ParseScorecard(req ScorecardRequest) (Scorecard, error) {
	var errs model.ValidationErrors

	required := []struct{ field, value string }{
		{"pharmacy_name", req.PharmacyName},
		{"city", req.City},
		{"state", req.State},
		{"owner_name", req.OwnerName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, model.NewValidationError(r.field, "is required"))
		}
	}

	state := strings.TrimSpace(req.State)
	if state != "" {
		abbr, ok := enrich.NormalizeState(state)
		if !ok {
			errs = append(errs, model.NewValidationError("state", "%q is not a recognized state", req.State))
		}
		state = abbr
	}
	if req.YearsInBusiness != nil && *req.YearsInBusiness < 0 {
		errs = append(errs, model.NewValidationError("years_in_business", "must not be negative"))
	}

	if err := errs.Err(); err != nil {
		return Scorecard{}, err
	}

	return Scorecard{
		PharmacyName:    strings.TrimSpace(req.PharmacyName),
		City:            strings.TrimSpace(req.City),
		State:           state,
		OwnerName:       strings.TrimSpace(req.OwnerName),
		RxVolume:        ParseRxVolume(req.MonthlyRxVolume),
		GLP1Fills:       ParseGLP1Fills(req.GLP1MonthlyFills),
		GovPayer:        ParseGovPayer(req.GovPayerPct),
		PMS:             ParsePMS(req.PMSSystem),
		Technicians:     ParseTechnicians(req.NumTechnicians),
		YearsInBusiness: req.YearsInBusiness,
		Underwater:      parseAnswer("aware_of_underwater_rx", req.AwareOfUnderwaterRx, AnswerNotSure),
		MailOrder:       parseAnswer("lost_patients_to_mail_order", req.LostPatientsToMailOrder, AnswerNo),
		DIR:             ParseDIRPressure(req.DIRFeePressure),
		MFP:             parseAnswer("dispenses_mfp_drugs", req.DispensesMFPDrugs, AnswerNotSure),
		Email:           req.Email,
		Phone:           req.Phone,
	}, nil
}

// Reported converts the answers into the scorer's reported figures.
func (s Scorecard) Reported() model.Reported {
	r := model.Reported{
		MonthlyRxVolume:  s.RxVolume.Midpoint(),
		GLP1MonthlyFills: s.GLP1Fills.Midpoint(),
		GovPayerPct:      s.GovPayer.Midpoint(),
		Technicians:      s.Technicians.Count(),
		DIRPressure:      model.Float64Ptr(s.DIR.Value()),
	}

	switch s.Underwater {
	case AnswerYes:
		r.UnderwaterAware = model.Float64Ptr(1)
	case AnswerNo:
		r.UnderwaterAware = model.Float64Ptr(0.3)
	default:
		r.UnderwaterAware = model.Float64Ptr(0.6)
	}

	switch s.MailOrder {
	case AnswerYes:
		r.MailOrderLoss = model.Float64Ptr(1)
	case AnswerNo:
		r.MailOrderLoss = model.Float64Ptr(0)
	default:
		r.MailOrderLoss = model.Float64Ptr(0.5)
	}

	switch s.MFP {
	case AnswerYes:
		r.MFPExposure = model.Float64Ptr(1)
	case AnswerNo:
		r.MFPExposure = model.Float64Ptr(0)
	default:
		// Unknown exposure falls through to the senior-population proxy.
	}
	return r
}

// DrugEntry is one GLP-1 drug line of a deep-dive request. Numeric fields
// are pointers so an omitted value is rejected rather than read as zero.
type DrugEntry struct {
	Drug            string   `json:"drug"`
	FillsPerMonth   *int     `json:"fills_per_month"`
	AcquisitionCost *float64 `json:"acquisition_cost"`
	Reimbursement   *float64 `json:"reimbursement"`
	PayerType       string   `json:"payer_type,omitempty"`
}

// MFPEntry is one price-negotiated drug line of a deep-dive request.
type MFPEntry struct {
	Drug               string   `json:"drug"`
	FillsPerMonth      *int     `json:"fills_per_month"`
	AcquisitionCost    *float64 `json:"acquisition_cost"`
	PayerReimbursement *float64 `json:"payer_reimbursement"`
	ExpectedRebate     *float64 `json:"expected_rebate"`
	ActualRebate       *float64 `json:"actual_rebate,omitempty"`
	DaysOutstanding    *int     `json:"days_outstanding,omitempty"`
}

// DeepDiveRequest is the paid deep-dive submission.
type DeepDiveRequest struct {
	PharmacyName string      `json:"pharmacy_name"`
	OwnerName    string      `json:"owner_name"`
	GLP1Drugs    []DrugEntry `json:"glp1_drugs"`
	MFPDrugs     []MFPEntry  `json:"mfp_drugs,omitempty"`

	SpecialtyMonthlyLoss *float64 `json:"specialty_monthly_loss,omitempty"`
	GenericsBelowNADAC   *float64 `json:"generics_below_nadac_pct,omitempty"`
	MonthlyRxVolume      *float64 `json:"monthly_rx_volume,omitempty"`

	ReconciliationProcess string `json:"reconciliation_process,omitempty"`
	RebateTracking        string `json:"rebate_tracking,omitempty"`
	UnderwaterProcess     string `json:"underwater_process,omitempty"`

	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// DeepDive is a validated deep-dive request.
type DeepDive struct {
	PharmacyName          string
	OwnerName             string
	Input                 estimate.ActualInput
	ReconciliationProcess string
	RebateTracking        string
	UnderwaterProcess     string
	Email                 *string
	Phone                 *string
}

// ParseDeepDive checks presence of every required field and applies the
// optional defaults. Range checks on the figures are left to the
// estimator, which reports them with the same field names.
func ParseDeepDive(req DeepDiveRequest) (DeepDive, error) {
	var errs model.ValidationErrors

	if strings.TrimSpace(req.PharmacyName) == "" {
		errs = append(errs, model.NewValidationError("pharmacy_name", "is required"))
	}
	if strings.TrimSpace(req.OwnerName) == "" {
		errs = append(errs, model.NewValidationError("owner_name", "is required"))
	}
	if len(req.GLP1Drugs) == 0 {
		errs = append(errs, model.NewValidationError("glp1_drugs", "at least one drug entry is required"))
	}

	in := estimate.ActualInput{
		Drugs:            make([]model.DrugLossEntry, 0, len(req.GLP1Drugs)),
		MFP:              make([]model.MfpExposureEntry, 0, len(req.MFPDrugs)),
		SpecialtyLoss:    valueOr(req.SpecialtyMonthlyLoss, 0),
		GenericsBelowPct: valueOr(req.GenericsBelowNADAC, 0),
		MonthlyVolume:    valueOr(req.MonthlyRxVolume, 0),
	}

	for i, d := range req.GLP1Drugs {
		missing := func(name string) {
			errs = append(errs, model.NewValidationError(fmt.Sprintf("glp1_drugs[%d].%s", i, name), "is required"))
		}
		if strings.TrimSpace(d.Drug) == "" {
			missing("drug")
		}
		if d.FillsPerMonth == nil {
			missing("fills_per_month")
		}
		if d.AcquisitionCost == nil {
			missing("acquisition_cost")
		}
		if d.Reimbursement == nil {
			missing("reimbursement")
		}
		in.Drugs = append(in.Drugs, model.DrugLossEntry{
			Drug:            d.Drug,
			FillsPerMonth:   intOr(d.FillsPerMonth, 0),
			AcquisitionCost: valueOr(d.AcquisitionCost, 0),
			Reimbursement:   valueOr(d.Reimbursement, 0),
			PayerType:       model.PayerType(d.PayerType),
		})
	}

	for i, m := range req.MFPDrugs {
		missing := func(name string) {
			errs = append(errs, model.NewValidationError(fmt.Sprintf("mfp_drugs[%d].%s", i, name), "is required"))
		}
		if strings.TrimSpace(m.Drug) == "" {
			missing("drug")
		}
		if m.FillsPerMonth == nil {
			missing("fills_per_month")
		}
		if m.AcquisitionCost == nil {
			missing("acquisition_cost")
		}
		if m.PayerReimbursement == nil {
			missing("payer_reimbursement")
		}
		if m.ExpectedRebate == nil {
			missing("expected_rebate")
		}
		in.MFP = append(in.MFP, model.MfpExposureEntry{
			Drug:               m.Drug,
			FillsPerMonth:      intOr(m.FillsPerMonth, 0),
			AcquisitionCost:    valueOr(m.AcquisitionCost, 0),
			PayerReimbursement: valueOr(m.PayerReimbursement, 0),
			ExpectedRebate:     valueOr(m.ExpectedRebate, 0),
			ActualRebate:       m.ActualRebate,
			DaysOutstanding:    m.DaysOutstanding,
		})
	}

	if err := errs.Err(); err != nil {
		return DeepDive{}, err
	}

	return DeepDive{
		PharmacyName:          strings.TrimSpace(req.PharmacyName),
		OwnerName:             strings.TrimSpace(req.OwnerName),
		Input:                 in,
		ReconciliationProcess: textOr(req.ReconciliationProcess, NoProcess),
		RebateTracking:        textOr(req.RebateTracking, NoProcess),
		UnderwaterProcess:     textOr(req.UnderwaterProcess, NoProcess),
		Email:                 req.Email,
		Phone:                 req.Phone,
	}, nil
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func textOr(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}
