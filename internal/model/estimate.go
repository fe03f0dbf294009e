package model

// EstimateMode tags which computation produced a FinancialEstimate.
type EstimateMode string

const (
	ModeBenchmark EstimateMode = "benchmark"
	ModeActual    EstimateMode = "actual"
)

// BenchmarkDisclosure accompanies every benchmark-mode estimate.
const BenchmarkDisclosure = "Estimated from population and claims benchmarks; not an observed figure for this pharmacy."

// DrugClass is the per-drug margin classification.
type DrugClass string

const (
	ClassLosing     DrugClass = "losing"
	ClassBreakeven  DrugClass = "breakeven"
	ClassProfitable DrugClass = "profitable"
)

// Routing is the per-drug action recommendation.
type Routing string

const (
	RouteOut    Routing = "Route"
	Retain      Routing = "Retain"
	Investigate Routing = "Investigate"
)

// PayerType tags who reimbursed a fill.
type PayerType string

const (
	PayerCommercial PayerType = "Commercial"
	PayerMedicare   PayerType = "Medicare Part D"
	PayerMedicaid   PayerType = "Medicaid"
	PayerCash       PayerType = "Cash/Other"
)

// DrugLossEntry is one pharmacy-supplied drug line in actual mode.
type DrugLossEntry struct {
	Drug            string    `json:"drug"`
	FillsPerMonth   int       `json:"fills_per_month"`
	AcquisitionCost float64   `json:"acquisition_cost"`
	Reimbursement   float64   `json:"reimbursement"`
	PayerType       PayerType `json:"payer_type"`
}

// DrugResult is a DrugLossEntry with its derived fields.
type DrugResult struct {
	DrugLossEntry
	NetPerFill          float64   `json:"net_per_fill"`
	MonthlyContribution float64   `json:"monthly_contribution"`
	Class               DrugClass `json:"classification"`
	Routing             Routing   `json:"routing"`
}

// MfpExposureEntry is one price-negotiated drug line.
type MfpExposureEntry struct {
	Drug               string   `json:"drug"`
	FillsPerMonth      int      `json:"fills_per_month"`
	AcquisitionCost    float64  `json:"acquisition_cost"`
	PayerReimbursement float64  `json:"payer_reimbursement"`
	ExpectedRebate     float64  `json:"expected_rebate"`
	ActualRebate       *float64 `json:"actual_rebate"` // nil: not yet received
	DaysOutstanding    *int     `json:"days_outstanding"` // nil: use the configured default
}

// MfpResult is an MfpExposureEntry with its derived fields.
type MfpResult struct {
	MfpExposureEntry
	RebateShortfall *float64 `json:"rebate_shortfall"`
	CashFloat       float64  `json:"cash_float_exposure"`
}

// MfpSummary aggregates MFP cash-flow exposure.
type MfpSummary struct {
	Entries         []MfpResult `json:"entries"`
	TotalCashFloat  float64     `json:"total_cash_float_exposure"`
	TotalShortfall  float64     `json:"total_rebate_shortfall"`
	AwaitingRebate  int         `json:"awaiting_rebate"`
	ReportedRebates int         `json:"reported_rebates"`
}

// FinancialEstimate is the output of either estimator mode. Fields that do
// not apply to a mode are left at their zero value or nil.
type FinancialEstimate struct {
	Mode        EstimateMode `json:"mode"`
	MonthlyLoss float64      `json:"monthly_loss"`
	AnnualLoss  float64      `json:"annual_loss"`

	// WeightedAvgLossPerFill is nil when no drug is losing.
	WeightedAvgLossPerFill *float64 `json:"weighted_avg_loss_per_fill"`
	// BreakevenFills is nil when not applicable.
	BreakevenFills *int `json:"breakeven_fills"`

	IsEstimate    bool   `json:"is_estimate"`
	Disclosure    string `json:"disclosure,omitempty"`
	LowConfidence bool   `json:"low_confidence,omitempty"`

	// Benchmark mode.
	EstimatedMonthlyFills float64 `json:"estimated_monthly_fills,omitempty"`

	// Actual mode.
	Drugs              []DrugResult `json:"drugs,omitempty"`
	LosingDrugCount    int          `json:"losing_drug_count"`
	GLP1MonthlyLoss    float64      `json:"glp1_monthly_loss,omitempty"`
	SpecialtyLoss      float64      `json:"specialty_loss,omitempty"`
	GenericErosionLoss float64      `json:"generic_erosion_loss,omitempty"`
	MFP                *MfpSummary  `json:"mfp,omitempty"`
}
