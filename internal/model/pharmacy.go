package model

import "time"

// ActiveStatus is the registry verification state of a pharmacy. It is a
// tri-state and must never be collapsed into a boolean.
type ActiveStatus string

const (
	StatusActive     ActiveStatus = "active"
	StatusInactive   ActiveStatus = "inactive"
	StatusUnverified ActiveStatus = "unverified"
)

// ParseActiveStatus maps a stored status string back to ActiveStatus.
// Anything unrecognized is unverified.
func ParseActiveStatus(s string) ActiveStatus {
	switch ActiveStatus(s) {
	case StatusActive:
		return StatusActive
	case StatusInactive:
		return StatusInactive
	default:
		return StatusUnverified
	}
}

// OperatingStatus is a coarse estimate of whether a location is still
// operating, derived from how recently its registry entry was updated.
type OperatingStatus string

const (
	OperatingActive       OperatingStatus = "Active"
	OperatingLikelyActive OperatingStatus = "Likely Active"
	OperatingUncertain    OperatingStatus = "Uncertain"
	OperatingLikelyClosed OperatingStatus = "Likely Closed"
)

// RawPharmacy is an identity record as it arrives from the provider
// registry extract, before normalization.
type RawPharmacy struct {
	NPI          string `json:"npi"`
	Name         string `json:"name"`
	OwnerName    string `json:"owner_name,omitempty"`
	Address1     string `json:"address_1,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ZIP          string `json:"zip,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Taxonomy     string `json:"taxonomy,omitempty"`
	RegistryFlag string `json:"registry_flag,omitempty"` // "A", "D", "I" or empty
	LastUpdated  string `json:"last_updated,omitempty"`  // registry date, MM/DD/YYYY or YYYY-MM-DD
}

// Pharmacy is a normalized pharmacy identity record keyed by NPI.
type Pharmacy struct {
	NPI             string          `json:"npi"`
	Name            string          `json:"pharmacy_name"`
	OwnerName       string          `json:"owner_name,omitempty"`
	Address1        string          `json:"address_1,omitempty"`
	City            string          `json:"city,omitempty"`
	State           string          `json:"state"`
	ZIP             string          `json:"zip,omitempty"`
	Phone           string          `json:"phone,omitempty"`
	Taxonomy        string          `json:"taxonomy,omitempty"`
	Status          ActiveStatus    `json:"active_status"`
	OperatingStatus OperatingStatus `json:"operating_status,omitempty"`
	Mismatches      []string        `json:"mismatches,omitempty"`
	VerifiedAt      *time.Time      `json:"verified_at,omitempty"`
}

// Verified reports whether the record belongs in the verified outreach subset.
func (p Pharmacy) Verified() bool {
	return p.Status == StatusActive
}

// Reported carries pharmacy-supplied figures from a scorecard request. A nil
// field means the pharmacy did not know or did not say.
type Reported struct {
	MonthlyRxVolume  *float64 `json:"monthly_rx_volume,omitempty"`
	GLP1MonthlyFills *float64 `json:"glp1_monthly_fills,omitempty"`
	GovPayerPct      *float64 `json:"gov_payer_pct,omitempty"`
	Technicians      *int     `json:"technicians,omitempty"`

	// Pressure indicators, each in [0,1]. Nil is unknown.
	DIRPressure     *float64 `json:"dir_pressure,omitempty"`
	MailOrderLoss   *float64 `json:"mail_order_loss,omitempty"`
	UnderwaterAware *float64 `json:"underwater_aware,omitempty"`
	MFPExposure     *float64 `json:"mfp_exposure,omitempty"`
}

// EnrichmentAttributes are the population and claims indicators attached to
// a pharmacy. Every field is optional. Nil means unknown; zero is a real
// observation.
type EnrichmentAttributes struct {
	HPSADesignated *bool    `json:"hpsa_designated,omitempty"`
	HPSAScore      *float64 `json:"hpsa_score,omitempty"`
	DiabetesPct    *float64 `json:"diabetes_pct,omitempty"`
	ObesityPct     *float64 `json:"obesity_pct,omitempty"`
	SeniorPct      *float64 `json:"senior_pct,omitempty"`
	MedianIncome   *float64 `json:"median_income,omitempty"`
	ZIPPopulation  *float64 `json:"zip_population,omitempty"`

	RUCCCode   *int       `json:"rucc_code,omitempty"`
	RuralClass RuralClass `json:"rural_class,omitempty"`

	// StatePayerSpend is the state-level government-payer GLP-1 spend
	// attributed to one pharmacy, in dollars per year.
	StatePayerSpend *float64 `json:"state_payer_spend,omitempty"`
	// StateLossPerFill overrides the national loss-per-fill benchmark.
	StateLossPerFill *float64 `json:"state_loss_per_fill,omitempty"`

	Reported Reported `json:"reported"`

	// Unknown lists the indicators whose lookup came back empty.
	Unknown []string `json:"unknown,omitempty"`
}

// MarkUnknown records an enrichment gap for the named indicator.
func (a *EnrichmentAttributes) MarkUnknown(name string) {
	for _, u := range a.Unknown {
		if u == name {
			return
		}
	}
	a.Unknown = append(a.Unknown, name)
}

// ScoredPharmacy is one row of the verified, ranked collection.
type ScoredPharmacy struct {
	Pharmacy   Pharmacy             `json:"pharmacy"`
	Attributes EnrichmentAttributes `json:"attributes"`
	Score      ScoreBreakdown       `json:"score"`
	Estimate   FinancialEstimate    `json:"estimate"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// BatchRunStatus is the state of a re-verification run.
type BatchRunStatus string

const (
	BatchRunning  BatchRunStatus = "running"
	BatchComplete BatchRunStatus = "complete"
	BatchCanceled BatchRunStatus = "canceled"
	BatchFailed   BatchRunStatus = "failed"
)

// BatchRun records one pass of the re-verification job.
type BatchRun struct {
	ID         string         `json:"id"`
	Status     BatchRunStatus `json:"status"`
	StartAfter string         `json:"start_after,omitempty"`
	LastNPI    string         `json:"last_npi,omitempty"`
	Processed  int64          `json:"processed"`
	Verified   int64          `json:"verified"`
	Unverified int64          `json:"unverified"`
	Failed     int64          `json:"failed"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
