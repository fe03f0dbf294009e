package model

// ZIPIndicators are the location-level population figures for one ZIP.
// Nil fields were not present in the source table.
type ZIPIndicators struct {
	ZIP            string   `json:"zip"`
	HPSADesignated *bool    `json:"hpsa_designated,omitempty"`
	HPSAScore      *float64 `json:"hpsa_score,omitempty"`
	DiabetesPct    *float64 `json:"diabetes_pct,omitempty"`
	ObesityPct     *float64 `json:"obesity_pct,omitempty"`
	SeniorPct      *float64 `json:"senior_pct,omitempty"`
	MedianIncome   *float64 `json:"median_income,omitempty"`
	Population     *float64 `json:"population,omitempty"`
	// RUCCCode is the USDA rural-urban continuum code (1-9) of the ZIP's
	// dominant county.
	RUCCCode *int `json:"rucc_code,omitempty"`
}

// StateIndicators are the state-level figures used when no ZIP-level
// value is available, plus the payer spend figure that only exists at
// state level.
type StateIndicators struct {
	State         string   `json:"state"`
	PayerSpend    *float64 `json:"payer_spend_per_pharmacy,omitempty"`
	DiabetesPct   *float64 `json:"diabetes_pct,omitempty"`
	ObesityPct    *float64 `json:"obesity_pct,omitempty"`
	SeniorPct     *float64 `json:"senior_pct,omitempty"`
	MedianIncome  *float64 `json:"median_income,omitempty"`
	PharmacyCount int      `json:"pharmacy_count,omitempty"`
	// LossPerFill is the state's acquisition-cost-weighted GLP-1 loss per
	// fill. Nil falls back to the national benchmark.
	LossPerFill *float64 `json:"loss_per_fill,omitempty"`
}

// RuralClass groups RUCC codes by metro status and metro adjacency.
type RuralClass string

const (
	Metro         RuralClass = "Metro"
	RuralAdjacent RuralClass = "Rural-Adjacent"
	RuralRemote   RuralClass = "Rural-Remote"
)

// RuralClassFor maps a RUCC code to its class. Codes outside 1-9 have no
// class.
func RuralClassFor(code int) RuralClass {
	switch {
	case code >= 1 && code <= 3:
		return Metro
	case code == 4 || code == 6 || code == 8:
		return RuralAdjacent
	case code == 5 || code == 7 || code == 9:
		return RuralRemote
	default:
		return ""
	}
}

// RegistryRecord is what the external NPI registry returned for one
// identifier. Found is false when the registry has no such NPI.
type RegistryRecord struct {
	NPI         string `json:"npi"`
	Found       bool   `json:"found"`
	Name        string `json:"name,omitempty"`
	OwnerName   string `json:"owner_name,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	ZIP         string `json:"zip,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Taxonomy    string `json:"taxonomy,omitempty"`
	Status      string `json:"status,omitempty"` // registry flag, "A" when active
	LastUpdated string `json:"last_updated,omitempty"`
}
