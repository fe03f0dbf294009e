package model

import "strings"

// GLP1Drugs is the closed picklist for deep-dive drug entries.
var GLP1Drugs = []string{
	"Ozempic",
	"Wegovy",
	"Rybelsus",
	"Mounjaro",
	"Zepbound",
	"Victoza",
	"Saxenda",
	"Trulicity",
	"Byetta",
	"Bydureon",
}

// MFPDrugs is the closed picklist of price-negotiated drugs.
var MFPDrugs = []string{
	"Eliquis",
	"Jardiance",
	"Xarelto",
	"Januvia",
	"Farxiga",
	"Entresto",
	"Enbrel",
	"Imbruvica",
	"Stelara",
	"NovoLog/Fiasp",
}

// CanonicalDrug returns the picklist spelling of name, matching
// case-insensitively. ok is false when name is not on the list.
func CanonicalDrug(list []string, name string) (string, bool) {
	n := strings.TrimSpace(name)
	for _, d := range list {
		if strings.EqualFold(d, n) {
			return d, true
		}
	}
	return "", false
}

// ParsePayerType maps a request value onto a PayerType. An empty value
// is Commercial. ok is false for unrecognized input.
func ParsePayerType(s string) (PayerType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "commercial":
		return PayerCommercial, true
	case "medicare", "medicare part d", "part d":
		return PayerMedicare, true
	case "medicaid":
		return PayerMedicaid, true
	case "cash", "cash/other", "other":
		return PayerCash, true
	default:
		return PayerCommercial, false
	}
}
