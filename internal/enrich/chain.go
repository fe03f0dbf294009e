package enrich

import (
	"regexp"
	"strings"

	"github.com/sells-group/rx-intel/internal/model"
)

var chainPatterns = compileAll(
	`\bCVS\b`,
	`\bWALGREEN`,
	`\bWAL[\-\s]*MART\b`,
	`\bRITE\s*-?\s*AID\b`,
	`\bKROGER\b`,
	`\bPUBLIX\b`,
	`\bH[\-\s]*E[\-\s]*B\b`,
	`\bCOSTCO\b`,
	`\bTARGET\b`,
	`\bSAFEWAY\b`,
	`\bALBERTSONS\b`,
	`\bWINN[\-\s]*DIXIE\b`,
	`\bMEIJER\b`,
	`\bHY[\-\s]*VEE\b`,
	`\bSAM'?S\s+CLUB\b`,
	`\bSUPERMARKET\b`,
	`\bMEDICINE\s+SHOPPE\b`,
	`\bHEALTH\s+MART\b`,
	`\bEXPRESS\s+SCRIPTS\b`,
	`\bOPTUM\b`,
	`\bMAIL\s+ORDER\b`,
	`\bHOSPITAL\s+PHARMACY\b`,
	`\bVA\s+MEDICAL\b`,
	`\bKAISER\s+FOUNDATION\b`,
	`\bDOLLAR\s+GENERAL\b`,
)

var clinicPatterns = compileAll(
	`\bMEDICAL\s+GROUP\b`,
	`\bURGENT\s+CARE\b`,
	`\bFAMILY\s+PRACTICE\b`,
	`\bHEALTH\s+SYSTEM\b`,
	`\bMEDICAL\s+CENTER\b`,
)

// excludedTaxonomies are pharmacy specialties other than community retail.
var excludedTaxonomies = []string{
	"compounding",
	"nuclear",
	"specialty",
	"home infusion",
	"long term care",
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// IsChain reports whether name belongs to a chain, mail-order, institutional
// or clinic operation rather than an independent pharmacy.
func IsChain(name string) bool {
	for _, re := range chainPatterns {
		if re.MatchString(name) {
			return true
		}
	}
	for _, re := range clinicPatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// IsExcludedTaxonomy reports whether a taxonomy description names a
// non-retail pharmacy specialty.
func IsExcludedTaxonomy(taxonomy string) bool {
	t := strings.ToLower(taxonomy)
	for _, x := range excludedTaxonomies {
		if strings.Contains(t, x) {
			return true
		}
	}
	return false
}

// Independent filters out chain records and non-retail specialties.
func Independent(in []model.Pharmacy) (kept []model.Pharmacy, dropped int) {
	kept = make([]model.Pharmacy, 0, len(in))
	for _, p := range in {
		if IsChain(p.Name) || IsExcludedTaxonomy(p.Taxonomy) {
			dropped++
			continue
		}
		kept = append(kept, p)
	}
	return kept, dropped
}
