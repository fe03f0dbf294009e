package enrich

import (
	"regexp"
	"strings"
)

// abbrToState maps state abbreviations to lowercase full names.
var abbrToState = map[string]string{
	"AL": "alabama", "AK": "alaska", "AZ": "arizona", "AR": "arkansas",
	"CA": "california", "CO": "colorado", "CT": "connecticut", "DE": "delaware",
	"FL": "florida", "GA": "georgia", "HI": "hawaii", "ID": "idaho",
	"IL": "illinois", "IN": "indiana", "IA": "iowa", "KS": "kansas",
	"KY": "kentucky", "LA": "louisiana", "ME": "maine", "MD": "maryland",
	"MA": "massachusetts", "MI": "michigan", "MN": "minnesota", "MS": "mississippi",
	"MO": "missouri", "MT": "montana", "NE": "nebraska", "NV": "nevada",
	"NH": "new hampshire", "NJ": "new jersey", "NM": "new mexico", "NY": "new york",
	"NC": "north carolina", "ND": "north dakota", "OH": "ohio", "OK": "oklahoma",
	"OR": "oregon", "PA": "pennsylvania", "RI": "rhode island", "SC": "south carolina",
	"SD": "south dakota", "TN": "tennessee", "TX": "texas", "UT": "utah",
	"VT": "vermont", "VA": "virginia", "WA": "washington", "WV": "west virginia",
	"WI": "wisconsin", "WY": "wyoming", "DC": "district of columbia",
	"PR": "puerto rico",
}

var stateToAbbr = func() map[string]string {
	m := make(map[string]string, len(abbrToState))
	for abbr, full := range abbrToState {
		m[full] = abbr
	}
	return m
}()

// NormalizeState returns the two-letter abbreviation for a state given as
// an abbreviation or a full name. ok is false when the state is unknown.
func NormalizeState(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	upper := strings.ToUpper(s)
	if _, ok := abbrToState[upper]; ok {
		return upper, true
	}
	if abbr, ok := stateToAbbr[strings.ToLower(s)]; ok {
		return abbr, true
	}
	return "", false
}

// NormalizeZIP keeps the five-digit ZIP prefix. Anything shorter or
// non-numeric is dropped.
func NormalizeZIP(s string) string {
	digits := onlyDigits(s)
	if len(digits) < 5 {
		// Registry extracts sometimes drop the leading zero of New England ZIPs.
		if len(digits) == 4 && len(strings.TrimSpace(s)) == 4 {
			return "0" + digits
		}
		return ""
	}
	return digits[:5]
}

// FormatPhone renders a ten-digit number as (XXX) XXX-XXXX. Other
// lengths are returned trimmed and unchanged.
func FormatPhone(s string) string {
	d := onlyDigits(s)
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return strings.TrimSpace(s)
	}
	return "(" + d[:3] + ") " + d[3:6] + "-" + d[6:]
}

// TitleCase lowercases s and capitalizes each word.
func TitleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

var suitePattern = regexp.MustCompile(`(?i)\b(STE|SUITE|UNIT|APT|APARTMENT|RM|ROOM|FL|FLOOR|BLDG|BUILDING)\b\.?\s*\w*\s*$|#\s*\w*\s*$`)

var streetAbbrev = map[string]string{
	"STREET": "ST", "AVENUE": "AVE", "BOULEVARD": "BLVD", "DRIVE": "DR",
	"ROAD": "RD", "LANE": "LN", "COURT": "CT", "PLACE": "PL",
	"CIRCLE": "CIR", "HIGHWAY": "HWY", "PARKWAY": "PKWY", "TERRACE": "TER",
	"NORTH": "N", "SOUTH": "S", "EAST": "E", "WEST": "W",
	"NORTHWEST": "NW", "NORTHEAST": "NE", "SOUTHWEST": "SW", "SOUTHEAST": "SE",
}

// NormalizeStreet canonicalizes a street line for co-location grouping:
// uppercase, no trailing suite or unit, standard suffix abbreviations.
func NormalizeStreet(addr string) string {
	addr = strings.ToUpper(strings.TrimSpace(addr))
	if addr == "" {
		return ""
	}
	addr = strings.TrimSpace(suitePattern.ReplaceAllString(addr, ""))
	addr = strings.TrimSpace(strings.TrimRight(addr, ","))

	words := strings.Fields(addr)
	for i, w := range words {
		w = strings.TrimRight(w, ".,")
		if abbr, ok := streetAbbrev[w]; ok {
			w = abbr
		}
		words[i] = w
	}
	return strings.Join(words, " ")
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
