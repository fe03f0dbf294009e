package enrich

import (
	"strconv"
	"strings"

	"github.com/sells-group/rx-intel/internal/model"
)

// RegistryStatus maps a registry activity flag to the tri-state status.
// An empty or unrecognized flag is unverified, never inactive.
func RegistryStatus(flag string) model.ActiveStatus {
	switch strings.ToUpper(strings.TrimSpace(flag)) {
	case "A":
		return model.StatusActive
	case "D", "I":
		return model.StatusInactive
	default:
		return model.StatusUnverified
	}
}

// OperatingStatusFor estimates operating status from the year of the last
// registry update. Dates are MM/DD/YYYY or YYYY-MM-DD.
func OperatingStatusFor(lastUpdated string) model.OperatingStatus {
	year, ok := updateYear(lastUpdated)
	if !ok {
		return model.OperatingLikelyClosed
	}
	switch {
	case year >= 2024:
		return model.OperatingActive
	case year >= 2020:
		return model.OperatingLikelyActive
	case year >= 2015:
		return model.OperatingUncertain
	default:
		return model.OperatingLikelyClosed
	}
}

func updateYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	var part string
	switch {
	case strings.Contains(s, "/"):
		parts := strings.Split(s, "/")
		part = parts[len(parts)-1]
	case strings.Contains(s, "-"):
		part = strings.SplitN(s, "-", 2)[0]
	default:
		part = s
	}
	year, err := strconv.Atoi(strings.TrimSpace(part))
	if err != nil || year < 1900 {
		return 0, false
	}
	return year, true
}
