package intake

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/model"
)

// NotSure is the label every dropdown accepts for an unknown answer.
const NotSure = "not sure"

// RxVolume is the monthly prescription volume dropdown.
type RxVolume int

const (
	RxVolumeNotSure RxVolume = iota
	RxVolumeUnder2000
	RxVolume2000To3999
	RxVolume4000To5999
	RxVolume6000To7999
	RxVolume8000Plus
)

var rxVolumeLabels = map[string]RxVolume{
	"under 2,000": RxVolumeUnder2000,
	"2,000-3,999": RxVolume2000To3999,
	"4,000-5,999": RxVolume4000To5999,
	"6,000-7,999": RxVolume6000To7999,
	"8,000+":      RxVolume8000Plus,
	NotSure:       RxVolumeNotSure,
}

// ParseRxVolume falls back to not sure on an unrecognized label.
func ParseRxVolume(raw string) RxVolume {
	return parseLabel("monthly_rx_volume", raw, rxVolumeLabels, RxVolumeNotSure)
}

// Midpoint returns the representative monthly volume, nil when unknown.
func (v RxVolume) Midpoint() *float64 {
	switch v {
	case RxVolumeUnder2000:
		return model.Float64Ptr(1500)
	case RxVolume2000To3999:
		return model.Float64Ptr(3000)
	case RxVolume4000To5999:
		return model.Float64Ptr(5000)
	case RxVolume6000To7999:
		return model.Float64Ptr(7000)
	case RxVolume8000Plus:
		return model.Float64Ptr(9000)
	default:
		return nil
	}
}

// GLP1Fills is the monthly GLP-1 fills dropdown.
type GLP1Fills int

const (
	GLP1FillsNotSure GLP1Fills = iota
	GLP1FillsUnder100
	GLP1Fills100To200
	GLP1Fills200To350
	GLP1Fills350To500
	GLP1Fills500Plus
)

var glp1FillsLabels = map[string]GLP1Fills{
	"under 100": GLP1FillsUnder100,
	"100-200":   GLP1Fills100To200,
	"200-350":   GLP1Fills200To350,
	"350-500":   GLP1Fills350To500,
	"500+":      GLP1Fills500Plus,
	NotSure:     GLP1FillsNotSure,
}

// ParseGLP1Fills falls back to not sure on an unrecognized label.
func ParseGLP1Fills(raw string) GLP1Fills {
	return parseLabel("glp1_monthly_fills", raw, glp1FillsLabels, GLP1FillsNotSure)
}

// Midpoint returns the representative monthly fill count, nil when unknown.
func (f GLP1Fills) Midpoint() *float64 {
	switch f {
	case GLP1FillsUnder100:
		return model.Float64Ptr(50)
	case GLP1Fills100To200:
		return model.Float64Ptr(150)
	case GLP1Fills200To350:
		return model.Float64Ptr(275)
	case GLP1Fills350To500:
		return model.Float64Ptr(425)
	case GLP1Fills500Plus:
		return model.Float64Ptr(550)
	default:
		return nil
	}
}

// GovPayer is the government-payer share dropdown.
type GovPayer int

const (
	GovPayerNotSure GovPayer = iota
	GovPayerUnder20
	GovPayer20To40
	GovPayer40To60
	GovPayer60To80
	GovPayerOver80
)

var govPayerLabels = map[string]GovPayer{
	"under 20%": GovPayerUnder20,
	"20-40%":    GovPayer20To40,
	"40-60%":    GovPayer40To60,
	"60-80%":    GovPayer60To80,
	"over 80%":  GovPayerOver80,
	NotSure:     GovPayerNotSure,
}

// ParseGovPayer falls back to not sure on an unrecognized label.
func ParseGovPayer(raw string) GovPayer {
	return parseLabel("gov_payer_pct", raw, govPayerLabels, GovPayerNotSure)
}

// Midpoint returns the representative percentage, nil when unknown.
func (g GovPayer) Midpoint() *float64 {
	switch g {
	case GovPayerUnder20:
		return model.Float64Ptr(10)
	case GovPayer20To40:
		return model.Float64Ptr(30)
	case GovPayer40To60:
		return model.Float64Ptr(50)
	case GovPayer60To80:
		return model.Float64Ptr(70)
	case GovPayerOver80:
		return model.Float64Ptr(90)
	default:
		return nil
	}
}

// DIRPressure is the DIR fee pressure dropdown.
type DIRPressure int

const (
	DIRSignificantSqueeze DIRPressure = iota
	DIRManageable
	DIRThreateningViability
)

var dirLabels = map[string]DIRPressure{
	"manageable":            DIRManageable,
	"significant squeeze":   DIRSignificantSqueeze,
	"threatening viability": DIRThreateningViability,
}

// ParseDIRPressure falls back to significant squeeze when blank or
// unrecognized.
func ParseDIRPressure(raw string) DIRPressure {
	return parseLabel("dir_fee_pressure", raw, dirLabels, DIRSignificantSqueeze)
}

// Value returns the pressure indicator in [0,1].
func (d DIRPressure) Value() float64 {
	switch d {
	case DIRManageable:
		return 0.3
	case DIRThreateningViability:
		return 1.0
	default:
		return 0.7
	}
}

// Answer is a yes / no / not sure dropdown.
type Answer int

const (
	AnswerNotSure Answer = iota
	AnswerYes
	AnswerNo
)

var answerLabels = map[string]Answer{
	"yes":   AnswerYes,
	"no":    AnswerNo,
	NotSure: AnswerNotSure,
}

func parseAnswer(field, raw string, def Answer) Answer {
	return parseLabel(field, raw, answerLabels, def)
}

// String returns the canonical label.
func (a Answer) String() string {
	switch a {
	case AnswerYes:
		return "Yes"
	case AnswerNo:
		return "No"
	default:
		return "not sure"
	}
}

// Technicians is the technician count dropdown, 0 through 4 and 5+.
type Technicians int

// TechniciansNotSure marks an unknown technician count.
const TechniciansNotSure Technicians = -1

var technicianLabels = map[string]Technicians{
	"0": 0, "1": 1, "2": 2, "3": 3, "4": 4, "5+": 5,
	NotSure: TechniciansNotSure,
}

// ParseTechnicians falls back to not sure on an unrecognized label.
func ParseTechnicians(raw string) Technicians {
	return parseLabel("num_technicians", raw, technicianLabels, TechniciansNotSure)
}

// Count returns the technician count, nil when unknown. 5+ counts as 5.
func (t Technicians) Count() *int {
	if t < 0 {
		return nil
	}
	return model.IntPtr(int(t))
}

// PMSSystems is the closed list of pharmacy management systems.
var PMSSystems = []string{
	"PioneerRx",
	"Liberty",
	"BestRx",
	"QS/1",
	"Rx30",
	"PrimeRx",
	"Computer-Rx",
	"McKesson EnterpriseRx",
	"Other",
}

// ParsePMS returns the canonical system name, falling back to Other.
func ParsePMS(raw string) string {
	labels := make(map[string]string, len(PMSSystems))
	for _, s := range PMSSystems {
		labels[strings.ToLower(s)] = s
	}
	return parseLabel("pms_system", raw, labels, "Other")
}

// requiredBands are the dropdowns every scorecard is expected to answer.
var requiredBands = map[string]bool{
	"monthly_rx_volume":  true,
	"glp1_monthly_fills": true,
	"gov_payer_pct":      true,
}

// parseLabel looks up a normalized dropdown label. Blank input takes the
// default, with a warning when the band is required. An unrecognized label
// takes the default with a warning.
func parseLabel[T any](field, raw string, labels map[string]T, def T) T {
	key := normalizeLabel(raw)
	if key == "" {
		if requiredBands[field] {
			zap.L().Warn("intake: required band missing, using default",
				zap.String("field", field),
			)
		}
		return def
	}
	if v, ok := labels[key]; ok {
		return v
	}
	zap.L().Warn("intake: unrecognized dropdown value, using default",
		zap.String("field", field),
		zap.String("value", raw),
	)
	return def
}

func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("–", "-", "—", "-", " - ", "-", "’", "'").Replace(s)
	switch s {
	case "i'm not sure", "im not sure", "unsure", "don't know", "unknown", "not sure":
		return NotSure
	}
	return strings.Join(strings.Fields(s), " ")
}
