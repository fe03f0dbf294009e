package intake

import (
	"fmt"
	"strings"

	"github.com/sells-group/rx-intel/internal/estimate"
	"github.com/sells-group/rx-intel/internal/model"
)

// Recommendation writes the scorecard summary paragraph. It always names
// the pharmacy and never presents a benchmark figure as observed.
func Recommendation(name string, b model.ScoreBreakdown, est model.FinancialEstimate) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s scores %.1f out of 100 (Grade %s, %s priority). ",
		name, b.Composite, b.Grade, b.Grade.Priority())

	switch b.Segment {
	case model.SegmentGLP1:
		sb.WriteString("GLP-1 reimbursement is the strongest driver: underwater GLP-1 fills are likely draining margin every month. ")
	case model.SegmentDIR:
		sb.WriteString("Urgency is the strongest driver: DIR fee pressure and patient leakage are squeezing cash flow now. ")
	default:
		sb.WriteString("Market opportunity is the strongest driver: local demand and payer mix put price-negotiated drug cash flow at the center of the conversation. ")
	}

	if est.MonthlyLoss > 0 {
		qualifier := "an estimated"
		if est.Mode == model.ModeActual {
			qualifier = "a reported"
		}
		fmt.Fprintf(&sb, "Based on %s %s per month (%s per year) in GLP-1 losses",
			qualifier, estimate.FormatCurrency(est.MonthlyLoss), estimate.FormatCurrency(est.AnnualLoss))
		if est.BreakevenFills != nil {
			fmt.Fprintf(&sb, ", routing %s covers the subscription", estimate.FormatBreakeven(est.BreakevenFills))
		}
		sb.WriteString(". ")
	}

	if low := b.LowConfidence(); len(low) > 0 {
		names := make([]string, len(low))
		for i, d := range low {
			names[i] = strings.ReplaceAll(string(d), "_", " ")
		}
		fmt.Fprintf(&sb, "Some inputs were unavailable, so the %s %s low-confidence. ",
			strings.Join(names, " and "), pluralScore(len(names)))
	}
	if est.IsEstimate {
		sb.WriteString(est.Disclosure)
	}
	return strings.TrimSpace(sb.String())
}

func pluralScore(n int) string {
	if n == 1 {
		return "score is"
	}
	return "scores are"
}
