package model

// Grade is the outreach grade assigned from a composite score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// Priority returns the outreach priority label for a grade.
func (g Grade) Priority() string {
	switch g {
	case GradeA:
		return "Immediate"
	case GradeB:
		return "High"
	case GradeC:
		return "Standard"
	default:
		return "Monitor"
	}
}

// Segment is the conversation angle used when reaching out.
type Segment string

const (
	SegmentGLP1 Segment = "GLP-1"
	SegmentMFP  Segment = "MFP"
	SegmentDIR  Segment = "DIR"
)

// Dimension names a scoring dimension.
type Dimension string

const (
	DimensionOpportunity     Dimension = "opportunity"
	DimensionFinancialImpact Dimension = "financial_impact"
	DimensionUrgency         Dimension = "urgency"
)

// DimensionScore is one of the three dimension scores.
type DimensionScore struct {
	Score         float64 `json:"score"`
	LowConfidence bool    `json:"low_confidence"`
	// Coverage is the weight share of sub-indicators that had data.
	Coverage float64 `json:"coverage"`
	// Missing names the sub-indicators that had no data.
	Missing []string `json:"missing,omitempty"`
}

// ScoreBreakdown is the immutable result of scoring one record.
type ScoreBreakdown struct {
	Opportunity     DimensionScore `json:"opportunity"`
	FinancialImpact DimensionScore `json:"financial_impact"`
	Urgency         DimensionScore `json:"urgency"`
	Composite       float64        `json:"composite"`
	Grade           Grade          `json:"grade"`
	Segment         Segment        `json:"segment"`
}

// LowConfidence returns the dimensions flagged low confidence, in fixed order.
func (b ScoreBreakdown) LowConfidence() []Dimension {
	var out []Dimension
	if b.Opportunity.LowConfidence {
		out = append(out, DimensionOpportunity)
	}
	if b.FinancialImpact.LowConfidence {
		out = append(out, DimensionFinancialImpact)
	}
	if b.Urgency.LowConfidence {
		out = append(out, DimensionUrgency)
	}
	return out
}
