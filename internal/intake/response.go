package intake

import (
	"github.com/sells-group/rx-intel/internal/model"
)

// Document fields shared by both responses. Document delivery is
// best-effort; when it fails the rest of the response is still returned.
type Document struct {
	PDFBase64         *string `json:"pdf_base64"`
	PDFFilename       *string `json:"pdf_filename"`
	DocumentAvailable bool    `json:"document_available"`
	DocumentError     string  `json:"document_error,omitempty"`
	EmailSent         bool    `json:"email_sent"`
}

// ScorecardResponse is the scorecard result contract.
type ScorecardResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	Error     string `json:"error,omitempty"`

	PharmacyName         string            `json:"pharmacy_name,omitempty"`
	OverallGrade         model.Grade       `json:"overall_grade,omitempty"`
	OverallScore         float64           `json:"overall_score"`
	OpportunityScore     float64           `json:"opportunity_score"`
	FinancialImpactScore float64           `json:"financial_impact_score"`
	UrgencyScore         float64           `json:"urgency_score"`
	LowConfidence        []model.Dimension `json:"low_confidence"`
	Segment              model.Segment     `json:"segment,omitempty"`
	OutreachPriority     string            `json:"outreach_priority,omitempty"`
	Recommendation       string            `json:"recommendation,omitempty"`
	ROIBreakevenFills    *int              `json:"roi_breakeven_fills"`
	EstimatedMonthlyLoss float64           `json:"estimated_monthly_loss"`
	EstimatedAnnualLoss  float64           `json:"estimated_annual_loss"`
	IsEstimate           bool              `json:"is_estimate"`
	Disclosure           string            `json:"disclosure,omitempty"`

	Document
}

// DeepDiveResponse is the deep-dive result contract.
type DeepDiveResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	Error     string `json:"error,omitempty"`

	PharmacyName           string             `json:"pharmacy_name,omitempty"`
	TotalMonthlyLoss       string             `json:"total_monthly_loss,omitempty"`
	TotalAnnualLoss        string             `json:"total_annual_loss,omitempty"`
	TotalMonthlyLossValue  float64            `json:"total_monthly_loss_value"`
	TotalAnnualLossValue   float64            `json:"total_annual_loss_value"`
	LosingDrugCount        int                `json:"losing_drug_count"`
	WeightedAvgLossPerFill *float64           `json:"weighted_avg_loss_per_fill"`
	ROIBreakevenFills      *int               `json:"roi_breakeven_fills"`
	BreakevenDisplay       string             `json:"breakeven_display,omitempty"`
	MFPPresent             bool               `json:"mfp_present"`
	MFPSummary             *model.MfpSummary  `json:"mfp_summary,omitempty"`
	Drugs                  []model.DrugResult `json:"drugs,omitempty"`

	Document
}
