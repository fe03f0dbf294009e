package intake

import (
	"context"
	"encoding/base64"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/enrich"
	"github.com/sells-group/rx-intel/internal/estimate"
	"github.com/sells-group/rx-intel/internal/model"
	"github.com/sells-group/rx-intel/internal/scorer"
)

// Document templates understood by the compiler.
const (
	TemplateScorecard = "scorecard"
	TemplateDeepDive  = "deep-dive"
)

// DefaultDocumentTimeout bounds a compile call when no timeout is set.
const DefaultDocumentTimeout = 15 * time.Second

// DocumentCompiler renders a response payload into a PDF.
type DocumentCompiler interface {
	Compile(ctx context.Context, template string, payload any) ([]byte, error)
}

// Assembler runs a request through validation, scoring and estimation and
// builds the response. It holds no per-request state and is safe for
// concurrent use.
type Assembler struct {
	scorer     *scorer.Scorer
	calc       *estimate.Calculator
	lookups    enrich.Lookups
	docs       DocumentCompiler
	docTimeout time.Duration
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLookups sets the indicator lookups used for scorecard requests.
func WithLookups(lk enrich.Lookups) Option {
	return func(a *Assembler) { a.lookups = lk }
}

// WithDocuments enables document compilation bounded by timeout.
func WithDocuments(dc DocumentCompiler, timeout time.Duration) Option {
	return func(a *Assembler) {
		a.docs = dc
		if timeout > 0 {
			a.docTimeout = timeout
		}
	}
}

// NewAssembler creates an Assembler.
func NewAssembler(s *scorer.Scorer, c *estimate.Calculator, opts ...Option) *Assembler {
	a := &Assembler{scorer: s, calc: c, docTimeout: DefaultDocumentTimeout}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Scorecard handles a benchmark-mode request. Validation failures come
// back as success=false; nothing is scored.
func (a *Assembler) Scorecard(ctx context.Context, req ScorecardRequest) ScorecardResponse {
	id := uuid.NewString()
	lc := NewLifecycle(id)
	resp := ScorecardResponse{RequestID: id}

	sc, err := ParseScorecard(req)
	if err != nil {
		lc.must(StageRejected)
		lc.must(StageReturned)
		zap.L().Info("intake: scorecard rejected", zap.String("request_id", id), zap.Error(err))
		resp.Error = err.Error()
		return resp
	}
	lc.must(StageValidated)

	attrs := enrich.FromState(ctx, sc.State, a.lookups)
	attrs.Reported = sc.Reported()

	breakdown := a.scorer.Score(attrs)
	lc.must(StageScored)

	est := a.calc.Benchmark(attrs)
	lc.must(StageEstimated)

	resp.Success = true
	resp.PharmacyName = sc.PharmacyName
	resp.OverallGrade = breakdown.Grade
	resp.OverallScore = breakdown.Composite
	resp.OpportunityScore = breakdown.Opportunity.Score
	resp.FinancialImpactScore = breakdown.FinancialImpact.Score
	resp.UrgencyScore = breakdown.Urgency.Score
	resp.LowConfidence = breakdown.LowConfidence()
	if resp.LowConfidence == nil {
		resp.LowConfidence = []model.Dimension{}
	}
	resp.Segment = breakdown.Segment
	resp.OutreachPriority = breakdown.Grade.Priority()
	resp.Recommendation = Recommendation(sc.PharmacyName, breakdown, est)
	resp.ROIBreakevenFills = est.BreakevenFills
	resp.EstimatedMonthlyLoss = est.MonthlyLoss
	resp.EstimatedAnnualLoss = est.AnnualLoss
	resp.IsEstimate = est.IsEstimate
	resp.Disclosure = est.Disclosure
	lc.must(StageAssembled)

	resp.Document = a.compile(ctx, id, TemplateScorecard, sc.PharmacyName, resp)
	lc.must(StageReturned)

	zap.L().Info("intake: scorecard complete",
		zap.String("request_id", id),
		zap.String("grade", string(resp.OverallGrade)),
		zap.Float64("score", resp.OverallScore),
		zap.Bool("document", resp.DocumentAvailable),
	)
	return resp
}

// DeepDive handles an actual-mode request. Missing fields and estimator
// validation failures are rejected at intake; an invariant violation
// detected after estimation is rejected as well.
func (a *Assembler) DeepDive(ctx context.Context, req DeepDiveRequest) DeepDiveResponse {
	id := uuid.NewString()
	lc := NewLifecycle(id)
	resp := DeepDiveResponse{RequestID: id}

	dd, err := ParseDeepDive(req)
	if err == nil {
		// Range and picklist checks run before anything is computed.
		err = a.calc.ValidateActual(dd.Input)
	}
	if err != nil {
		lc.must(StageRejected)
		lc.must(StageReturned)
		zap.L().Info("intake: deep-dive rejected", zap.String("request_id", id), zap.Error(err))
		resp.Error = err.Error()
		return resp
	}
	lc.must(StageValidated)

	est, err := a.calc.Actual(dd.Input)
	lc.must(StageEstimated)
	if err != nil {
		lc.must(StageRejected)
		lc.must(StageReturned)
		zap.L().Error("intake: deep-dive estimate failed", zap.String("request_id", id), zap.Error(err))
		resp.Error = err.Error()
		return resp
	}

	resp.Success = true
	resp.PharmacyName = dd.PharmacyName
	resp.TotalMonthlyLoss = estimate.FormatCurrency(est.MonthlyLoss)
	resp.TotalAnnualLoss = estimate.FormatCurrency(est.AnnualLoss)
	resp.TotalMonthlyLossValue = est.MonthlyLoss
	resp.TotalAnnualLossValue = est.AnnualLoss
	resp.LosingDrugCount = est.LosingDrugCount
	resp.WeightedAvgLossPerFill = est.WeightedAvgLossPerFill
	resp.ROIBreakevenFills = est.BreakevenFills
	resp.BreakevenDisplay = estimate.FormatBreakeven(est.BreakevenFills)
	resp.MFPPresent = est.MFP != nil
	resp.MFPSummary = est.MFP
	resp.Drugs = est.Drugs
	lc.must(StageAssembled)

	resp.Document = a.compile(ctx, id, TemplateDeepDive, dd.PharmacyName, resp)
	lc.must(StageReturned)

	zap.L().Info("intake: deep-dive complete",
		zap.String("request_id", id),
		zap.Int("losing_drugs", resp.LosingDrugCount),
		zap.Float64("monthly_loss", resp.TotalMonthlyLossValue),
		zap.Bool("document", resp.DocumentAvailable),
	)
	return resp
}

// compile calls the document compiler under a timeout. Any failure is
// reported on the document fields only.
func (a *Assembler) compile(ctx context.Context, id, template, name string, payload any) Document {
	if a.docs == nil {
		return Document{}
	}

	cctx, cancel := context.WithTimeout(ctx, a.docTimeout)
	defer cancel()

	pdf, err := a.docs.Compile(cctx, template, payload)
	if err != nil {
		zap.L().Warn("intake: document compilation failed",
			zap.String("request_id", id),
			zap.String("template", template),
			zap.Error(err),
		)
		return Document{DocumentError: "document service unavailable"}
	}
	if len(pdf) == 0 {
		return Document{DocumentError: "document service returned an empty document"}
	}

	encoded := base64.StdEncoding.EncodeToString(pdf)
	filename := DocumentFilename(name, template)
	return Document{PDFBase64: &encoded, PDFFilename: &filename, DocumentAvailable: true}
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9]+`)

// DocumentFilename builds a filesystem-safe PDF name for a pharmacy.
func DocumentFilename(name, template string) string {
	base := strings.Trim(unsafeFilename.ReplaceAllString(name, "_"), "_")
	if base == "" {
		base = "pharmacy"
	}
	return base + "_" + strings.ReplaceAll(template, "-", "_") + ".pdf"
}
