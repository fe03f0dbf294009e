// Package dataset defines the exportable pharmacy dataset row and reads
// and writes it as CSV, XLSX and Parquet.
package dataset

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rx-intel/internal/model"
)

// Columns is the published column contract, in export order. Consumers key
// on name, so new columns may be appended but existing names never change.
var Columns = []string{
	"npi",
	"pharmacy_name",
	"owner_name",
	"address_1",
	"city",
	"state",
	"zip",
	"phone",
	"taxonomy",
	"active_status",
	"operating_status",
	"verified_at",
	"hpsa_designated",
	"hpsa_score",
	"diabetes_pct",
	"obesity_pct",
	"senior_pct",
	"median_income",
	"state_payer_spend",
	"opportunity_score",
	"financial_impact_score",
	"urgency_score",
	"composite_score",
	"grade",
	"segment",
	"outreach_priority",
	"low_confidence",
	"est_monthly_loss",
	"est_annual_loss",
	"zip_population",
	"rucc_code",
	"rural_classification",
}

// Row is one exported pharmacy.
type Row struct {
	NPI             string   `parquet:"npi"`
	PharmacyName    string   `parquet:"pharmacy_name"`
	OwnerName       string   `parquet:"owner_name"`
	Address1        string   `parquet:"address_1"`
	City            string   `parquet:"city"`
	State           string   `parquet:"state"`
	ZIP             string   `parquet:"zip"`
	Phone           string   `parquet:"phone"`
	Taxonomy        string   `parquet:"taxonomy"`
	ActiveStatus    string   `parquet:"active_status"`
	OperatingStatus string   `parquet:"operating_status"`
	VerifiedAt      string   `parquet:"verified_at"`
	HPSADesignated  *bool    `parquet:"hpsa_designated,optional"`
	HPSAScore       *float64 `parquet:"hpsa_score,optional"`
	DiabetesPct     *float64 `parquet:"diabetes_pct,optional"`
	ObesityPct      *float64 `parquet:"obesity_pct,optional"`
	SeniorPct       *float64 `parquet:"senior_pct,optional"`
	MedianIncome    *float64 `parquet:"median_income,optional"`
	StatePayerSpend *float64 `parquet:"state_payer_spend,optional"`

	OpportunityScore     float64 `parquet:"opportunity_score"`
	FinancialImpactScore float64 `parquet:"financial_impact_score"`
	UrgencyScore         float64 `parquet:"urgency_score"`
	CompositeScore       float64 `parquet:"composite_score"`
	Grade                string  `parquet:"grade"`
	Segment              string  `parquet:"segment"`
	OutreachPriority     string  `parquet:"outreach_priority"`
	LowConfidence        string  `parquet:"low_confidence"`
	EstMonthlyLoss       float64 `parquet:"est_monthly_loss"`
	EstAnnualLoss        float64 `parquet:"est_annual_loss"`

	ZIPPopulation *float64 `parquet:"zip_population,optional"`
	RUCCCode      *int     `parquet:"rucc_code,optional"`
	RuralClass    string   `parquet:"rural_classification"`
}

// FromScored flattens a scored pharmacy into a dataset row.
func FromScored(sp model.ScoredPharmacy) Row {
	p, a, s := sp.Pharmacy, sp.Attributes, sp.Score

	lc := make([]string, 0, 3)
	for _, d := range s.LowConfidence() {
		lc = append(lc, string(d))
	}

	r := Row{
		NPI:                  p.NPI,
		PharmacyName:         p.Name,
		OwnerName:            p.OwnerName,
		Address1:             p.Address1,
		City:                 p.City,
		State:                p.State,
		ZIP:                  p.ZIP,
		Phone:                p.Phone,
		Taxonomy:             p.Taxonomy,
		ActiveStatus:         string(p.Status),
		OperatingStatus:      string(p.OperatingStatus),
		HPSADesignated:       a.HPSADesignated,
		HPSAScore:            a.HPSAScore,
		DiabetesPct:          a.DiabetesPct,
		ObesityPct:           a.ObesityPct,
		SeniorPct:            a.SeniorPct,
		MedianIncome:         a.MedianIncome,
		StatePayerSpend:      a.StatePayerSpend,
		OpportunityScore:     s.Opportunity.Score,
		FinancialImpactScore: s.FinancialImpact.Score,
		UrgencyScore:         s.Urgency.Score,
		CompositeScore:       s.Composite,
		Grade:                string(s.Grade),
		Segment:              string(s.Segment),
		OutreachPriority:     s.Grade.Priority(),
		LowConfidence:        strings.Join(lc, "|"),
		EstMonthlyLoss:       sp.Estimate.MonthlyLoss,
		EstAnnualLoss:        sp.Estimate.AnnualLoss,
		ZIPPopulation:        a.ZIPPopulation,
		RUCCCode:             a.RUCCCode,
		RuralClass:           string(a.RuralClass),
	}
	if p.VerifiedAt != nil {
		r.VerifiedAt = p.VerifiedAt.UTC().Format(time.RFC3339)
	}
	return r
}

// Scored rebuilds the scored pharmacy a row was exported from. Dimension
// coverage detail is not part of the row and comes back empty.
func (r Row) Scored() (model.ScoredPharmacy, error) {
	sp := model.ScoredPharmacy{
		Pharmacy: model.Pharmacy{
			NPI:             r.NPI,
			Name:            r.PharmacyName,
			OwnerName:       r.OwnerName,
			Address1:        r.Address1,
			City:            r.City,
			State:           r.State,
			ZIP:             r.ZIP,
			Phone:           r.Phone,
			Taxonomy:        r.Taxonomy,
			Status:          model.ParseActiveStatus(r.ActiveStatus),
			OperatingStatus: model.OperatingStatus(r.OperatingStatus),
		},
		Attributes: model.EnrichmentAttributes{
			HPSADesignated:  r.HPSADesignated,
			HPSAScore:       r.HPSAScore,
			DiabetesPct:     r.DiabetesPct,
			ObesityPct:      r.ObesityPct,
			SeniorPct:       r.SeniorPct,
			MedianIncome:    r.MedianIncome,
			StatePayerSpend: r.StatePayerSpend,
			ZIPPopulation:   r.ZIPPopulation,
			RUCCCode:        r.RUCCCode,
			RuralClass:      model.RuralClass(r.RuralClass),
		},
		Score: model.ScoreBreakdown{
			Opportunity:     model.DimensionScore{Score: r.OpportunityScore},
			FinancialImpact: model.DimensionScore{Score: r.FinancialImpactScore},
			Urgency:         model.DimensionScore{Score: r.UrgencyScore},
			Composite:       r.CompositeScore,
			Grade:           model.Grade(r.Grade),
			Segment:         model.Segment(r.Segment),
		},
		Estimate: model.FinancialEstimate{
			Mode:        model.ModeBenchmark,
			MonthlyLoss: r.EstMonthlyLoss,
			AnnualLoss:  r.EstAnnualLoss,
			IsEstimate:  true,
			Disclosure:  model.BenchmarkDisclosure,
		},
	}

	if r.VerifiedAt != "" {
		t, err := time.Parse(time.RFC3339, r.VerifiedAt)
		if err != nil {
			return model.ScoredPharmacy{}, eris.Wrapf(err, "dataset: npi %s: verified_at", r.NPI)
		}
		sp.Pharmacy.VerifiedAt = &t
	}

	for _, d := range strings.Split(r.LowConfidence, "|") {
		switch model.Dimension(d) {
		case model.DimensionOpportunity:
			sp.Score.Opportunity.LowConfidence = true
		case model.DimensionFinancialImpact:
			sp.Score.FinancialImpact.LowConfidence = true
		case model.DimensionUrgency:
			sp.Score.Urgency.LowConfidence = true
		}
	}
	return sp, nil
}

// Record renders the row as strings in Columns order.
func (r Row) Record() []string {
	return []string{
		r.NPI,
		r.PharmacyName,
		r.OwnerName,
		r.Address1,
		r.City,
		r.State,
		r.ZIP,
		r.Phone,
		r.Taxonomy,
		r.ActiveStatus,
		r.OperatingStatus,
		r.VerifiedAt,
		formatBool(r.HPSADesignated),
		formatOptFloat(r.HPSAScore),
		formatOptFloat(r.DiabetesPct),
		formatOptFloat(r.ObesityPct),
		formatOptFloat(r.SeniorPct),
		formatOptFloat(r.MedianIncome),
		formatOptFloat(r.StatePayerSpend),
		formatFloat(r.OpportunityScore),
		formatFloat(r.FinancialImpactScore),
		formatFloat(r.UrgencyScore),
		formatFloat(r.CompositeScore),
		r.Grade,
		r.Segment,
		r.OutreachPriority,
		r.LowConfidence,
		formatFloat(r.EstMonthlyLoss),
		formatFloat(r.EstAnnualLoss),
		formatOptFloat(r.ZIPPopulation),
		formatOptInt(r.RUCCCode),
		r.RuralClass,
	}
}

// ParseRecord reads a row keyed by column name. Columns the header lacks
// are left empty; npi is required.
func ParseRecord(h Header, rec []string) (Row, error) {
	r := Row{
		NPI:              h.Get(rec, "npi"),
		PharmacyName:     h.Get(rec, "pharmacy_name"),
		OwnerName:        h.Get(rec, "owner_name"),
		Address1:         h.Get(rec, "address_1"),
		City:             h.Get(rec, "city"),
		State:            h.Get(rec, "state"),
		ZIP:              h.Get(rec, "zip"),
		Phone:            h.Get(rec, "phone"),
		Taxonomy:         h.Get(rec, "taxonomy"),
		ActiveStatus:     h.Get(rec, "active_status"),
		OperatingStatus:  h.Get(rec, "operating_status"),
		VerifiedAt:       h.Get(rec, "verified_at"),
		Grade:            h.Get(rec, "grade"),
		Segment:          h.Get(rec, "segment"),
		OutreachPriority: h.Get(rec, "outreach_priority"),
		LowConfidence:    h.Get(rec, "low_confidence"),
		RuralClass:       h.Get(rec, "rural_classification"),
	}
	if r.NPI == "" {
		return Row{}, eris.New("dataset: npi column is required")
	}

	var err error
	if r.HPSADesignated, err = ParseOptBool(h.Get(rec, "hpsa_designated")); err != nil {
		return Row{}, eris.Wrapf(err, "dataset: npi %s: hpsa_designated", r.NPI)
	}

	opts := []struct {
		name string
		dst  **float64
	}{
		{"hpsa_score", &r.HPSAScore},
		{"diabetes_pct", &r.DiabetesPct},
		{"obesity_pct", &r.ObesityPct},
		{"senior_pct", &r.SeniorPct},
		{"median_income", &r.MedianIncome},
		{"state_payer_spend", &r.StatePayerSpend},
		{"zip_population", &r.ZIPPopulation},
	}
	for _, o := range opts {
		if *o.dst, err = ParseOptFloat(h.Get(rec, o.name)); err != nil {
			return Row{}, eris.Wrapf(err, "dataset: npi %s: %s", r.NPI, o.name)
		}
	}

	if r.RUCCCode, err = ParseOptInt(h.Get(rec, "rucc_code")); err != nil {
		return Row{}, eris.Wrapf(err, "dataset: npi %s: rucc_code", r.NPI)
	}

	reqs := []struct {
		name string
		dst  *float64
	}{
		{"opportunity_score", &r.OpportunityScore},
		{"financial_impact_score", &r.FinancialImpactScore},
		{"urgency_score", &r.UrgencyScore},
		{"composite_score", &r.CompositeScore},
		{"est_monthly_loss", &r.EstMonthlyLoss},
		{"est_annual_loss", &r.EstAnnualLoss},
	}
	for _, q := range reqs {
		v, err := ParseOptFloat(h.Get(rec, q.name))
		if err != nil {
			return Row{}, eris.Wrapf(err, "dataset: npi %s: %s", r.NPI, q.name)
		}
		if v != nil {
			*q.dst = *v
		}
	}
	return r, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatOptInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

// ParseOptFloat parses a possibly empty numeric cell. Thousands
// separators are accepted; an empty cell is nil.
func ParseOptFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ParseOptInt parses a possibly empty integer cell.
func ParseOptInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ParseOptBool parses a possibly empty boolean cell, accepting Y/N and
// yes/no as well as the strconv forms.
func ParseOptBool(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	switch strings.ToLower(s) {
	case "y", "yes":
		return model.BoolPtr(true), nil
	case "n", "no":
		return model.BoolPtr(false), nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
