package model

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActiveStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want ActiveStatus
	}{
		{"active", StatusActive},
		{"inactive", StatusInactive},
		{"unverified", StatusUnverified},
		{"", StatusUnverified},
		{"true", StatusUnverified},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseActiveStatus(tt.in))
		})
	}
}

func TestPharmacyVerified(t *testing.T) {
	t.Parallel()

	assert.True(t, Pharmacy{Status: StatusActive}.Verified())
	assert.False(t, Pharmacy{Status: StatusInactive}.Verified())
	assert.False(t, Pharmacy{Status: StatusUnverified}.Verified())
}

func TestMarkUnknown_Dedupes(t *testing.T) {
	t.Parallel()

	var a EnrichmentAttributes
	a.MarkUnknown("diabetes_pct")
	a.MarkUnknown("obesity_pct")
	a.MarkUnknown("diabetes_pct")

	assert.Equal(t, []string{"diabetes_pct", "obesity_pct"}, a.Unknown)
}

func TestGradePriority(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Immediate", GradeA.Priority())
	assert.Equal(t, "High", GradeB.Priority())
	assert.Equal(t, "Standard", GradeC.Priority())
	assert.Equal(t, "Monitor", GradeD.Priority())
}

func TestScoreBreakdownLowConfidence(t *testing.T) {
	t.Parallel()

	b := ScoreBreakdown{
		FinancialImpact: DimensionScore{LowConfidence: true},
		Urgency:         DimensionScore{LowConfidence: true},
	}
	assert.Equal(t, []Dimension{DimensionFinancialImpact, DimensionUrgency}, b.LowConfidence())
	assert.Empty(t, ScoreBreakdown{}.LowConfidence())
}

func TestCanonicalDrug(t *testing.T) {
	t.Parallel()

	got, ok := CanonicalDrug(GLP1Drugs, "  ozempic ")
	require.True(t, ok)
	assert.Equal(t, "Ozempic", got)

	_, ok = CanonicalDrug(GLP1Drugs, "Eliquis")
	assert.False(t, ok)

	got, ok = CanonicalDrug(MFPDrugs, "novolog/fiasp")
	require.True(t, ok)
	assert.Equal(t, "NovoLog/Fiasp", got)
}

func TestParsePayerType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   PayerType
		wantOK bool
	}{
		{"", PayerCommercial, true},
		{"Commercial", PayerCommercial, true},
		{"Medicare Part D", PayerMedicare, true},
		{"medicaid", PayerMedicaid, true},
		{"Cash/Other", PayerCash, true},
		{"barter", PayerCommercial, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParsePayerType(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestIsValidation(t *testing.T) {
	t.Parallel()

	ve := NewValidationError("state", "is required")
	assert.Equal(t, "state: is required", ve.Error())
	assert.True(t, IsValidation(ve))
	assert.True(t, IsValidation(eris.Wrap(ve, "normalize")))

	var errs ValidationErrors
	assert.NoError(t, errs.Err())
	errs = append(errs, ve, NewValidationError("npi", "must be 10 digits"))
	require.Error(t, errs.Err())
	assert.Equal(t, "state: is required; npi: must be 10 digits", errs.Error())
	assert.True(t, IsValidation(errs.Err()))

	assert.False(t, IsValidation(eris.New("boom")))
	assert.False(t, IsValidation(nil))
}

func TestIsInvariant(t *testing.T) {
	t.Parallel()

	err := eris.Wrap(&InvariantError{Reason: "negative fills"}, "estimate")
	assert.True(t, IsInvariant(err))
	assert.False(t, IsInvariant(NewValidationError("x", "y")))
}

func TestRuralClassFor(t *testing.T) {
	tests := []struct {
		code int
		want RuralClass
	}{
		{1, Metro}, {3, Metro},
		{4, RuralAdjacent}, {6, RuralAdjacent}, {8, RuralAdjacent},
		{5, RuralRemote}, {7, RuralRemote}, {9, RuralRemote},
		{0, ""}, {10, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RuralClassFor(tt.code), "code %d", tt.code)
	}
}
