package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rx-intel/internal/model"
)

type stubZIP map[string]*model.ZIPIndicators

func (s stubZIP) ZIPIndicators(_ context.Context, zip string) (*model.ZIPIndicators, error) {
	return s[zip], nil
}

type stubState map[string]*model.StateIndicators

func (s stubState) StateIndicators(_ context.Context, state string) (*model.StateIndicators, error) {
	return s[state], nil
}

type failingState struct{}

func (failingState) StateIndicators(context.Context, string) (*model.StateIndicators, error) {
	return nil, errors.New("connection refused")
}

func TestValidNPI(t *testing.T) {
	tests := []struct {
		npi  string
		want bool
	}{
		{"1234567893", true},
		{"1245319599", true},
		{"1003000126", true},
		{"1234567890", false},
		{"123456789", false},
		{"12345678933", false},
		{"12345A7893", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.npi, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidNPI(tt.npi))
		})
	}
}

func TestNormalizeState(t *testing.T) {
	st, ok := NormalizeState(" tx ")
	assert.True(t, ok)
	assert.Equal(t, "TX", st)

	st, ok = NormalizeState("New Mexico")
	assert.True(t, ok)
	assert.Equal(t, "NM", st)

	_, ok = NormalizeState("Atlantis")
	assert.False(t, ok)
	_, ok = NormalizeState("")
	assert.False(t, ok)
}

func TestNormalizeZIP(t *testing.T) {
	assert.Equal(t, "78701", NormalizeZIP("787011234"))
	assert.Equal(t, "78701", NormalizeZIP("78701-1234"))
	assert.Equal(t, "02134", NormalizeZIP("2134"))
	assert.Equal(t, "", NormalizeZIP("12"))
	assert.Equal(t, "", NormalizeZIP(""))
}

func TestFormatPhone(t *testing.T) {
	assert.Equal(t, "(512) 555-0100", FormatPhone("5125550100"))
	assert.Equal(t, "(512) 555-0100", FormatPhone("1-512-555-0100"))
	assert.Equal(t, "555-0100", FormatPhone(" 555-0100 "))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Main Street Pharmacy", TitleCase("MAIN STREET  PHARMACY"))
	assert.Equal(t, "", TitleCase("   "))
}

func TestNormalizeStreet(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"123 North Main Street", "123 N MAIN ST"},
		{"123 N. Main St., Suite 200", "123 N MAIN ST"},
		{"123 N MAIN ST STE 4", "123 N MAIN ST"},
		{"500 Oak Boulevard #12", "500 OAK BLVD"},
		{"77 Southwest Parkway Bldg B", "77 SW PKWY"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStreet(tt.in))
		})
	}
}

func TestRegistryStatus(t *testing.T) {
	assert.Equal(t, model.StatusActive, RegistryStatus("A"))
	assert.Equal(t, model.StatusInactive, RegistryStatus("d"))
	assert.Equal(t, model.StatusInactive, RegistryStatus("I"))
	assert.Equal(t, model.StatusUnverified, RegistryStatus(""))
	assert.Equal(t, model.StatusUnverified, RegistryStatus("X"))
}

func TestOperatingStatusFor(t *testing.T) {
	tests := []struct {
		in   string
		want model.OperatingStatus
	}{
		{"03/15/2025", model.OperatingActive},
		{"2024-01-02", model.OperatingActive},
		{"12/31/2021", model.OperatingLikelyActive},
		{"06/01/2015", model.OperatingUncertain},
		{"01/01/2009", model.OperatingLikelyClosed},
		{"", model.OperatingLikelyClosed},
		{"not a date", model.OperatingLikelyClosed},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, OperatingStatusFor(tt.in))
		})
	}
}

func TestNormalize_Valid(t *testing.T) {
	lk := Lookups{
		ZIP: stubZIP{"78701": {
			ZIP:            "78701",
			HPSADesignated: model.BoolPtr(true),
			HPSAScore:      model.Float64Ptr(14),
			DiabetesPct:    model.Float64Ptr(0),
			Population:     model.Float64Ptr(11_950),
			RUCCCode:       model.IntPtr(6),
		}},
		State: stubState{"TX": {
			State:        "TX",
			PayerSpend:   model.Float64Ptr(1_140_000),
			DiabetesPct:  model.Float64Ptr(12.1),
			ObesityPct:   model.Float64Ptr(34.0),
			SeniorPct:    model.Float64Ptr(13.1),
			MedianIncome: model.Float64Ptr(-1_000_000),
		}},
	}
	raw := model.RawPharmacy{
		NPI:          "1234567893",
		Name:         "MAIN STREET PHARMACY",
		OwnerName:    "JANE DOE",
		Address1:     "123 MAIN ST",
		City:         "AUSTIN",
		State:        "texas",
		ZIP:          "787011234",
		Phone:        "5125550100",
		RegistryFlag: "A",
		LastUpdated:  "05/01/2024",
	}

	p, a, err := Normalize(context.Background(), raw, lk)
	require.NoError(t, err)

	assert.Equal(t, "Main Street Pharmacy", p.Name)
	assert.Equal(t, "Jane Doe", p.OwnerName)
	assert.Equal(t, "TX", p.State)
	assert.Equal(t, "78701", p.ZIP)
	assert.Equal(t, "(512) 555-0100", p.Phone)
	assert.Equal(t, model.StatusActive, p.Status)
	assert.Equal(t, model.OperatingActive, p.OperatingStatus)

	// ZIP-level zero is a real observation and wins over the state figure.
	require.NotNil(t, a.DiabetesPct)
	assert.Equal(t, 0.0, *a.DiabetesPct)
	require.NotNil(t, a.ObesityPct)
	assert.Equal(t, 34.0, *a.ObesityPct)
	require.NotNil(t, a.StatePayerSpend)
	assert.Equal(t, 1_140_000.0, *a.StatePayerSpend)
	assert.Nil(t, a.MedianIncome)
	require.NotNil(t, a.ZIPPopulation)
	assert.Equal(t, 11_950.0, *a.ZIPPopulation)
	require.NotNil(t, a.RUCCCode)
	assert.Equal(t, 6, *a.RUCCCode)
	assert.Equal(t, model.RuralAdjacent, a.RuralClass)
	assert.Equal(t, []string{IndicatorMedianIncome}, a.Unknown)
}

func TestNormalize_MissingRequired(t *testing.T) {
	_, _, err := Normalize(context.Background(), model.RawPharmacy{}, Lookups{})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
	assert.Contains(t, err.Error(), "npi: is required")
	assert.Contains(t, err.Error(), "name: is required")
	assert.Contains(t, err.Error(), "state: is required")
}

func TestNormalize_MalformedNPI(t *testing.T) {
	_, _, err := Normalize(context.Background(), model.RawPharmacy{
		NPI: "1234567890", Name: "X", State: "TX",
	}, Lookups{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid 10-digit NPI")
}

func TestNormalize_UnknownState(t *testing.T) {
	_, _, err := Normalize(context.Background(), model.RawPharmacy{
		NPI: "1234567893", Name: "X", State: "ZZ",
	}, Lookups{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `state: "ZZ" is not a recognized state`)
}

func TestNormalize_NoLookups(t *testing.T) {
	p, a, err := Normalize(context.Background(), model.RawPharmacy{
		NPI: "1234567893", Name: "Corner Drug", State: "OH",
	}, Lookups{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnverified, p.Status)
	assert.Equal(t, model.OperatingLikelyClosed, p.OperatingStatus)
	assert.ElementsMatch(t, []string{
		IndicatorHPSA, IndicatorDiabetes, IndicatorObesity,
		IndicatorSenior, IndicatorMedianIncome, IndicatorPayerSpend,
		IndicatorPopulation, IndicatorRUCC,
	}, a.Unknown)
	assert.Nil(t, a.DiabetesPct)
}

func TestAttach_RuralAndMarketSize(t *testing.T) {
	lk := Lookups{
		ZIP: stubZIP{
			"40422": {ZIP: "40422", Population: model.Float64Ptr(0), RUCCCode: model.IntPtr(7)},
			"10001": {ZIP: "10001", RUCCCode: model.IntPtr(12)},
		},
		State: stubState{"KY": {State: "KY", LossPerFill: model.Float64Ptr(41.25)}},
	}

	remote := Attach(context.Background(), "40422", "KY", lk)
	require.NotNil(t, remote.ZIPPopulation)
	assert.Equal(t, 0.0, *remote.ZIPPopulation, "zero population is observed")
	assert.Equal(t, model.RuralRemote, remote.RuralClass)
	assert.NotContains(t, remote.Unknown, IndicatorPopulation)
	assert.NotContains(t, remote.Unknown, IndicatorRUCC)
	require.NotNil(t, remote.StateLossPerFill)
	assert.Equal(t, 41.25, *remote.StateLossPerFill)

	// Out-of-range codes are dropped rather than classified.
	bad := Attach(context.Background(), "10001", "NY", lk)
	assert.Nil(t, bad.RUCCCode)
	assert.Empty(t, bad.RuralClass)
	assert.Contains(t, bad.Unknown, IndicatorRUCC)
	assert.Contains(t, bad.Unknown, IndicatorPopulation)
}

func TestFromState_LookupFailureDegrades(t *testing.T) {
	a := FromState(context.Background(), "TX", Lookups{State: failingState{}})
	assert.Nil(t, a.StatePayerSpend)
	assert.Contains(t, a.Unknown, IndicatorPayerSpend)
}

func TestFromState_IgnoresZIPLevel(t *testing.T) {
	a := FromState(context.Background(), "Texas", Lookups{
		State: stubState{"TX": {State: "TX", PayerSpend: model.Float64Ptr(900_000), MedianIncome: model.Float64Ptr(0)}},
	})
	require.NotNil(t, a.StatePayerSpend)
	assert.Equal(t, 900_000.0, *a.StatePayerSpend)
	require.NotNil(t, a.MedianIncome)
	assert.Equal(t, 0.0, *a.MedianIncome)
	assert.Contains(t, a.Unknown, IndicatorHPSA)
}

func TestVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := model.Pharmacy{NPI: "1234567893", Name: "Main Street Pharmacy", State: "TX", ZIP: "78701"}

	t.Run("match", func(t *testing.T) {
		got := Verify(base, model.RegistryRecord{
			NPI: base.NPI, Found: true, Name: "MAIN STREET PHARMACY, LLC", State: "TX", ZIP: "787011234",
			Status: "A", LastUpdated: "2025-02-01", OwnerName: "JANE DOE",
		}, now)
		assert.Equal(t, model.StatusActive, got.Status)
		assert.Empty(t, got.Mismatches)
		require.NotNil(t, got.VerifiedAt)
		assert.Equal(t, now, *got.VerifiedAt)
		assert.Equal(t, "Jane Doe", got.OwnerName)
		assert.Equal(t, model.OperatingActive, got.OperatingStatus)
	})

	t.Run("not found", func(t *testing.T) {
		got := Verify(base, model.RegistryRecord{NPI: base.NPI}, now)
		assert.Equal(t, model.StatusUnverified, got.Status)
		assert.Equal(t, []string{"npi: not found in registry"}, got.Mismatches)
		assert.Nil(t, got.VerifiedAt)
	})

	t.Run("mismatch", func(t *testing.T) {
		got := Verify(base, model.RegistryRecord{
			Found: true, Name: "Other Drug Co", State: "OK", ZIP: "73101", Status: "A",
		}, now)
		assert.Equal(t, model.StatusUnverified, got.Status)
		assert.Len(t, got.Mismatches, 3)
		assert.Equal(t, "Main Street Pharmacy", got.Name)
	})

	t.Run("deactivated", func(t *testing.T) {
		got := Verify(base, model.RegistryRecord{Found: true, Name: "Main Street Pharmacy", State: "TX", Status: "D"}, now)
		assert.Equal(t, model.StatusInactive, got.Status)
		require.NotNil(t, got.VerifiedAt)
	})
}

func TestCanonicalName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Main Street Pharmacy, LLC", "MAINSTREETPHARMACY"},
		{"Farmacia Mexico", "FARMACIAMEXICO"},
		{"FARMACIA MEXICO INC.", "FARMACIAMEXICO"},
		{"Smith & Co.", "SMITH"},
		{"Towne Drug Co, Inc", "TOWNEDRUG"},
		{"Disco Pharmacy", "DISCOPHARMACY"},
		{"Inc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, canonicalName(tt.in))
		})
	}

	assert.True(t, sameName("Farmacia Mexico", "FARMACIA MEXICO, INC"))
	assert.False(t, sameName("Farmacia Mexico", "Farmacia Mexicana"))
}

func TestDedup(t *testing.T) {
	in := []model.Pharmacy{
		{NPI: "1000000020", Name: "Oak Rx", Address1: "10 Oak Street Suite 1", ZIP: "30301"},
		{NPI: "1000000012", Name: "Oak Pharmacy", Address1: "10 OAK ST", ZIP: "30301", OwnerName: "Pat Lee"},
		{NPI: "1000000004", Name: "Oak Pharmacy Inc", Address1: "10 oak st.", ZIP: "30302"},
		{NPI: "1555555550", Name: "No Address"},
		{NPI: "1234567893", Name: "Oak", Address1: "10 Oak St", ZIP: "30301", Status: model.StatusActive},
	}
	kept, dropped := Dedup(in)
	assert.Equal(t, 2, dropped)
	require.Len(t, kept, 3)
	assert.Equal(t, "1234567893", kept[0].NPI)
	assert.Equal(t, "1000000004", kept[1].NPI)
	assert.Equal(t, "1555555550", kept[2].NPI)
}

func TestDedup_TieBreaks(t *testing.T) {
	kept, _ := Dedup([]model.Pharmacy{
		{NPI: "1000000020", Name: "Same", Address1: "1 Elm Rd", ZIP: "10001"},
		{NPI: "1000000012", Name: "Same", Address1: "1 Elm Road", ZIP: "10001"},
	})
	require.Len(t, kept, 1)
	assert.Equal(t, "1000000012", kept[0].NPI)
}

func TestIsChain(t *testing.T) {
	for _, name := range []string{
		"CVS Pharmacy #1234", "Walgreens Co", "WAL-MART PHARMACY 10-123", "Rite Aid",
		"H-E-B Pharmacy", "HEB #12", "Health Mart Drugs", "Sunrise Urgent Care",
	} {
		assert.True(t, IsChain(name), name)
	}
	for _, name := range []string{"Main Street Pharmacy", "Hebron Drug", "Targeted Health Rx"} {
		assert.False(t, IsChain(name), name)
	}
}

func TestIndependent(t *testing.T) {
	kept, dropped := Independent([]model.Pharmacy{
		{NPI: "1", Name: "Corner Drug"},
		{NPI: "2", Name: "CVS Pharmacy"},
		{NPI: "3", Name: "Acme Rx", Taxonomy: "Pharmacy - Compounding Pharmacy"},
	})
	assert.Equal(t, 2, dropped)
	require.Len(t, kept, 1)
	assert.Equal(t, "1", kept[0].NPI)
}
