package nppes

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/dataset"
	"github.com/sells-group/rx-intel/internal/model"
)

// CommunityPharmacyTaxonomy is the community/retail pharmacy taxonomy code.
const CommunityPharmacyTaxonomy = "3336C0003X"

// Bulk extract column names.
const (
	colNPI           = "NPI"
	colEntityType    = "Entity Type Code"
	colLegalName     = "Provider Organization Name (Legal Business Name)"
	colOtherName     = "Provider Other Organization Name"
	colAddress       = "Provider First Line Business Practice Location Address"
	colCity          = "Provider Business Practice Location Address City Name"
	colState         = "Provider Business Practice Location Address State Name"
	colPostal        = "Provider Business Practice Location Address Postal Code"
	colPhone         = "Provider Business Practice Location Address Telephone Number"
	colLastUpdated   = "Last Update Date"
	colDeactivation  = "NPI Deactivation Reason Code"
	colOfficialFirst = "Authorized Official First Name"
	colOfficialLast  = "Authorized Official Last Name"
)

const maxTaxonomySlots = 15

// ExtractStats counts what ReadExtract saw.
type ExtractStats struct {
	Rows        int `json:"rows"`
	Pharmacies  int `json:"pharmacies"`
	Deactivated int `json:"deactivated"`
}

// ReadExtract streams the registry bulk CSV and calls fn for every active
// organization carrying the community pharmacy taxonomy in any slot.
// Returning an error from fn stops the read.
func ReadExtract(ctx context.Context, r io.Reader, fn func(model.RawPharmacy) error) (ExtractStats, error) {
	var stats ExtractStats

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h, rows, errs := dataset.StreamCSV(ctx, r)
	if h != nil && !h.Has(colNPI) {
		drain(cancel, rows)
		return stats, eris.Errorf("nppes: extract is missing the %q column", colNPI)
	}

	for rec := range rows {
		stats.Rows++
		if h.Get(rec, colEntityType) != "2" || !hasTaxonomy(h, rec, CommunityPharmacyTaxonomy) {
			continue
		}
		if h.Get(rec, colDeactivation) != "" {
			stats.Deactivated++
			continue
		}

		stats.Pharmacies++
		if err := fn(toRaw(h, rec)); err != nil {
			drain(cancel, rows)
			return stats, err
		}
	}
	if err := <-errs; err != nil {
		return stats, eris.Wrap(err, "nppes: read extract")
	}

	zap.L().Info("nppes: extract read",
		zap.Int("rows", stats.Rows),
		zap.Int("pharmacies", stats.Pharmacies),
		zap.Int("deactivated", stats.Deactivated),
	)
	return stats, nil
}

func drain(cancel context.CancelFunc, rows <-chan []string) {
	cancel()
	for range rows {
	}
}

func hasTaxonomy(h dataset.Header, rec []string, code string) bool {
	for i := 1; i <= maxTaxonomySlots; i++ {
		if h.Get(rec, fmt.Sprintf("Healthcare Provider Taxonomy Code_%d", i)) == code {
			return true
		}
	}
	return false
}

// toRaw prefers the doing-business-as name over the legal name.
func toRaw(h dataset.Header, rec []string) model.RawPharmacy {
	name := h.Get(rec, colLegalName)
	if dba := h.Get(rec, colOtherName); dba != "" && dba != "<UNAVAIL>" {
		name = dba
	}
	return model.RawPharmacy{
		NPI:          h.Get(rec, colNPI),
		Name:         name,
		OwnerName:    strings.TrimSpace(h.Get(rec, colOfficialFirst) + " " + h.Get(rec, colOfficialLast)),
		Address1:     h.Get(rec, colAddress),
		City:         h.Get(rec, colCity),
		State:        h.Get(rec, colState),
		ZIP:          h.Get(rec, colPostal),
		Phone:        h.Get(rec, colPhone),
		Taxonomy:     CommunityPharmacyTaxonomy,
		RegistryFlag: "A",
		LastUpdated:  h.Get(rec, colLastUpdated),
	}
}
