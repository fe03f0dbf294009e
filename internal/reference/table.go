// Package reference loads the ZIP-level and state-level indicator tables
// that enrichment looks pharmacies up in.
package reference

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/dataset"
	"github.com/sells-group/rx-intel/internal/enrich"
	"github.com/sells-group/rx-intel/internal/model"
)

// Table is an in-memory indicator table. It is read-only after loading and
// safe for concurrent lookups.
type Table struct {
	zips   map[string]model.ZIPIndicators
	states map[string]model.StateIndicators
}

// NewTable builds a table from already-parsed indicators.
func NewTable(zips []model.ZIPIndicators, states []model.StateIndicators) *Table {
	t := &Table{
		zips:   make(map[string]model.ZIPIndicators, len(zips)),
		states: make(map[string]model.StateIndicators, len(states)),
	}
	for _, z := range zips {
		t.zips[z.ZIP] = z
	}
	for _, s := range states {
		t.states[s.State] = s
	}
	return t
}

// ZIPIndicators implements enrich.ZIPLookup.
func (t *Table) ZIPIndicators(_ context.Context, zip string) (*model.ZIPIndicators, error) {
	z, ok := t.zips[zip]
	if !ok {
		return nil, nil
	}
	return &z, nil
}

// StateIndicators implements enrich.StateLookup.
func (t *Table) StateIndicators(_ context.Context, state string) (*model.StateIndicators, error) {
	s, ok := t.states[state]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

// Lookups returns the table as enrichment lookups.
func (t *Table) Lookups() enrich.Lookups {
	return enrich.Lookups{ZIP: t, State: t}
}

// Len returns the number of ZIP and state entries.
func (t *Table) Len() (zips, states int) {
	return len(t.zips), len(t.states)
}

// Load reads the ZIP and state tables. Either path may be empty; files
// ending in .gz are decompressed.
func Load(ctx context.Context, zipPath, statePath string) (*Table, error) {
	var zips []model.ZIPIndicators
	var states []model.StateIndicators
	var err error

	if zipPath != "" {
		if zips, err = LoadZIPs(ctx, zipPath); err != nil {
			return nil, err
		}
	}
	if statePath != "" {
		if states, err = LoadStates(ctx, statePath); err != nil {
			return nil, err
		}
	}

	zap.L().Info("reference: tables loaded",
		zap.Int("zips", len(zips)),
		zap.Int("states", len(states)),
	)
	return NewTable(zips, states), nil
}

// LoadZIPs parses a ZIP indicator CSV with columns zip, hpsa_designated,
// hpsa_score, diabetes_pct, obesity_pct, senior_pct, median_income,
// population, rucc_code.
func LoadZIPs(ctx context.Context, path string) ([]model.ZIPIndicators, error) {
	var out []model.ZIPIndicators
	err := readCSV(ctx, path, "zip", func(h dataset.Header, rec []string) error {
		zip := enrich.NormalizeZIP(h.Get(rec, "zip"))
		if zip == "" {
			return eris.Errorf("invalid zip %q", h.Get(rec, "zip"))
		}
		z := model.ZIPIndicators{ZIP: zip}
		var err error
		if z.HPSADesignated, err = dataset.ParseOptBool(h.Get(rec, "hpsa_designated")); err != nil {
			return eris.Wrap(err, "hpsa_designated")
		}
		if err := parseFloats(h, rec, map[string]**float64{
			"hpsa_score":    &z.HPSAScore,
			"diabetes_pct":  &z.DiabetesPct,
			"obesity_pct":   &z.ObesityPct,
			"senior_pct":    &z.SeniorPct,
			"median_income": &z.MedianIncome,
			"population":    &z.Population,
		}); err != nil {
			return err
		}
		if z.RUCCCode, err = dataset.ParseOptInt(strings.TrimSpace(h.Get(rec, "rucc_code"))); err != nil {
			return eris.Wrap(err, "rucc_code")
		}
		out = append(out, z)
		return nil
	})
	return out, err
}

// LoadStates parses a state indicator CSV with columns state,
// payer_spend_per_pharmacy, diabetes_pct, obesity_pct, senior_pct,
// median_income, pharmacy_count, loss_per_fill. States may be abbreviations
// or names.
func LoadStates(ctx context.Context, path string) ([]model.StateIndicators, error) {
	var out []model.StateIndicators
	err := readCSV(ctx, path, "state", func(h dataset.Header, rec []string) error {
		st, ok := enrich.NormalizeState(h.Get(rec, "state"))
		if !ok {
			return eris.Errorf("unknown state %q", h.Get(rec, "state"))
		}
		s := model.StateIndicators{State: st}
		if err := parseFloats(h, rec, map[string]**float64{
			"payer_spend_per_pharmacy": &s.PayerSpend,
			"diabetes_pct":             &s.DiabetesPct,
			"obesity_pct":              &s.ObesityPct,
			"senior_pct":               &s.SeniorPct,
			"median_income":            &s.MedianIncome,
			"loss_per_fill":            &s.LossPerFill,
		}); err != nil {
			return err
		}
		if v := h.Get(rec, "pharmacy_count"); v != "" {
			n, err := strconv.Atoi(strings.ReplaceAll(v, ",", ""))
			if err != nil {
				return eris.Wrap(err, "pharmacy_count")
			}
			s.PharmacyCount = n
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func readCSV(ctx context.Context, path, keyCol string, fn func(dataset.Header, []string) error) error {
	f, err := dataset.Open(path)
	if err != nil {
		return eris.Wrap(err, "reference: open")
	}
	defer f.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	header, rowCh, errCh := dataset.StreamCSV(ctx, f)
	if header != nil && !header.Has(keyCol) {
		cancel()
		for range rowCh {
		}
		return eris.Errorf("reference: %s: missing %q column", path, keyCol)
	}

	line := 1
	for rec := range rowCh {
		line++
		if err := fn(header, rec); err != nil {
			cancel()
			for range rowCh {
			}
			return eris.Wrapf(err, "reference: %s line %d", path, line)
		}
	}
	if err := <-errCh; err != nil {
		return eris.Wrapf(err, "reference: %s", path)
	}
	return nil
}

func parseFloats(h dataset.Header, rec []string, dst map[string]**float64) error {
	for col, p := range dst {
		v, err := dataset.ParseOptFloat(h.Get(rec, col))
		if err != nil {
			return eris.Wrap(err, col)
		}
		*p = v
	}
	return nil
}
