package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/dataset"
	"github.com/sells-group/rx-intel/internal/enrich"
	"github.com/sells-group/rx-intel/internal/model"
	"github.com/sells-group/rx-intel/internal/scorer"
	"github.com/sells-group/rx-intel/internal/store"
)

var (
	exportOutput string
	exportState  string
	exportAll    bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the ranked collection for CRM import",
	Long: `Writes one row per pharmacy, best composite score first. Only verified
(active) records are exported unless --all is set. The format follows the
output extension: .csv, .csv.gz, .xlsx or .parquet.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("export"); err != nil {
			return err
		}
		if _, err := dataset.FormatFor(exportOutput); err != nil {
			return err
		}

		filter := store.PharmacyFilter{VerifiedOnly: !exportAll}
		if exportState != "" {
			st, ok := enrich.NormalizeState(exportState)
			if !ok {
				return eris.Errorf("unknown state %q", exportState)
			}
			filter.State = st
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := exportCollection(ctx, st, filter, exportOutput)
		if err != nil {
			return err
		}
		zap.L().Info("export complete", zap.Int("rows", n), zap.String("path", exportOutput))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "output path (required)")
	exportCmd.Flags().StringVar(&exportState, "state", "", "limit to one state")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "include unverified and inactive records")
	_ = exportCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(exportCmd)
}

func exportCollection(ctx context.Context, st store.Store, filter store.PharmacyFilter, path string) (int, error) {
	all, err := loadCollection(ctx, st, filter)
	if err != nil {
		return 0, err
	}
	scorer.Rank(all)

	rows := make([]dataset.Row, 0, len(all))
	for _, sp := range all {
		rows = append(rows, dataset.FromScored(sp))
	}
	if err := dataset.Export(path, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// loadCollection pages through every row matching filter in NPI order.
func loadCollection(ctx context.Context, st store.Store, filter store.PharmacyFilter) ([]model.ScoredPharmacy, error) {
	filter.ByScore = false
	filter.Limit = store.DefaultListLimit

	var out []model.ScoredPharmacy
	for {
		page, err := st.ListPharmacies(ctx, filter)
		if err != nil {
			return nil, eris.Wrap(err, "load collection")
		}
		out = append(out, page...)
		if len(page) < filter.Limit {
			return out, nil
		}
		filter.AfterNPI = page[len(page)-1].Pharmacy.NPI
	}
}
