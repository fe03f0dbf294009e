package main

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/dataset"
	"github.com/sells-group/rx-intel/internal/enrich"
	"github.com/sells-group/rx-intel/internal/model"
	"github.com/sells-group/rx-intel/internal/scorer"
	"github.com/sells-group/rx-intel/pkg/nppes"
)

var (
	importNPPES   string
	importDataset string
	importRescore bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load pharmacies into the collection",
	Long: `Loads pharmacies from an NPPES bulk extract (--nppes) or from a previously
exported dataset (--dataset). Extract rows are normalized, enriched, filtered
to independents, deduplicated by location, scored and estimated before they
are stored. Dataset rows are stored as exported unless --rescore is set.

Files ending in .gz are decompressed.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if (importNPPES == "") == (importDataset == "") {
			return eris.New("exactly one of --nppes or --dataset is required")
		}
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer env.Close()

		var stats importStats
		if importNPPES != "" {
			r, err := dataset.Open(importNPPES)
			if err != nil {
				return err
			}
			defer r.Close() //nolint:errcheck
			stats, err = importExtract(ctx, env, r, cfg.Batch.ShardSize)
			if err != nil {
				return err
			}
		} else {
			stats, err = importRows(ctx, env, importDataset, importRescore, cfg.Batch.ShardSize)
			if err != nil {
				return err
			}
		}

		zap.L().Info("import complete",
			zap.Int("read", stats.Read),
			zap.Int("invalid", stats.Invalid),
			zap.Int("chains", stats.Chains),
			zap.Int("duplicates", stats.Duplicates),
			zap.Int64("stored", stats.Stored),
			zap.Int("grade_a", stats.Grades[model.GradeA]),
			zap.Int("grade_b", stats.Grades[model.GradeB]),
			zap.Int("grade_c", stats.Grades[model.GradeC]),
			zap.Int("grade_d", stats.Grades[model.GradeD]),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importNPPES, "nppes", "", "path to an NPPES bulk extract CSV")
	importCmd.Flags().StringVar(&importDataset, "dataset", "", "path to an exported dataset (.csv, .csv.gz, .xlsx, .parquet)")
	importCmd.Flags().BoolVar(&importRescore, "rescore", false, "recompute scores for dataset rows")
	rootCmd.AddCommand(importCmd)
}

// importStats summarizes an import.
type importStats struct {
	Read       int
	Invalid    int
	Chains     int
	Duplicates int
	Stored     int64
	Grades     scorer.Distribution
}

// importExtract streams an NPPES extract into the store.
func importExtract(ctx context.Context, env *appEnv, r io.Reader, chunk int) (importStats, error) {
	var stats importStats
	var pharmacies []model.Pharmacy
	attrs := make(map[string]model.EnrichmentAttributes)

	_, err := nppes.ReadExtract(ctx, r, func(raw model.RawPharmacy) error {
		stats.Read++
		p, a, err := enrich.Normalize(ctx, raw, env.Lookups)
		if err != nil {
			if model.IsValidation(err) {
				stats.Invalid++
				zap.L().Debug("import: skipping invalid record", zap.String("npi", raw.NPI), zap.Error(err))
				return nil
			}
			return err
		}
		pharmacies = append(pharmacies, p)
		attrs[p.NPI] = a
		return nil
	})
	if err != nil {
		return stats, eris.Wrap(err, "import: read extract")
	}

	pharmacies, stats.Chains = enrich.Independent(pharmacies)
	pharmacies, stats.Duplicates = enrich.Dedup(pharmacies)

	now := time.Now().UTC()
	rows := make([]model.ScoredPharmacy, 0, len(pharmacies))
	for _, p := range pharmacies {
		a := attrs[p.NPI]
		rows = append(rows, model.ScoredPharmacy{
			Pharmacy:   p,
			Attributes: a,
			Score:      env.Scorer.Score(a),
			Estimate:   env.Calc.Benchmark(a),
			UpdatedAt:  now,
		})
	}
	scorer.Rank(rows)
	stats.Grades = scorer.GradeDistribution(rows)

	stats.Stored, err = storeChunks(ctx, env, rows, chunk)
	return stats, err
}

// importRows loads an exported dataset back into the store.
func importRows(ctx context.Context, env *appEnv, path string, rescore bool, chunk int) (importStats, error) {
	var stats importStats
	in, err := dataset.Import(ctx, path)
	if err != nil {
		return stats, err
	}
	stats.Read = len(in)

	rows := make([]model.ScoredPharmacy, 0, len(in))
	for _, r := range in {
		sp, err := r.Scored()
		if err != nil {
			stats.Invalid++
			zap.L().Warn("import: skipping row", zap.String("npi", r.NPI), zap.Error(err))
			continue
		}
		rows = append(rows, sp)
	}

	if rescore {
		stats.Grades = env.Scorer.Rescore(rows)
		for i := range rows {
			rows[i].Estimate = env.Calc.Benchmark(rows[i].Attributes)
		}
	} else {
		stats.Grades = scorer.GradeDistribution(rows)
	}

	stats.Stored, err = storeChunks(ctx, env, rows, chunk)
	return stats, err
}

func storeChunks(ctx context.Context, env *appEnv, rows []model.ScoredPharmacy, chunk int) (int64, error) {
	if chunk <= 0 {
		chunk = len(rows)
	}
	var stored int64
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		n, err := env.Store.UpsertPharmacies(ctx, rows[start:end])
		if err != nil {
			return stored, eris.Wrap(err, "import: store pharmacies")
		}
		stored += n
	}
	return stored, nil
}
