package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/enrich"
	"github.com/sells-group/rx-intel/internal/estimate"
	"github.com/sells-group/rx-intel/internal/model"
	"github.com/sells-group/rx-intel/internal/scorer"
	"github.com/sells-group/rx-intel/internal/store"
)

var (
	scoreState string
	scoreTop   int
	scoreDry   bool
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Rescore the stored collection and print the ranking",
	Long: `Recomputes every stored record's score breakdown and benchmark estimate
with the current calibration, saves the result and prints the top of the
ranking with a grade summary.

Examples:
  # Rescore everything and show the top 25
  score --top 25

  # Preview a recalibration for Texas without saving
  score --state TX --dry-run`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("cli"); err != nil {
			return err
		}

		filter := store.PharmacyFilter{}
		if scoreState != "" {
			st, ok := enrich.NormalizeState(scoreState)
			if !ok {
				return eris.Errorf("score: unknown state %q", scoreState)
			}
			filter.State = st
		}

		env, err := initEnv(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer env.Close()

		rows, dist, err := rescoreCollection(ctx, env, filter, !scoreDry, cfg.Batch.ShardSize)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if err := writeRanking(out, rows, scoreTop); err != nil {
			return err
		}
		printDistribution(out, dist, len(rows))
		return nil
	},
}

func init() {
	f := scoreCmd.Flags()
	f.StringVar(&scoreState, "state", "", "limit to one state")
	f.IntVar(&scoreTop, "top", 20, "number of ranked rows to print")
	f.BoolVar(&scoreDry, "dry-run", false, "compute and print without saving")
	rootCmd.AddCommand(scoreCmd)
}

// rescoreCollection rescores and ranks the matching rows, saving them when
// save is set.
func rescoreCollection(ctx context.Context, env *appEnv, filter store.PharmacyFilter, save bool, chunk int) ([]model.ScoredPharmacy, scorer.Distribution, error) {
	rows, err := loadCollection(ctx, env.Store, filter)
	if err != nil {
		return nil, nil, err
	}

	dist := env.Scorer.Rescore(rows)
	now := time.Now().UTC()
	for i := range rows {
		rows[i].Estimate = env.Calc.Benchmark(rows[i].Attributes)
		rows[i].UpdatedAt = now
	}
	scorer.Rank(rows)

	if save {
		n, err := storeChunks(ctx, env, rows, chunk)
		if err != nil {
			return nil, nil, err
		}
		zap.L().Info("score: saved", zap.Int64("rows", n))
	}
	return rows, dist, nil
}

func writeRanking(w io.Writer, rows []model.ScoredPharmacy, top int) error {
	header := fmt.Sprintf("%-4s %-10s %-40s %-5s %6s %5s %-22s %12s\n",
		"#", "NPI", "Pharmacy", "State", "Score", "Grade", "Segment", "Est. Loss/mo")
	if _, err := fmt.Fprint(w, header); err != nil {
		return eris.Wrap(err, "score: write table header")
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", 113)); err != nil {
		return eris.Wrap(err, "score: write table separator")
	}

	for i, r := range rows {
		if i >= top {
			break
		}
		name := r.Pharmacy.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		line := fmt.Sprintf("%-4d %-10s %-40s %-5s %6.1f %5s %-22s %12s\n",
			i+1, r.Pharmacy.NPI, name, r.Pharmacy.State, r.Score.Composite,
			r.Score.Grade, r.Score.Segment, estimate.FormatCurrency(r.Estimate.MonthlyLoss))
		if _, err := fmt.Fprint(w, line); err != nil {
			return eris.Wrap(err, "score: write table row")
		}
	}
	return nil
}

func printDistribution(w io.Writer, dist scorer.Distribution, total int) {
	if total == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	fmt.Fprintf(w, "\n--- Summary ---\n")
	fmt.Fprintf(w, "Total scored:  %d\n", total)
	for _, g := range []model.Grade{model.GradeA, model.GradeB, model.GradeC, model.GradeD} {
		fmt.Fprintf(w, "Grade %s:       %d (%.1f%%)  %s\n", g, dist[g], float64(dist[g])/float64(total)*100, g.Priority())
	}
}
