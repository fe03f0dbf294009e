package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/rx-intel/internal/batch"
)

var (
	reverifyStartAfter string
	reverifyResume     bool
	reverifyLimit      int
	reverifyNoProgress bool
)

var reverifyCmd = &cobra.Command{
	Use:   "reverify",
	Short: "Re-verify the stored collection against the NPI registry",
	Long: `Walks the collection in NPI order, one shard at a time, and reconciles each
record with the registry. Records the registry disagrees with are flagged
unverified and kept. Interrupting the run (Ctrl-C) stops new lookups; rerun
with --resume to continue after the last completed shard.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("reverify"); err != nil {
			return err
		}
		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var progress batch.Progress = batch.NoopProgress{}
		if !reverifyNoProgress {
			progress = batch.NewBarProgress(os.Stderr)
		}

		r := batch.NewReverifier(st, initRegistry(cfg), cfg.Batch, batch.WithProgress(progress))
		_, err = r.Run(ctx, batch.Options{
			StartAfter: reverifyStartAfter,
			Resume:     reverifyResume,
			Limit:      reverifyLimit,
		})
		return err
	},
}

func init() {
	f := reverifyCmd.Flags()
	f.StringVar(&reverifyStartAfter, "start-after", "", "skip NPIs up to and including this one")
	f.BoolVar(&reverifyResume, "resume", false, "continue after the last completed shard of an unfinished run")
	f.IntVar(&reverifyLimit, "limit", 0, "stop after this many records (0 = all)")
	f.BoolVar(&reverifyNoProgress, "no-progress", false, "disable the progress bar")
	rootCmd.AddCommand(reverifyCmd)
}
