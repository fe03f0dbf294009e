package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/reference"
	"github.com/sells-group/rx-intel/internal/store"
)

var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Manage the ZIP and state indicator tables",
}

var referenceSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Load the configured indicator files into the Postgres reference tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if cfg.Reference.ZIPFile == "" && cfg.Reference.StateFile == "" {
			return eris.New("reference.zip_file or reference.state_file is required (RXINTEL_REFERENCE_ZIP_FILE)")
		}
		if cfg.Store.Driver != "postgres" {
			return eris.Errorf("reference sync needs the postgres store, got %q", cfg.Store.Driver)
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		t, err := reference.Load(ctx, cfg.Reference.ZIPFile, cfg.Reference.StateFile)
		if err != nil {
			return err
		}
		lk := reference.NewPGLookup(st.(*store.PostgresStore).Pool())
		if err := lk.Migrate(ctx); err != nil {
			return err
		}
		if err := lk.Sync(ctx, t); err != nil {
			return err
		}

		zips, states := t.Len()
		zap.L().Info("reference sync complete", zap.Int("zips", zips), zap.Int("states", states))
		return nil
	},
}

func init() {
	referenceCmd.AddCommand(referenceSyncCmd)
	rootCmd.AddCommand(referenceCmd)
}
