package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/rx-intel/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "rx-intel",
	Short: "Pharmacy opportunity scoring and financial-impact estimation",
	Long: `Scores independent community pharmacies on opportunity, financial impact
and urgency, estimates their monthly GLP-1 reimbursement loss, and keeps a
verified, ranked collection that can be re-verified against the NPI registry
and exported for outreach.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
