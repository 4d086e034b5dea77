package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanhealthlab/icemapper/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "icemapper",
	Short: "Census tract segregation index pipeline",
	Long:  "Fetches ACS tract estimates, derives Index of Concentration at the Extremes measures, tallies shooting incidents per tract, exports the joined table for GIS analysis.",
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
