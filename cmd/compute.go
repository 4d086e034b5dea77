package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanhealthlab/icemapper/internal/ice"
	"github.com/urbanhealthlab/icemapper/internal/store"
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Derive ICE indices from stored raw counts",
	Long: `Compute the four Index of Concentration at the Extremes measures and
demographic proportions for every tract with stored raw counts.

Tracts with missing source counts are skipped and reported; out-of-range
results are stored but flagged as anomalous.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		year, err := cmd.Flags().GetInt("year")
		if err != nil {
			return eris.Wrap(err, "compute: year flag")
		}
		if year == 0 {
			year = cfg.Census.Year
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return recordRun(ctx, st, "compute", func(ctx context.Context) (map[string]any, error) {
			return runCompute(ctx, st, year)
		})
	},
}

func init() {
	computeCmd.Flags().Int("year", 0, "ACS vintage override (default from config)")
	rootCmd.AddCommand(computeCmd)
}

func runCompute(ctx context.Context, st store.Store, year int) (map[string]any, error) {
	log := zap.L().With(zap.String("command", "compute"))

	schema, err := bracketSchema()
	if err != nil {
		return nil, err
	}
	log.Debug("income bracket schema", zap.Strings("brackets", schema.Labels()))

	recs, err := st.ListRawCounts(ctx, year)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, eris.Errorf("compute: no raw counts stored for vintage %d; run fetch first", year)
	}

	result := ice.ComputeBatch(recs)

	for _, s := range result.Skipped {
		log.Warn("tract skipped",
			zap.String("geo_id", s.GeoID),
			zap.String("reason", s.Reason),
		)
	}
	for _, geoID := range result.Anomalous {
		log.Warn("index outside expected range", zap.String("geo_id", geoID))
	}

	n, err := st.UpsertIndices(ctx, year, result.Indices)
	if err != nil {
		return nil, err
	}

	log.Info("compute complete",
		zap.Int("year", year),
		zap.Int64("tracts", n),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("anomalous", len(result.Anomalous)),
	)
	return map[string]any{
		"year":      year,
		"tracts":    n,
		"skipped":   len(result.Skipped),
		"anomalous": len(result.Anomalous),
	}, nil
}

// bracketSchema loads the configured income bracket schema, validating it
// against the fixed bracket shape the calculator assumes.
func bracketSchema() (ice.Schema, error) {
	if cfg.Export.BracketYAML == "" {
		return ice.DefaultSchema(), nil
	}
	return ice.LoadSchema(cfg.Export.BracketYAML)
}
