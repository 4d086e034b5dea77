package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/urbanhealthlab/icemapper/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline",
	Long: `Fetch ACS estimates, compute indices, tally incidents, and export the
joined table in one pass. Stages that need no network input (compute,
export) run even when earlier flags skip their upstream stage.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		skipFetch, _ := cmd.Flags().GetBool("skip-fetch")
		skipIncidents, _ := cmd.Flags().GetBool("skip-incidents")

		year, counties, err := fetchScope(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return recordRun(ctx, st, "run", func(ctx context.Context) (map[string]any, error) {
			return runPipeline(ctx, st, year, counties, skipFetch, skipIncidents)
		})
	},
}

func init() {
	runCmd.Flags().Int("year", 0, "ACS vintage override (default from config)")
	runCmd.Flags().String("counties", "", "comma-separated county FIPS override")
	runCmd.Flags().Bool("skip-fetch", false, "reuse stored raw counts instead of fetching")
	runCmd.Flags().Bool("skip-incidents", false, "reuse stored incident tallies")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(ctx context.Context, st store.Store, year int, counties []string, skipFetch, skipIncidents bool) (map[string]any, error) {
	log := zap.L().With(zap.String("command", "run"))
	summary := map[string]any{"year": year}

	// The demographic branch (fetch then compute) and the incident branch
	// are independent until the export join, so they run concurrently.
	var fetchSummary, computeSummary, incidentSummary map[string]any

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if !skipFetch {
			s, err := runFetch(gCtx, st, year, counties)
			if err != nil {
				return err
			}
			fetchSummary = s
		}
		s, err := runCompute(gCtx, st, year)
		if err != nil {
			return err
		}
		computeSummary = s
		return nil
	})
	g.Go(func() error {
		if skipIncidents {
			return nil
		}
		s, err := runIncidents(gCtx, st, cfg.Incidents.CSVPath, cfg.Tracts.ShapefilePath)
		if err != nil {
			return err
		}
		incidentSummary = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return summary, err
	}
	if fetchSummary != nil {
		summary["fetch"] = fetchSummary
	}
	summary["compute"] = computeSummary
	if incidentSummary != nil {
		summary["incidents"] = incidentSummary
	}

	s, err := runExport(ctx, st, year, cfg.Export.CSVPath, cfg.Export.XLSXPath)
	if err != nil {
		return summary, err
	}
	summary["export"] = s

	log.Info("pipeline complete", zap.Int("year", year))
	return summary, nil
}
