package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanhealthlab/icemapper/internal/incident"
	"github.com/urbanhealthlab/icemapper/internal/store"
	"github.com/urbanhealthlab/icemapper/internal/tract"
)

var incidentsCmd = &cobra.Command{
	Use:   "incidents",
	Short: "Tally shooting incidents per tract",
	Long: `Parse the shooting-incident extract, assign each incident to a Census
tract via the boundary shapefile, and upsert the per-tract tallies.

The extract is read from --csv if given, otherwise downloaded from the
configured URL.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		csvPath, _ := cmd.Flags().GetString("csv")
		shpPath, _ := cmd.Flags().GetString("shapefile")
		if csvPath == "" {
			csvPath = cfg.Incidents.CSVPath
		}
		if shpPath == "" {
			shpPath = cfg.Tracts.ShapefilePath
		}
		if shpPath == "" {
			return eris.New("incidents: no shapefile configured")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return recordRun(ctx, st, "incidents", func(ctx context.Context) (map[string]any, error) {
			return runIncidents(ctx, st, csvPath, shpPath)
		})
	},
}

func init() {
	incidentsCmd.Flags().String("csv", "", "path to the shooting-incident CSV (overrides config)")
	incidentsCmd.Flags().String("shapefile", "", "path to the tract boundary shapefile (overrides config)")
	rootCmd.AddCommand(incidentsCmd)
}

func runIncidents(ctx context.Context, st store.Store, csvPath, shpPath string) (map[string]any, error) {
	log := zap.L().With(zap.String("command", "incidents"))

	loc, err := tract.LoadShapefile(shpPath)
	if err != nil {
		return nil, err
	}
	log.Info("loaded tract boundaries", zap.Int("tracts", loc.Len()))

	r, err := openIncidentSource(ctx, csvPath)
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck

	parsed, err := incident.ParseCSV(ctx, r)
	if err != nil {
		return nil, err
	}
	log.Info("parsed incidents",
		zap.Int("incidents", len(parsed.Incidents)),
		zap.Int("malformed", parsed.Malformed),
	)

	result := incident.CountByTract(parsed.Incidents, loc)
	if result.Unassigned > 0 || result.Unlocatable > 0 {
		log.Warn("incidents not assigned to a tract",
			zap.Int("outside_boundaries", result.Unassigned),
			zap.Int("missing_coordinates", result.Unlocatable),
		)
	}

	n, err := st.UpsertIncidentCounts(ctx, result.Counts)
	if err != nil {
		return nil, err
	}

	log.Info("incident tally complete", zap.Int64("tracts", n))
	return map[string]any{
		"incidents":   len(parsed.Incidents),
		"malformed":   parsed.Malformed,
		"tracts":      n,
		"unassigned":  result.Unassigned,
		"unlocatable": result.Unlocatable,
	}, nil
}

// openIncidentSource prefers a local CSV; falls back to the configured URL.
func openIncidentSource(ctx context.Context, csvPath string) (io.ReadCloser, error) {
	if csvPath != "" {
		f, err := os.Open(csvPath)
		if err != nil {
			return nil, eris.Wrapf(err, "incidents: open %s", csvPath)
		}
		return f, nil
	}
	if cfg.Incidents.URL == "" {
		return nil, eris.New("incidents: no CSV path or URL configured")
	}
	return newFetcher().Download(ctx, cfg.Incidents.URL)
}
