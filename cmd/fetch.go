package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanhealthlab/icemapper/internal/acs"
	"github.com/urbanhealthlab/icemapper/internal/store"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch ACS tract estimates into the store",
	Long: `Fetch ACS 5-year tract estimates for the configured state and counties.

Counts are upserted keyed by (geo_id, vintage), so re-fetching a vintage
replaces the previous pull.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		year, counties, err := fetchScope(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return recordRun(ctx, st, "fetch", func(ctx context.Context) (map[string]any, error) {
			return runFetch(ctx, st, year, counties)
		})
	},
}

func init() {
	fetchCmd.Flags().Int("year", 0, "ACS vintage override (default from config)")
	fetchCmd.Flags().String("counties", "", "comma-separated county FIPS override (e.g., 047,061)")
	rootCmd.AddCommand(fetchCmd)
}

func fetchScope(cmd *cobra.Command) (int, []string, error) {
	year, err := cmd.Flags().GetInt("year")
	if err != nil {
		return 0, nil, eris.Wrap(err, "fetch: year flag")
	}
	if year == 0 {
		year = cfg.Census.Year
	}

	raw, err := cmd.Flags().GetString("counties")
	if err != nil {
		return 0, nil, eris.Wrap(err, "fetch: counties flag")
	}
	counties := cfg.Census.Counties
	if raw != "" {
		counties = nil
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				counties = append(counties, c)
			}
		}
	}
	if len(counties) == 0 {
		return 0, nil, eris.New("fetch: no counties configured")
	}
	return year, counties, nil
}

func runFetch(ctx context.Context, st store.Store, year int, counties []string) (map[string]any, error) {
	log := zap.L().With(zap.String("command", "fetch"))
	log.Info("fetching ACS estimates",
		zap.Int("year", year),
		zap.String("state", cfg.Census.State),
		zap.Strings("counties", counties),
	)

	client := acs.NewClient(newFetcher(), acs.Options{
		BaseURL: cfg.Census.BaseURL,
		APIKey:  cfg.Census.APIKey,
		Year:    year,
		State:   cfg.Census.State,
	})

	recs, err := client.FetchCounties(ctx, counties, cfg.Fetch.MaxConcurrency)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: ACS estimates")
	}

	n, err := st.UpsertRawCounts(ctx, year, recs)
	if err != nil {
		return nil, err
	}

	log.Info("fetch complete", zap.Int64("tracts", n))
	return map[string]any{"year": year, "tracts": n}, nil
}
