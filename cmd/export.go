package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanhealthlab/icemapper/internal/export"
	"github.com/urbanhealthlab/icemapper/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the joined tract table",
	Long: `Join stored indices with incident tallies by tract and write the
result. CSV always; XLSX additionally when a path is configured or given.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		year, err := cmd.Flags().GetInt("year")
		if err != nil {
			return eris.Wrap(err, "export: year flag")
		}
		if year == 0 {
			year = cfg.Census.Year
		}

		csvPath, _ := cmd.Flags().GetString("out")
		if csvPath == "" {
			csvPath = cfg.Export.CSVPath
		}
		xlsxPath, _ := cmd.Flags().GetString("xlsx")
		if xlsxPath == "" {
			xlsxPath = cfg.Export.XLSXPath
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		return recordRun(ctx, st, "export", func(ctx context.Context) (map[string]any, error) {
			return runExport(ctx, st, year, csvPath, xlsxPath)
		})
	},
}

func init() {
	exportCmd.Flags().Int("year", 0, "ACS vintage override (default from config)")
	exportCmd.Flags().String("out", "", "CSV output path (overrides config)")
	exportCmd.Flags().String("xlsx", "", "XLSX output path (overrides config)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(ctx context.Context, st store.Store, year int, csvPath, xlsxPath string) (map[string]any, error) {
	log := zap.L().With(zap.String("command", "export"))

	indices, err := st.ListIndices(ctx, year)
	if err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return nil, eris.Errorf("export: no indices stored for vintage %d; run compute first", year)
	}

	counts, err := st.ListIncidentCounts(ctx)
	if err != nil {
		return nil, err
	}

	rows := export.Join(indices, counts)

	if err := os.MkdirAll(filepath.Dir(csvPath), 0o755); err != nil {
		return nil, eris.Wrapf(err, "export: create output dir for %s", csvPath)
	}
	if err := export.WriteCSVFile(csvPath, rows); err != nil {
		return nil, err
	}
	log.Info("wrote CSV", zap.String("path", csvPath), zap.Int("rows", len(rows)))

	if xlsxPath != "" {
		if err := os.MkdirAll(filepath.Dir(xlsxPath), 0o755); err != nil {
			return nil, eris.Wrapf(err, "export: create output dir for %s", xlsxPath)
		}
		if err := export.WriteXLSXFile(xlsxPath, rows); err != nil {
			return nil, err
		}
		log.Info("wrote XLSX", zap.String("path", xlsxPath), zap.Int("rows", len(rows)))
	}

	return map[string]any{"year": year, "rows": len(rows), "csv": csvPath}, nil
}
