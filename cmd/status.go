package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store contents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		counts, err := st.Counts(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Store: %s (%s)\n\n", storeLocation(), cfg.Store.Driver)
		fmt.Printf("%-20s %10s\n", "Table", "Rows")
		for _, table := range []string{"tract_raw_counts", "tract_indices", "incident_counts", "runs"} {
			fmt.Printf("%-20s %10d\n", table, counts[table])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func storeLocation() string {
	if cfg.Store.Driver == "postgres" {
		return "postgres"
	}
	return cfg.Store.Path
}
