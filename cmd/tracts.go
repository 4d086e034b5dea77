package main

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/urbanhealthlab/icemapper/internal/tract"
)

var tractsCmd = &cobra.Command{
	Use:   "tracts",
	Short: "Validate the tract boundary shapefile",
	Long: `Load the configured TIGER/Line tract shapefile and report what it
contains. Useful as a preflight before tallying incidents.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		shpPath, _ := cmd.Flags().GetString("shapefile")
		if shpPath == "" {
			shpPath = cfg.Tracts.ShapefilePath
		}
		if shpPath == "" {
			return eris.New("tracts: no shapefile configured")
		}

		loc, err := tract.LoadShapefile(shpPath)
		if err != nil {
			return err
		}

		geoIDs := loc.GeoIDs()
		sort.Strings(geoIDs)
		zap.L().Info("shapefile loaded",
			zap.String("path", shpPath),
			zap.Int("tracts", loc.Len()),
		)

		fmt.Printf("Shapefile: %s\n", shpPath)
		fmt.Printf("Tracts:    %d\n", loc.Len())
		if len(geoIDs) > 0 {
			fmt.Printf("Range:     %s .. %s\n", geoIDs[0], geoIDs[len(geoIDs)-1])
		}
		return nil
	},
}

func init() {
	tractsCmd.Flags().String("shapefile", "", "path to the tract boundary shapefile (overrides config)")
	rootCmd.AddCommand(tractsCmd)
}
