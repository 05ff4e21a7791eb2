package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gbfs-cli/internal/export"
)

var (
	exportFormat string
	exportOut    string
	exportBounds []string
)

var exportCmd = &cobra.Command{
	Use:   "export <tag|feed-url>",
	Short: "Fetch a system and write its stations to a GeoJSON, XLSX or Shapefile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("update"); err != nil {
			return err
		}
		format, err := exportFormatFor(exportFormat, exportOut)
		if err != nil {
			return err
		}

		sys, err := fetchSystem(cmd.Context(), cfg, nil, args[0])
		if err != nil {
			return err
		}

		stations := sys.Stations()
		if len(exportBounds) > 0 {
			bounds, err := parseBounds(exportBounds)
			if err != nil {
				return err
			}
			if stations, err = filterStations(stations, bounds, 0); err != nil {
				return err
			}
		}

		if err := export.WriteFile(format, exportOut, sys.Meta(), stations); err != nil {
			return err
		}
		zap.L().Info("export complete",
			zap.String("system", sys.Tag()),
			zap.String("format", string(format)),
			zap.String("path", exportOut),
			zap.Int("stations", len(stations)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "geojson, xlsx or shp (default: from --out extension)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file path")
	exportCmd.Flags().StringArrayVar(&exportBounds, "bound", nil, `only export stations inside "lat,lng;lat,lng[;...]" (repeatable)`)
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}

func exportFormatFor(format, out string) (export.Format, error) {
	if out == "" {
		return "", eris.New("--out is required")
	}
	if format != "" {
		return export.ParseFormat(format)
	}
	return export.FormatForPath(out)
}
