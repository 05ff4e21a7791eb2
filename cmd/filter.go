package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/gbfs-cli/internal/geo"
	"github.com/sells-group/gbfs-cli/internal/model"
)

var (
	filterBounds []string
	filterLimit  int
	filterFormat string
)

var filterCmd = &cobra.Command{
	Use:   "filter <tag|feed-url>",
	Short: "Fetch a system and keep the stations inside the given bounds",
	Long: "Fetches a system and prints the stations inside any --bound. A bound with two points " +
		"is a rectangle from its corners; three or more points form a polygon.",
	Example: `  gbfs-cli filter bike-share-toronto --bound "43.64,-79.40;43.66,-79.37"
  gbfs-cli filter citi-bike-nyc --bound "40.70,-74.02;40.72,-73.99;40.69,-73.98" --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("update"); err != nil {
			return err
		}
		bounds, err := parseBounds(filterBounds)
		if err != nil {
			return err
		}

		sys, err := fetchSystem(cmd.Context(), cfg, nil, args[0])
		if err != nil {
			return err
		}

		stations, err := filterStations(sys.Stations(), bounds, filterLimit)
		if err != nil {
			return err
		}
		return writeStations(cmd.OutOrStdout(), filterFormat, sys.Meta(), stations, sys.UpdatedAt())
	},
}

func init() {
	filterCmd.Flags().StringArrayVar(&filterBounds, "bound", nil, `bound as "lat,lng;lat,lng[;...]" (repeatable)`)
	filterCmd.Flags().IntVar(&filterLimit, "limit", 0, "stop after this many stations (0 = all)")
	filterCmd.Flags().StringVar(&filterFormat, "format", "json", "output format: json or geojson")
	_ = filterCmd.MarkFlagRequired("bound")
	rootCmd.AddCommand(filterCmd)
}

func parseBounds(raw []string) ([][]geo.Pair, error) {
	if len(raw) == 0 {
		return nil, eris.New("at least one --bound is required")
	}
	out := make([][]geo.Pair, 0, len(raw))
	for _, s := range raw {
		pts, err := geo.ParsePairs(s)
		if err != nil {
			return nil, err
		}
		out = append(out, pts)
	}
	return out, nil
}

// filterStations keeps the stations inside any bound, stopping after limit
// matches when limit > 0.
func filterStations(stations []model.Station, bounds [][]geo.Pair, limit int) ([]model.Station, error) {
	seq, err := geo.FilterBounds(geo.Slice(stations), nil, bounds...)
	if err != nil {
		return nil, err
	}
	out := []model.Station{}
	for st := range seq {
		out = append(out, st)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
