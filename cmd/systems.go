package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var systemsCmd = &cobra.Command{
	Use:   "systems",
	Short: "List the systems in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := loadCatalog(cfg.Catalog.Path)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TAG\tNAME\tCITY\tFEED") //nolint:errcheck
		for _, e := range cat.Entries() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Tag, e.Name, e.City, e.FeedURL) //nolint:errcheck
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(systemsCmd)
}
