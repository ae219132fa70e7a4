package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var yearsCmd = &cobra.Command{
	Use:   "years",
	Short: "List the registered election years and their sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry(cfg)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "YEAR\tNAME COLUMN\tCODE COLUMN\tRESULTS\tBOUNDARIES")
		for _, year := range reg.Years() {
			d, err := reg.Lookup(year)
			if err != nil {
				return err
			}
			marker := ""
			if year == reg.DefaultYear() {
				marker = " *"
			}
			fmt.Fprintf(w, "%d%s\t%s\t%s\t%s\t%s\n", d.Year, marker, d.NameColumn, d.CodeColumn, d.ResultsPath, d.BoundaryURL)
		}
		fine := reg.Fine()
		fmt.Fprintf(w, "LSOA\t%s\t%s\t\t%s\n", fine.NameColumn, fine.CodeColumn, fine.URL)
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(yearsCmd)
}
