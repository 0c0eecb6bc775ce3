package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newTablesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List cached tables with row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, _, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			s := a.Current()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TABLE\tROWS\tREFRESHED")
			for _, name := range s.Cache.ListTables() {
				meta, err := s.Cache.Get(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\n", name, meta.RowCount, meta.RefreshedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
}
