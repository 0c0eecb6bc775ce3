package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [table]",
		Short: "Re-introspect one table, or all tables, into the metadata store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, log, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			c := a.Current().Cache
			if len(args) == 1 {
				if err := c.Refresh(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "refreshed %s\n", args[0])
				return nil
			}

			if err := c.RefreshAll(cmd.Context()); err != nil {
				return err
			}
			n := len(c.ListTables())
			log.With().Int("tables", n).Logger().Info("metadata refreshed")
			fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d tables\n", n)
			return nil
		},
	}
}
