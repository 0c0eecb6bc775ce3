package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/koustreak/tabula/internal/errs"
	"github.com/koustreak/tabula/internal/semantics"
)

func newDescribeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <table>",
		Short: "Show columns, semantic roles and foreign keys of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, _, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.Current().Cache.Entry(args[0])
			if errs.IsCacheMiss(err) {
				return errs.UnknownTable(args[0])
			}
			if err != nil {
				return err
			}
			meta := entry.Meta
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "%s (%d rows)\n", meta.Name, meta.RowCount)
			if meta.PrimaryKeyFallback {
				fmt.Fprintln(out, "no declared primary key; using the first column")
			}
			fmt.Fprintln(out)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COLUMN\tTYPE\tDECLARED\tNULL\tKEY\tDEFAULT\tROLE")
			for _, c := range meta.Columns {
				key := ""
				if c.IsPrimaryKey {
					key = "PK"
				}
				if c.AutoIncrement {
					key += " auto"
				}
				def := ""
				if c.Default != nil {
					def = *c.Default
				}
				role := ""
				if st := entry.Semantics.Of(c.Name); st != semantics.None {
					role = string(st)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
					c.Name, c.Type, c.DeclaredType, c.Nullable, key, def, role)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if len(meta.ForeignKeys) > 0 {
				fmt.Fprintln(out, "\nforeign keys:")
				for _, fk := range meta.ForeignKeys {
					fmt.Fprintf(out, "  %s -> %s(%s)\n", fk.Column, fk.RefTable, fk.RefColumn)
				}
			}
			return nil
		},
	}
}
