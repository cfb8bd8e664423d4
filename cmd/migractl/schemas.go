package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"migra/pkg/schema"
)

func newSchemasCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schemas",
		Short: "list the destination schemas and their fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schemas := schema.DefaultCatalog().Schemas()
			if root.asJSON {
				return printJSON(cmd.OutOrStdout(), schemas)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCHEMA\tFIELD\tREQUIRED\tKEY")
			for _, s := range schemas {
				for _, f := range s.Fields {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, f.Name, yes(f.Required), yes(f.Name == s.Key))
				}
			}
			return tw.Flush()
		},
	}
}

func yes(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
