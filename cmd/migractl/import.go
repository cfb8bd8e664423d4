package main

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"migra/pkg/engine"
	"migra/pkg/importer"
	"migra/pkg/report"
	"migra/pkg/schema"
)

func newImportCmd(root *rootOptions) *cobra.Command {
	var (
		tenantID string
		driver   string
		dsn      string
		only     []string
	)
	cmd := &cobra.Command{
		Use:   "import <archive.zip>",
		Short: "import every file whose suggested mapping is complete",
		Long: `Import analyzes the archive, suggests a schema and mapping for each file and
writes the rows of every ready file into the staging table of the given
database. Files with missing required fields are listed and left out.
Importing the same archive twice stores nothing new.`,
		Example: `  $ migractl import legacy.zip --tenant acme
  $ migractl import legacy.zip --tenant acme --driver postgres --dsn postgres://localhost/erp
  $ migractl import legacy.zip --tenant acme --file CLIENTES.DBF`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantID == "" {
				return fmt.Errorf("--tenant is required")
			}
			_, data, err := readArchive(args)
			if err != nil {
				return err
			}
			log, err := root.logger()
			if err != nil {
				return err
			}

			analysis, err := engine.NewAnalyzer(engine.Options{Logger: log}).Analyze(cmd.Context(), data)
			if err != nil {
				return err
			}
			proposals, err := suggestAll(schema.DefaultCatalog(), analysis.Files, "")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			req := importer.Request{TenantID: tenantID}
			for _, p := range proposals {
				if len(only) > 0 && !slices.Contains(only, p.File.Name) {
					continue
				}
				if !p.Found || !p.Review.Ready {
					fmt.Fprintf(cmd.ErrOrStderr(), "left out: %s (mapping incomplete)\n", p.File.Name)
					continue
				}
				req.Files = append(req.Files, importer.FileRequest{
					File:    p.File,
					Schema:  p.Target,
					Mapping: p.Review.Mapping,
				})
			}

			store, err := importer.OpenStore(driver, dsn)
			if err != nil {
				return err
			}
			defer store.Close()

			rep, err := importer.NewSQLExecutor(store, log).Execute(cmd.Context(), req)
			if err != nil {
				return err
			}
			if root.asJSON {
				return printJSON(out, rep)
			}
			return printReport(cmd, rep)
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "company id the rows belong to")
	cmd.Flags().StringVar(&driver, "driver", "sqlite", "database driver (sqlite, postgres, mysql)")
	cmd.Flags().StringVar(&dsn, "dsn", "file:migra.db", "database connection string")
	cmd.Flags().StringSliceVar(&only, "file", nil, "import only these archive entries")
	return cmd
}

func printReport(cmd *cobra.Command, rep *report.ImportReport) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSCHEMA\tSTATUS\tROWS\tINSERTED\tSKIPPED\tREJECTED")
	for _, f := range rep.Files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			f.File, f.Schema, f.Status, f.Rows, f.Inserted, f.Skipped, f.Rejected)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, f := range rep.Files {
		if f.Error != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", f.File, f.Error)
		}
		for _, issue := range f.Issues {
			fmt.Fprintf(cmd.OutOrStdout(), "%s row %d: %s\n", f.File, issue.Row, issue.Reason)
		}
	}
	return nil
}
