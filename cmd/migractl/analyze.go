package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"migra/pkg/engine"
)

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	var (
		strict      bool
		includeData bool
	)
	cmd := &cobra.Command{
		Use:   "analyze <archive.zip>",
		Short: "list the tabular files found in an archive",
		Long: `Analyze reads every entry of the archive, detects its format and reports the
columns, row count and a preview of each file it could parse. Entries that
failed to parse and entries of unknown type are listed separately.`,
		Example: `  $ migractl analyze legacy.zip
  $ migractl analyze legacy.zip --strict --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, data, err := readArchive(args)
			if err != nil {
				return err
			}
			log, err := root.logger()
			if err != nil {
				return err
			}

			analysis, err := engine.NewAnalyzer(engine.Options{StrictSniffing: strict, Logger: log}).
				Analyze(cmd.Context(), data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if root.asJSON {
				_, err := fmt.Fprintln(out, engine.SerializeAnalysis(analysis, includeData))
				return err
			}
			return printAnalysis(cmd, analysis)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "check content signatures before parsing")
	cmd.Flags().BoolVar(&includeData, "data", false, "include every data row in JSON output")
	return cmd
}

func printAnalysis(cmd *cobra.Command, a *engine.Analysis) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tTYPE\tROWS\tCOLUMNS")
	for _, f := range a.Files {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", f.Name, f.Type, f.RowCount, strings.Join(f.Columns, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, f := range a.Failures {
		fmt.Fprintf(out, "failed:  %s (%s): %s\n", f.Name, f.Type, f.Reason)
	}
	for _, name := range a.Skipped {
		fmt.Fprintf(out, "skipped: %s\n", name)
	}
	fmt.Fprintf(out, "%d of %d entries parsed\n", len(a.Files), a.Entries)
	return nil
}
