package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"migra/pkg/engine"
	"migra/pkg/schema"
)

// proposal is the schema and mapping suggested for one detected file.
type proposal struct {
	File   engine.DetectedFile
	Review engine.MappingReview
	Target schema.Schema
	Found  bool
}

func suggestAll(catalog *schema.Catalog, files []engine.DetectedFile, forced string) ([]proposal, error) {
	var override schema.Schema
	if forced != "" {
		s, ok := catalog.Get(forced)
		if !ok {
			return nil, fmt.Errorf("unknown schema %q", forced)
		}
		override = s
	}

	out := make([]proposal, 0, len(files))
	for _, f := range files {
		p := proposal{File: f, Target: override, Found: forced != ""}
		if !p.Found {
			p.Target, p.Found = catalog.Guess(f.Name, f.Columns)
		}
		if p.Found {
			p.Review = engine.ReviewMapping(f, p.Target, schema.SuggestMappingTrace(f.Columns, p.Target.FieldNames()))
		} else {
			p.Review = engine.MappingReview{File: f.Name, Mapping: map[string]string{}, UnmatchedColumns: f.Columns}
		}
		out = append(out, p)
	}
	return out, nil
}

func newSuggestCmd(root *rootOptions) *cobra.Command {
	var forced string
	cmd := &cobra.Command{
		Use:   "suggest <archive.zip>",
		Short: "suggest a schema and column mapping for each file",
		Long: `Suggest analyzes the archive, guesses the destination schema of every file
from its name and columns, and prints the column mapping that would be used
together with the required fields it still lacks.`,
		Example: `  $ migractl suggest legacy.zip
  $ migractl suggest legacy.zip --schema products --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			proposals, err := suggestAll(schema.DefaultCatalog(), analysis.Files, forced)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if root.asJSON {
				reviews := make([]engine.MappingReview, len(proposals))
				for i, p := range proposals {
					reviews[i] = p.Review
				}
				return printJSON(out, reviews)
			}

			for _, p := range proposals {
				if !p.Found {
					fmt.Fprintf(out, "%s: no matching schema\n\n", p.File.Name)
					continue
				}
				status := "ready"
				if !p.Review.Ready {
					status = "missing " + strings.Join(p.Review.MissingRequired, ", ")
				}
				fmt.Fprintf(out, "%s -> %s (%s)\n", p.File.Name, p.Target.Name, status)

				fields := make([]string, 0, len(p.Review.Mapping))
				for field := range p.Review.Mapping {
					fields = append(fields, field)
				}
				sort.Strings(fields)
				for _, field := range fields {
					fmt.Fprintf(out, "  %-16s <- %s\n", field, p.Review.Mapping[field])
				}
				for _, c := range p.Review.Conflicts {
					fmt.Fprintf(out, "  note: %s matched %s before %s\n", c.Field, c.Replaced, c.Winner)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&forced, "schema", "", "use this schema for every file instead of guessing")
	return cmd
}
