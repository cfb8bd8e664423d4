package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"migra/pkg/logger"
)

const version = "0.1.0"

type rootOptions struct {
	logLevel string
	asJSON   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:     "migractl",
		Short:   "Inspect and import legacy data archives",
		Version: version,
		Long: `migractl runs the migration pipeline without the wizard: it analyzes a ZIP of
legacy tables, suggests how their columns map onto the destination schemas and
imports the files whose mapping is complete.`,
		Example: `  # Show what an archive contains
  $ migractl analyze legacy.zip

  # Suggest schemas and column mappings
  $ migractl suggest legacy.zip --json

  # Import into a local SQLite database
  $ migractl import legacy.zip --tenant acme --dsn file:migra.db`,
		SilenceUsage: true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of tables")

	cmd.AddCommand(
		newAnalyzeCmd(opts),
		newSuggestCmd(opts),
		newSchemasCmd(opts),
		newImportCmd(opts),
	)
	return cmd
}

// logger writes to stderr so command output stays clean.
func (o *rootOptions) logger() (*slog.Logger, error) {
	return logger.New(os.Stderr, "text", parseLevel(o.logLevel), false)
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return slog.LevelWarn
	}
	return l
}

// readArchive loads the file named by the single positional argument.
func readArchive(args []string) (string, []byte, error) {
	if len(args) != 1 {
		return "", nil, fmt.Errorf("expected one archive path, got %d arguments", len(args))
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", nil, fmt.Errorf("read archive: %w", err)
	}
	return args[0], data, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
