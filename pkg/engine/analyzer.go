package engine

import (
	"context"
	"fmt"
	"log/slog"

	"migra/pkg/archive"
	"migra/pkg/domain"
	"migra/pkg/parser"
)

// FailureRecord describes a recognized entry that could not be parsed.
type FailureRecord struct {
	Name   string          `json:"name"`
	Type   parser.FileType `json:"type"`
	Reason string          `json:"reason"`
}

// Analysis is the outcome of one pass over an archive.
type Analysis struct {
	// Files are the parsed entries in archive order.
	Files []DetectedFile `json:"files"`
	// Failures are recognized entries whose parse failed.
	Failures []FailureRecord `json:"failures,omitempty"`
	// Skipped lists entries with an unrecognized extension.
	Skipped []string `json:"skipped,omitempty"`
	// Entries is the number of eligible archive entries.
	Entries int `json:"entries"`
}

// Progress is reported once per recognized entry as the pass advances.
type Progress struct {
	Index int             `json:"index"`
	Total int             `json:"total"`
	Name  string          `json:"name"`
	Type  parser.FileType `json:"type"`
	Err   string          `json:"error,omitempty"`
}

// Options tunes an Analyzer.
type Options struct {
	// StrictSniffing checks content signatures before parsing.
	StrictSniffing bool
	Logger         *slog.Logger
	// OnFile, when set, is called after every recognized entry.
	OnFile func(Progress)
}

// Analyzer turns an uploaded archive into detected files.
type Analyzer struct {
	opts   Options
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{opts: opts, logger: logger}
}

// Analyze loads the archive and parses every recognized entry in order.
//
// Archive level problems fail the whole pass with domain.ErrInvalidArchive.
// A failing entry is logged and recorded in Failures; the rest of the batch
// continues. An archive without eligible entries yields an empty Analysis.
func (a *Analyzer) Analyze(ctx context.Context, data []byte) (*Analysis, error) {
	entries, err := archive.Load(data)
	if err != nil {
		return nil, err
	}
	return a.AnalyzeEntries(ctx, entries)
}

// AnalyzeEntries runs the pass over already loaded entries.
func (a *Analyzer) AnalyzeEntries(ctx context.Context, entries []archive.Entry) (*Analysis, error) {
	result := &Analysis{
		Files:   []DetectedFile{},
		Entries: len(entries),
	}

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis interrupted: %w", err)
		}

		kind := parser.Classify(entry.Name)
		if kind == parser.Unknown {
			result.Skipped = append(result.Skipped, entry.Name)
			continue
		}

		file, err := a.analyzeEntry(entry, kind)
		progress := Progress{Index: i, Total: len(entries), Name: entry.Name, Type: kind}
		if err != nil {
			a.logger.Warn("skipping unreadable file",
				"file", entry.Name,
				"type", string(kind),
				"error", err,
			)
			result.Failures = append(result.Failures, FailureRecord{
				Name:   entry.Name,
				Type:   kind,
				Reason: domain.Detail(err),
			})
			progress.Err = domain.UserMessage(err)
		} else {
			result.Files = append(result.Files, file)
		}

		if a.opts.OnFile != nil {
			a.opts.OnFile(progress)
		}
	}

	a.logger.Debug("archive analyzed",
		"entries", len(entries),
		"files", len(result.Files),
		"failures", len(result.Failures),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

// AnalyzeEntry parses a single entry, as used when a worker re-reads an
// archive to import one file.
func (a *Analyzer) AnalyzeEntry(entry archive.Entry) (DetectedFile, error) {
	kind := parser.Classify(entry.Name)
	if kind == parser.Unknown {
		return DetectedFile{}, domain.NewUnparseableEntryError(entry.Name, fmt.Errorf("unrecognized file type"))
	}
	return a.analyzeEntry(entry, kind)
}

func (a *Analyzer) analyzeEntry(entry archive.Entry, kind parser.FileType) (DetectedFile, error) {
	content, err := entry.ReadAll()
	if err != nil {
		return DetectedFile{}, domain.NewUnparseableEntryError(entry.Name, err)
	}

	if a.opts.StrictSniffing {
		if err := parser.VerifyMagic(entry.Name, kind, content); err != nil {
			return DetectedFile{}, err
		}
	}

	grid, err := parser.Parse(entry.Name, kind, content)
	if err != nil {
		return DetectedFile{}, err
	}
	return BuildDetectedFile(entry, kind, grid), nil
}
