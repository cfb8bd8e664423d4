package engine

import (
	"migra/pkg/archive"
	"migra/pkg/parser"
)

// PreviewRows is the number of data rows kept for display.
const PreviewRows = 5

// DetectedFile is one recognized archive entry after parsing: its header,
// its full data rows and a short preview for the review screen.
//
// Rows are not checked against the header width; ragged rows from malformed
// sources are passed through unchanged.
type DetectedFile struct {
	Name     string          `json:"name"`
	Type     parser.FileType `json:"type"`
	RowCount int             `json:"rowCount"`
	Columns  []string        `json:"columns"`
	Preview  []parser.Row    `json:"preview"`
	Data     []parser.Row    `json:"data,omitempty"`

	entry    archive.Entry
	hasEntry bool
}

// BuildDetectedFile assembles a DetectedFile from a parsed grid. Row 0 of the
// grid is the header; every following row is data.
func BuildDetectedFile(entry archive.Entry, kind parser.FileType, grid parser.Grid) DetectedFile {
	f := DetectedFile{
		Name:     entry.Name,
		Type:     kind,
		Columns:  []string{},
		Data:     []parser.Row{},
		entry:    entry,
		hasEntry: true,
	}

	if len(grid) > 0 {
		f.Columns = grid[0].Strings()
		f.Data = grid[1:]
	}
	f.RowCount = len(f.Data)
	f.Preview = f.Data[:min(PreviewRows, f.RowCount)]

	return f
}

// Entry returns the archive entry the file was read from. Files restored
// from a serialized analysis have none.
func (f DetectedFile) Entry() (archive.Entry, bool) {
	return f.entry, f.hasEntry
}

// Summary drops the data rows, keeping what the review screen shows.
func (f DetectedFile) Summary() DetectedFile {
	s := f
	s.Data = nil
	return s
}
