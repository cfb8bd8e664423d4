package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// delimiterCandidates lists the separators tried when a file does not
// declare one, in tie-break order.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// parseDelimited reads CSV/TXT bytes into a grid. The header row is kept as
// text; data cells are typed. An empty file yields an empty grid.
func parseDelimited(data []byte) (Grid, error) {
	// Detect encoding and convert to UTF-8
	decoded, _, err := DetectAndDecode(data)
	if err != nil {
		return nil, fmt.Errorf("encoding detection failed: %w", err)
	}

	body, delimiter := splitDelimiterHint(decoded)
	if delimiter == 0 {
		delimiter = detectDelimiter(body)
	}

	reader := csv.NewReader(bytes.NewReader(body))
	reader.Comma = delimiter
	// Allow variable number of fields per record; ragged rows pass through.
	reader.FieldsPerRecord = -1
	// Support lazy quotes for less strict parsing of real-world CSV files.
	reader.LazyQuotes = true

	var grid Grid
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", len(grid)+1, err)
		}

		row := make(Row, len(record))
		if len(grid) == 0 {
			for i, h := range record {
				row[i] = headerCell(h)
			}
		} else {
			for i, v := range record {
				row[i] = inferCell(v)
			}
		}
		grid = append(grid, row)
	}
	return grid, nil
}

// splitDelimiterHint honours the "sep=;" first line spreadsheet programs
// write, returning the remaining body and the declared delimiter.
func splitDelimiterHint(data []byte) ([]byte, rune) {
	line := data
	var rest []byte
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line, rest = data[:i], data[i+1:]
	}
	hint := strings.TrimSpace(string(line))
	if len(hint) == 5 && strings.HasPrefix(strings.ToLower(hint), "sep=") {
		return rest, rune(hint[4])
	}
	return data, 0
}

// detectDelimiter picks the candidate occurring most often on the first line
// outside quoted sections, defaulting to a comma.
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	counts := make(map[rune]int, len(delimiterCandidates))
	quoted := false
	for _, r := range string(line) {
		if r == '"' {
			quoted = !quoted
			continue
		}
		if !quoted {
			counts[r]++
		}
	}

	best, bestCount := ',', 0
	for _, c := range delimiterCandidates {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}

// headerCell trims whitespace and stray BOM characters from a header label.
func headerCell(h string) Cell {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	if h == "" {
		return EmptyCell()
	}
	return TextCell(h)
}
