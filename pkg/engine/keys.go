package engine

import (
	"slices"
	"strings"
)

// maxReportedDuplicates bounds the duplicate keys listed in a review.
const maxReportedDuplicates = 10

// KeyIndex groups the data rows of a file by the value of its key column.
// Rows sharing a key collapse into one stored record on import, the first
// one wins.
type KeyIndex struct {
	// ByKey holds the 1-based data rows of every key, in file order.
	ByKey map[string][]int `json:"byKey"`
	Stats KeyStats         `json:"stats"`
}

// KeyStats contains aggregate statistics about a key column.
type KeyStats struct {
	Column        string   `json:"column"`
	TotalRows     int      `json:"totalRows"`
	UniqueKeys    int      `json:"uniqueKeys"`
	DuplicateRows int      `json:"duplicateRows"`
	BlankKeys     int      `json:"blankKeys"`
	Duplicates    []string `json:"duplicates,omitempty"`
}

// BuildKeyIndex indexes file rows by the trimmed text of column. It returns
// false when the file has no such column.
func BuildKeyIndex(file DetectedFile, column string) (*KeyIndex, bool) {
	pos := slices.Index(file.Columns, column)
	if pos < 0 {
		return nil, false
	}

	index := &KeyIndex{ByKey: make(map[string][]int, len(file.Data))}
	var order []string
	for i, row := range file.Data {
		key := ""
		if pos < len(row) {
			key = strings.TrimSpace(row[pos].String())
		}
		if key == "" {
			index.Stats.BlankKeys++
			continue
		}
		if _, seen := index.ByKey[key]; !seen {
			order = append(order, key)
		}
		index.ByKey[key] = append(index.ByKey[key], i+1)
	}

	index.Stats.Column = column
	index.Stats.TotalRows = len(file.Data)
	index.Stats.UniqueKeys = len(index.ByKey)
	for _, key := range order {
		rows := index.ByKey[key]
		if len(rows) < 2 {
			continue
		}
		index.Stats.DuplicateRows += len(rows) - 1
		if len(index.Stats.Duplicates) < maxReportedDuplicates {
			index.Stats.Duplicates = append(index.Stats.Duplicates, key)
		}
	}
	return index, true
}
