package engine

import (
	"encoding/json"
	"fmt"

	"migra/pkg/parser"
)

// serializedAnalysis is the JSON form of an Analysis. It mirrors the struct
// but lets callers drop data rows when only the review screen needs them.
type serializedAnalysis struct {
	Files    []DetectedFile  `json:"files"`
	Failures []FailureRecord `json:"failures,omitempty"`
	Skipped  []string        `json:"skipped,omitempty"`
	Entries  int             `json:"entries"`
}

// SerializeAnalysis converts an Analysis to JSON for transfer to a browser
// or another process. With includeData false only previews are kept.
func SerializeAnalysis(a *Analysis, includeData bool) string {
	sa := serializedAnalysis{
		Files:    make([]DetectedFile, len(a.Files)),
		Failures: a.Failures,
		Skipped:  a.Skipped,
		Entries:  a.Entries,
	}
	for i, f := range a.Files {
		if includeData {
			sa.Files[i] = f
		} else {
			sa.Files[i] = f.Summary()
		}
	}

	data, err := json.Marshal(sa)
	if err != nil {
		// Cells always marshal; keep the caller's contract of returning JSON.
		return `{"files":[],"entries":0}`
	}
	return string(data)
}

// DeserializeAnalysis reconstructs an Analysis from SerializeAnalysis output.
// Restored files carry no archive entry. When data rows were dropped the
// preview is all that is left of them.
func DeserializeAnalysis(data []byte) (*Analysis, error) {
	var sa serializedAnalysis
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("failed to deserialize analysis: %w", err)
	}

	a := &Analysis{
		Files:    sa.Files,
		Failures: sa.Failures,
		Skipped:  sa.Skipped,
		Entries:  sa.Entries,
	}
	if a.Files == nil {
		a.Files = []DetectedFile{}
	}
	for i := range a.Files {
		f := &a.Files[i]
		if f.Columns == nil {
			f.Columns = []string{}
		}
		if f.Preview == nil {
			f.Preview = []parser.Row{}
		}
	}
	return a, nil
}
