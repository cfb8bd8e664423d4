package schema

import (
	"strings"
)

// Conflict records a target field whose suggested source column was replaced
// by a later column that also matched it.
type Conflict struct {
	Field    string `json:"field"`
	Replaced string `json:"replaced"`
	Winner   string `json:"winner"`
}

// Suggestion is a proposed targetField -> sourceColumn mapping together with
// the overwrites that happened while building it.
type Suggestion struct {
	Mapping   map[string]string `json:"mapping"`
	Conflicts []Conflict        `json:"conflicts,omitempty"`
}

// SuggestMapping proposes a correspondence from target schema fields to
// source columns and returns it as targetField -> sourceColumn.
//
// For every source column, in order:
//  1. Normalize it and every target field (see NormalizeField)
//  2. Take the first target field where either normalized name contains the other
//  3. Record mapping[field] = column; a later column matching the same field wins
//
// This is looser and stricter than comparing raw names by substring. Diacritics
// are folded, so "Teléfono" matches "telefono". A column that normalizes to
// the empty string, such as "#", matches nothing, where a plain substring test
// would pair it with the first field.
//
// Unmatched columns and fields are left out. The result is a heuristic and
// must be reviewed before an import.
func SuggestMapping(sourceColumns, targetFields []string) map[string]string {
	return SuggestMappingTrace(sourceColumns, targetFields).Mapping
}

// SuggestMappingTrace is SuggestMapping that also reports every overwrite so
// the review can present it as a conflict instead of resolving it silently.
func SuggestMappingTrace(sourceColumns, targetFields []string) Suggestion {
	normalizedTargets := make([]string, len(targetFields))
	for i, f := range targetFields {
		normalizedTargets[i] = NormalizeField(f)
	}

	result := Suggestion{Mapping: make(map[string]string, len(targetFields))}
	for _, column := range sourceColumns {
		normalized := NormalizeField(column)
		// A name made only of symbols would contain every field.
		if normalized == "" {
			continue
		}

		for i, target := range normalizedTargets {
			if target == "" {
				continue
			}
			if !strings.Contains(normalized, target) && !strings.Contains(target, normalized) {
				continue
			}

			field := targetFields[i]
			if previous, ok := result.Mapping[field]; ok {
				result.Conflicts = append(result.Conflicts, Conflict{
					Field:    field,
					Replaced: previous,
					Winner:   column,
				})
			}
			result.Mapping[field] = column
			break
		}
	}

	return result
}
