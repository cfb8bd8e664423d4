package engine

import (
	"slices"

	"migra/pkg/schema"
)

// MappingReview is what the map stage shows for one file before import.
type MappingReview struct {
	File    string            `json:"file"`
	Schema  string            `json:"schema"`
	Mapping map[string]string `json:"mapping"`
	// Conflicts lists fields that more than one column matched; the last
	// column won.
	Conflicts []schema.Conflict `json:"conflicts,omitempty"`
	// MissingRequired lists required fields with no column.
	MissingRequired []string `json:"missingRequired,omitempty"`
	// UnmatchedColumns lists source columns no field uses.
	UnmatchedColumns []string `json:"unmatchedColumns,omitempty"`
	// UnknownColumns lists mapped columns the file does not have.
	UnknownColumns []string `json:"unknownColumns,omitempty"`
	// NearMatches offers similarly named columns for missing required fields.
	NearMatches map[string][]string `json:"nearMatches,omitempty"`
	// Keys describes the column mapped to the schema key, when there is one.
	Keys *KeyStats `json:"keys,omitempty"`
	// Ready is true when nothing above blocks an import.
	Ready bool `json:"ready"`
}

// ReviewMapping checks a (possibly user-edited) mapping against the file's
// columns and the target schema.
func ReviewMapping(file DetectedFile, target schema.Schema, suggestion schema.Suggestion) MappingReview {
	review := MappingReview{
		File:      file.Name,
		Schema:    target.Name,
		Mapping:   suggestion.Mapping,
		Conflicts: suggestion.Conflicts,
	}
	if review.Mapping == nil {
		review.Mapping = map[string]string{}
	}

	for _, field := range target.RequiredFields() {
		if review.Mapping[field] == "" {
			review.MissingRequired = append(review.MissingRequired, field)
		}
	}

	used := make(map[string]bool, len(review.Mapping))
	for _, field := range target.FieldNames() {
		column, ok := review.Mapping[field]
		if !ok || column == "" {
			continue
		}
		used[column] = true
		if !slices.Contains(file.Columns, column) {
			review.UnknownColumns = append(review.UnknownColumns, column)
		}
	}

	for _, column := range file.Columns {
		if !used[column] {
			review.UnmatchedColumns = append(review.UnmatchedColumns, column)
		}
	}

	for _, field := range review.MissingRequired {
		if near := NearMatches(field, review.UnmatchedColumns); len(near) > 0 {
			if review.NearMatches == nil {
				review.NearMatches = make(map[string][]string)
			}
			review.NearMatches[field] = near
		}
	}

	if target.Key != "" {
		if index, ok := BuildKeyIndex(file, review.Mapping[target.Key]); ok {
			review.Keys = &index.Stats
		}
	}

	review.Ready = len(review.MissingRequired) == 0 && len(review.UnknownColumns) == 0
	return review
}
