package engine

import (
	"sort"

	"migra/pkg/schema"
)

// Near-match thresholds for unmapped required fields.
const (
	nearMatchThreshold = 0.5
	maxNearMatches     = 3
)

// levenshteinDistance computes the Levenshtein edit distance between two strings.
// This is the minimum number of single-character edits (insertions, deletions,
// or substitutions) required to transform string a into string b.
func levenshteinDistance(a, b string) int {
	aRunes := []rune(a)
	bRunes := []rune(b)
	if len(aRunes) == 0 {
		return len(bRunes)
	}
	if len(bRunes) == 0 {
		return len(aRunes)
	}

	// Two rows instead of a full matrix; the shorter string drives the inner loop.
	if len(aRunes) > len(bRunes) {
		aRunes, bRunes = bRunes, aRunes
	}

	prevRow := make([]int, len(aRunes)+1)
	currRow := make([]int, len(aRunes)+1)
	for i := range prevRow {
		prevRow[i] = i
	}

	for j := 1; j <= len(bRunes); j++ {
		currRow[0] = j
		for i := 1; i <= len(aRunes); i++ {
			cost := 1
			if aRunes[i-1] == bRunes[j-1] {
				cost = 0
			}
			currRow[i] = min(prevRow[i]+1, currRow[i-1]+1, prevRow[i-1]+cost)
		}
		prevRow, currRow = currRow, prevRow
	}

	return prevRow[len(aRunes)]
}

// similarity returns 1 - distance/maxLen, from 0.0 (unrelated) to 1.0
// (identical).
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshteinDistance(a, b))/float64(maxLen)
}

// NearMatches ranks the columns whose normalized name is close to field
// without containing it. They are hints for the user only; the suggester
// never maps them.
func NearMatches(field string, columns []string) []string {
	target := schema.NormalizeField(field)
	if target == "" {
		return nil
	}

	type candidate struct {
		column string
		score  float64
	}
	var candidates []candidate
	for _, c := range columns {
		score := similarity(target, schema.NormalizeField(c))
		if score >= nearMatchThreshold {
			candidates = append(candidates, candidate{column: c, score: score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	out := make([]string, 0, min(len(candidates), maxNearMatches))
	for _, c := range candidates[:min(len(candidates), maxNearMatches)] {
		out = append(out, c.column)
	}
	return out
}
