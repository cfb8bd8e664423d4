package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeField prepares a column or field name for fuzzy comparison:
//  1. ToLower
//  2. Strip diacritics (Unicode NFD decompose, remove combining marks)
//  3. Drop every character that is not a letter or a digit
//
// "Teléfono_Móvil" and "telefono movil" both become "telefonomovil".
func NormalizeField(name string) string {
	s := stripDiacritics(strings.ToLower(name))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripDiacritics removes diacritical marks (accents) from a string.
// It decomposes the string into NFD form and removes combining marks (unicode.Mn).
func stripDiacritics(s string) string {
	// NFD decomposition splits characters like 'é' into 'e' + combining acute accent
	decomposed := norm.NFD.String(s)
	var result strings.Builder
	result.Grow(len(decomposed))

	for _, r := range decomposed {
		// Skip combining marks (Nonspacing_Mark category)
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		result.WriteRune(r)
	}

	return result.String()
}
