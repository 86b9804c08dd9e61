package storage

import (
	"strings"
	"unicode"
)

// Terms lower-cases text and splits it on runs of anything that is not a
// letter or a digit. Duplicates are removed, first occurrence wins.
func Terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]struct{}, len(words))
	terms := words[:0]

	for _, word := range words {
		if _, ok := seen[word]; ok {
			continue
		}

		seen[word] = struct{}{}
		terms = append(terms, word)
	}

	return terms
}
