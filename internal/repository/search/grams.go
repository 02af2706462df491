// Package search holds the case folding and trigram splitting shared by the profile
// search indexes of every backend.
package search

import "golang.org/x/text/cases"

// GramSize is the window length of a trigram. Queries shorter than this cannot be
// answered from a trigram index.
const GramSize = 3

func Fold(s string) string {
	return cases.Fold().String(s)
}

// Trigrams returns the distinct three-rune windows of s in order of first appearance.
func Trigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < GramSize {
		return nil
	}
	seen := make(map[string]struct{}, len(runes))
	out := make([]string, 0, len(runes)-GramSize+1)
	for i := 0; i+GramSize <= len(runes); i++ {
		g := string(runes[i : i+GramSize])
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

// FieldGrams folds every field and returns the folded fields plus the union of
// their trigrams.
func FieldGrams(fields ...string) (folded []string, grams []string) {
	seen := make(map[string]struct{})
	folded = make([]string, len(fields))
	grams = []string{}
	for i, f := range fields {
		folded[i] = Fold(f)
		for _, g := range Trigrams(folded[i]) {
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			grams = append(grams, g)
		}
	}
	return folded, grams
}
