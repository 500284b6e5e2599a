// Package similarity provides the stateless comparison primitives used by
// the matching strategies: string and name similarity, email comparison,
// date distance and amount tolerance.
package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ContainmentCap bounds the score of a substring-containment match
const ContainmentCap = 0.90

// minContainedLength keeps single letters from counting as containment
const minContainedLength = 3

// NormalizeText case-folds s, strips diacritics and punctuation, and
// collapses whitespace.
func NormalizeText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '/':
			space = true
		}
	}
	return b.String()
}

// StringSimilarity returns a 0..1 score from normalized edit distance.
// A string fully contained in the other scores at most ContainmentCap.
func StringSimilarity(a, b string) float64 {
	return normalizedSimilarity(NormalizeText(a), NormalizeText(b))
}

func normalizedSimilarity(na, nb string) float64 {
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	la, lb := utf8.RuneCountInString(na), utf8.RuneCountInString(nb)
	shorter, longer := min(la, lb), max(la, lb)
	score := 1 - float64(levenshtein.ComputeDistance(na, nb))/float64(longer)

	if shorter >= minContainedLength && (strings.Contains(na, nb) || strings.Contains(nb, na)) {
		coverage := 0.5 + 0.5*float64(shorter)/float64(longer)
		return min(ContainmentCap, max(score, coverage))
	}
	return score
}
