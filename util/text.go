package util

import (
	"regexp"
	"strings"
)

var cvePattern = regexp.MustCompile(`CVE-\d{4}-\d{4,}`)

// ExtractCVEID pulls the first CVE identifier out of free text. Returns the
// empty string when none is present.
func ExtractCVEID(text string) string {
	return cvePattern.FindString(strings.ToUpper(text))
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// stopwords that carry no signal when comparing advisory titles
var titleStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "in": true, "of": true, "for": true,
	"to": true, "and": true, "or": true, "on": true, "via": true, "with": true,
	"vulnerability": true, "security": true, "advisory": true, "issue": true,
}

// TitleTokens normalizes an advisory title into a deduplicated token set for
// similarity comparison.
func TitleTokens(title string) []string {
	words := nonWord.Split(strings.ToLower(title), -1)
	seen := map[string]bool{}
	var out []string
	for _, w := range words {
		if len(w) < 2 || titleStopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// JaccardSimilarity computes |A ∩ B| / |A ∪ B| over two token sets. Two empty
// sets compare as dissimilar, not identical.
func JaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := map[string]bool{}
	for _, t := range a {
		setA[t] = true
	}
	inter := 0
	setB := map[string]bool{}
	for _, t := range b {
		if setB[t] {
			continue
		}
		setB[t] = true
		if setA[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}
