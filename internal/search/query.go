// Package search normalizes free-text catalog queries.
package search

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Query is a cleaned search query. Tokens holds the surviving words followed
// by any quoted phrases.
type Query struct {
	Original   string   `json:"original"`
	Normalized string   `json:"normalized"`
	Tokens     []string `json:"tokens"`
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"of": true, "for": true, "to": true, "in": true, "on": true,
	"at": true, "by": true, "with": true, "from": true,
}

var (
	phrasePattern = regexp.MustCompile(`"([^"]*)"`)
	wordPattern   = regexp.MustCompile(`[^\pL\pN_\-]+`)

	// NFKD decomposition with combining marks stripped turns accented
	// letters into their ASCII base forms.
	stripAccents = transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
	)
)

// Fold lowercases, trims and de-accents s so "Café" compares equal to "cafe".
func Fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if folded, _, err := transform.String(stripAccents, s); err == nil {
		return folded
	}
	return s
}

// Normalize lowercases and de-accents a query, pulls out quoted phrases,
// drops stopwords and returns the remaining tokens.
func Normalize(q string) Query {
	s := Fold(q)

	var phrases []string
	for _, m := range phrasePattern.FindAllStringSubmatch(s, -1) {
		if p := strings.TrimSpace(m[1]); p != "" {
			phrases = append(phrases, p)
		}
	}
	s = phrasePattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(wordPattern.ReplaceAllString(s, " "))

	var tokens []string
	for _, t := range strings.Fields(s) {
		if !stopwords[t] {
			tokens = append(tokens, t)
		}
	}
	tokens = append(tokens, phrases...)

	return Query{
		Original:   q,
		Normalized: strings.Join(tokens, " "),
		Tokens:     tokens,
	}
}
