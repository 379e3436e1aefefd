// Package titles canonicalizes feast and saint titles and scores how alike two
// titles are.
package titles

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))

	saintsRe    = regexp.MustCompile(`(?i)\bss\b\.?`)
	saintRe     = regexp.MustCompile(`(?i)\bst\b\.?`)
	venerableRe = regexp.MustCompile(`(?i)\bven\b\.?`)
	nonAlnumRe  = regexp.MustCompile(`[^a-z0-9\s]`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// abbreviations applies to bare tokens left after punctuation removal
// (e.g. "S.S." collapses to "ss").
var abbreviations = map[string]string{
	"ss":  "saints",
	"st":  "saint",
	"ven": "venerable",
}

// Normalize folds a title into a lowercase, space-separated token stream:
// diacritics stripped, "&" spelled out, Ss./St./Ven. expanded, everything
// outside [a-z0-9] removed. Normalize(Normalize(s)) == Normalize(s).
func Normalize(title string) string {
	if title == "" {
		return ""
	}

	s, _, err := transform.String(stripDiacritics, title)
	if err != nil {
		s = title
	}

	s = strings.ReplaceAll(s, "&", " and ")
	s = saintsRe.ReplaceAllString(s, "saints ")
	s = saintRe.ReplaceAllString(s, "saint ")
	s = venerableRe.ReplaceAllString(s, "venerable ")

	s = strings.ToLower(s)
	s = nonAlnumRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	tokens := strings.Split(s, " ")
	for i, tok := range tokens {
		if full, ok := abbreviations[tok]; ok {
			tokens[i] = full
		}
	}
	return strings.Join(tokens, " ")
}
