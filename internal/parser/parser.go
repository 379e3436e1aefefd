// Package parser recovers structured liturgical fields (tone, epistle, gospel,
// matins gospel, notes) from free-text calendar event descriptions.
//
// Extraction runs as a fixed sequence of steps over one working copy of the
// text. Each step claims a span and removes it, so later steps never re-match
// text an earlier step already consumed.
package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/starford/typikon/internal/models"
)

var (
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	toneRe        = regexp.MustCompile(`(?i)\bTone\s+(\d+)`)
	matinsResRe   = regexp.MustCompile(`(?i)Res\.?\s*Gospel\s+(\d+)`)
	matinsLabelRe = regexp.MustCompile(`(?i)Matins\s+Gospel:?\s*`)
	liturgyRe     = regexp.MustCompile(`(?i)Divine Liturgy:?`)
	implicitRe    = regexp.MustCompile(`(?i)Divine Liturgy:?\s*([^;]+);\s*`)
	epistleRe     = regexp.MustCompile(`(?i)(?:^|[\s,;.])Epistle:?\s*`)
	gospelRe      = regexp.MustCompile(`(?i)(?:^|[\s,;.])Gospel:?\s*`)
	labelRe       = regexp.MustCompile(`(?i)\b(?:Epistle|Gospel)\b`)

	// Stop conditions, tested at each candidate end of a lazily read value.
	matinsStopRe   = regexp.MustCompile(`(?i)^\s*(?:Divine Liturgy|Epistle|Gospel|Following)`)
	implicitStopRe = regexp.MustCompile(`(?i)^\s*(?:Following|\.\s*[A-Z]|$)`)
	epistleStopRe  = regexp.MustCompile(`(?i)^\s*(?:Gospel|Following)`)
	gospelStopRe   = regexp.MustCompile(`(?i)^\s*(?:Following|\.\s+[A-Z])`)

	edgePunctRe = regexp.MustCompile(`^[;:,.\-\s]+|[;:,.\-\s]+$`)

	notesEdgeRe        = regexp.MustCompile(`^[\s,;.]+|[\s,;.]+$`)
	notesSpaceBeforeRe = regexp.MustCompile(`\s+([,;.])`)
	notesSepDotRe      = regexp.MustCompile(`[,;]+\s*\.`)
	notesDotSepRe      = regexp.MustCompile(`\.\s*[,;]+`)
	notesCommasRe      = regexp.MustCompile(`,,+`)
	notesDotsRe        = regexp.MustCompile(`\.\.+`)
)

// liturgicalKeywords mark a description as carrying readings.
var liturgicalKeywords = []string{"Epistle", "Gospel"}

// HasLiturgicalContent reports whether description literally mentions
// "Epistle" or "Gospel" (case-sensitive).
func HasLiturgicalContent(description string) bool {
	for _, kw := range liturgicalKeywords {
		if strings.Contains(description, kw) {
			return true
		}
	}
	return false
}

// Extract decomposes description into a ParsedDescription. It never fails:
// any step that does not match leaves its field nil.
func Extract(description string) models.ParsedDescription {
	var out models.ParsedDescription
	if description == "" {
		return out
	}

	text := prepare(description)

	out.Tone, text = extractTone(text)
	out.MatinsGospel, text = extractMatins(text)

	var paired bool
	out.Epistle, out.Gospel, text, paired = extractImplicitLiturgy(text)
	if !paired {
		text = removeFirst(text, liturgyRe)
		out.Epistle, text = extractLabeled(text, epistleRe, epistleStopRe)
		out.Gospel, text = extractLabeled(text, gospelRe, gospelStopRe)
	}

	out.Notes = normalizeNotes(text)
	return out
}

func prepare(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func extractTone(text string) (*string, string) {
	loc := toneRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, text
	}
	tone := text[loc[2]:loc[3]]
	return &tone, cut(text, loc[0], loc[1])
}

func extractMatins(text string) (*string, string) {
	if loc := matinsResRe.FindStringSubmatchIndex(text); loc != nil {
		n := text[loc[2]:loc[3]]
		return &n, cut(text, loc[0], loc[1])
	}
	return extractLabeled(text, matinsLabelRe, matinsStopRe)
}

// extractImplicitLiturgy handles "Divine Liturgy: <epistle>; <gospel>" where
// neither clause is labeled. The gospel clause ends at "Following", a sentence
// boundary or the end of text.
func extractImplicitLiturgy(text string) (epistle, gospel *string, rest string, ok bool) {
	for _, loc := range implicitRe.FindAllStringSubmatchIndex(text, -1) {
		first := text[loc[2]:loc[3]]
		end, found := readUntil(text, loc[1], implicitStopRe, true)
		if !found {
			continue
		}
		second := text[loc[1]:end]
		if labelRe.MatchString(first) || labelRe.MatchString(second) {
			return nil, nil, text, false
		}
		return clean(first), clean(second), cut(text, loc[0], end), true
	}
	return nil, nil, text, false
}

// extractLabeled finds the first header match and reads its value lazily up to
// the first position where stop matches (or the end of text). A header with
// no text after it yields no value and is dropped from the text.
func extractLabeled(text string, header, stop *regexp.Regexp) (*string, string) {
	for _, loc := range header.FindAllStringIndex(text, -1) {
		end, found := readUntil(text, loc[1], stop, false)
		if !found {
			return nil, cut(text, loc[0], loc[1])
		}
		value := clean(text[loc[1]:end])
		return value, cut(text, loc[0], end)
	}
	return nil, text
}

// readUntil returns the smallest end > start such that text[end:] satisfies
// stop, or len(text) when nothing stops earlier, so the value holds at least
// one character. With noSemicolon the value may not cross a ';'.
func readUntil(text string, start int, stop *regexp.Regexp, noSemicolon bool) (int, bool) {
	for end := start; end < len(text); {
		r, size := utf8.DecodeRuneInString(text[end:])
		if noSemicolon && r == ';' {
			return 0, false
		}
		end += size
		if end == len(text) || stop.MatchString(text[end:]) {
			return end, true
		}
	}
	return 0, false
}

func removeFirst(text string, re *regexp.Regexp) string {
	loc := re.FindStringIndex(text)
	if loc == nil {
		return text
	}
	return cut(text, loc[0], loc[1])
}

func cut(text string, from, to int) string {
	return text[:from] + text[to:]
}

// clean trims whitespace and surrounding separator punctuation. An empty
// result is reported as nil.
func clean(s string) *string {
	v := edgePunctRe.ReplaceAllString(strings.TrimSpace(s), "")
	if v == "" {
		return nil
	}
	return &v
}

func normalizeNotes(text string) *string {
	n := notesEdgeRe.ReplaceAllString(text, "")
	n = notesSpaceBeforeRe.ReplaceAllString(n, "$1")
	n = notesSepDotRe.ReplaceAllString(n, ".")
	n = notesDotSepRe.ReplaceAllString(n, ".")
	n = notesCommasRe.ReplaceAllString(n, ",")
	n = notesDotsRe.ReplaceAllString(n, ".")
	n = strings.TrimSpace(n)
	if n == "" {
		return nil
	}
	return &n
}
