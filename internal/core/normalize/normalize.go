// Package normalize turns text recovered from a PDF confirmation into canonical
// single-line text for the extractor.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

// label repairs: broken spacing and stray colons around the labels the extractor keys on
var (
	reReceivedAt = regexp.MustCompile(`Received\s*At\b(?:\s*:)*`)
	reOrderType  = regexp.MustCompile(`Order\s+T?\s*ype\b(?:\s*:)*`)
	reFilledAt   = regexp.MustCompile(`Filled\s+at\b(?:\s*:)*`)
)

var (
	reMultiColon  = regexp.MustCompile(`:{2,}`)
	reSplitType   = regexp.MustCompile(`\bT\s+ype\b`)
	reHyperlink   = regexp.MustCompile(`(?i)\b(?:https?|ftp)://\S+|\bmailto:\S+`)
	// page header/footer stamp, e.g. "1/5/2024, 9:31 AM"
	reFooterStamp = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/(?:\d{4}|\d{2}),\s*\d{1,2}:\d{2}(?:\s*[AP]M\b)?`)
)

// Normalize repairs PDF-extraction artifacts and collapses the text to one line.
// It never fails and Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return s
	}
	// NBSP and friends are invisible to \s; map them before the label passes
	s = strings.Map(asciiSpace, s)

	// links and stamps go first: a stamp printed inside a label would hide it
	s = reHyperlink.ReplaceAllString(s, " ")
	for {
		stripped := reFooterStamp.ReplaceAllString(s, " ")
		if stripped == s {
			break
		}
		s = stripped
	}

	s = reReceivedAt.ReplaceAllString(s, "Received At:")
	s = reOrderType.ReplaceAllString(s, "Order Type:")
	s = reFilledAt.ReplaceAllString(s, "Filled at:")

	s = reMultiColon.ReplaceAllString(s, ":")
	s = reSplitType.ReplaceAllString(s, "Type")

	return strings.Join(strings.Fields(s), " ")
}

func asciiSpace(r rune) rune {
	if r > unicode.MaxASCII && unicode.IsSpace(r) {
		return ' '
	}
	if r == '\v' {
		return ' '
	}
	return r
}
