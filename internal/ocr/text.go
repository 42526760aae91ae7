package ocr

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanText prepares raw backend output for the pipeline: NFC composition,
// removal of zero-width and control characters, and whitespace trimming.
// Arithmetic symbols are left untouched.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case isZeroWidth(r):
		case unicode.IsControl(r) && r != '\t' && r != '\n':
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200D', '\uFEFF':
		return true
	}
	return false
}

// cleanDetections applies CleanText to every detection in place.
func cleanDetections(dets []Detection) []Detection {
	for i := range dets {
		dets[i].Text = CleanText(dets[i].Text)
	}
	return dets
}
