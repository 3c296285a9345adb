// Package textnorm holds the two text passes the classifier depends on:
// whitespace collapsing for extracted page text and accent/case folding for
// keyword comparison.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var reMultiSpace = regexp.MustCompile(`[\s\v\p{Z}\x{85}]{2,}`)

// Clean collapses every run of two or more whitespace characters into a single space.
// Single whitespace characters (including lone newlines) are kept as they are.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	return reMultiSpace.ReplaceAllString(s, " ")
}

// Fold removes diacritics and case-folds s, so "Epicrísis" and "EPICRISIS" compare equal.
func Fold(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// IsBlank reports whether s holds nothing but whitespace.
func IsBlank(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}
