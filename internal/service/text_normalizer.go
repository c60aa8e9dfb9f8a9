package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizeText lowercases, strips combining marks and collapses whitespace.
func normalizeText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// tokenizeText is normalizeText with punctuation turned into spaces, for whole-word scans.
func tokenizeText(s string) string {
	normalized := normalizeText(s)
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, normalized)
	return strings.Join(strings.Fields(mapped), " ")
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func containsPhrase(tokens, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+tokens+" ", " "+phrase+" ")
}
