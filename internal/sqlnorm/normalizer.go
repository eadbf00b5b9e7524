// Package sqlnorm turns raw SQL into a canonical query shape: literal values
// become "?" while table and column references are kept, so that queries that
// differ only in their values share one fingerprint.
//
// The transform is lexical and best-effort. It never fails and never reads
// anything but its input:
//
//	protect identifiers -> replace literals -> canonicalize IN lists
//	-> restore identifiers -> collapse whitespace
package sqlnorm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxNormalizedLength bounds the stored shape so the unique index stays portable.
const MaxNormalizedLength = 1000

var whitespaceRun = regexp.MustCompile(`\s+`)

// Normalize is the nil-aware form: nil in, nil out.
func Normalize(raw *string) *string {
	if raw == nil {
		return nil
	}
	out := NormalizeString(*raw)
	return &out
}

// NormalizeString returns the canonical shape of raw. Empty input is returned unchanged.
func NormalizeString(raw string) string {
	if raw == "" {
		return raw
	}

	text, identifiers := protectIdentifiers(raw)
	text = replaceLiterals(text)
	text = canonicalizeInLists(text)
	text = restoreIdentifiers(text, identifiers)
	return collapseWhitespace(text)
}

func collapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllLiteralString(text, " "))
}

// Truncate cuts a normalized shape to MaxNormalizedLength runes.
func Truncate(normalized string) string {
	if utf8.RuneCountInString(normalized) <= MaxNormalizedLength {
		return normalized
	}
	runes := []rune(normalized)
	return string(runes[:MaxNormalizedLength])
}
