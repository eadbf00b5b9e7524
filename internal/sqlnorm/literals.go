package sqlnorm

import (
	"regexp"
	"strings"
)

// Placeholder replaces every literal value.
const Placeholder = "?"

var (
	floatLiteral        = regexp.MustCompile(`[0-9]+\.[0-9]+`)
	integerLiteral      = regexp.MustCompile(`[0-9]+`)
	singleQuotedLiteral = regexp.MustCompile(`'(?:[^']|'')*'`)
	doubleQuotedLiteral = regexp.MustCompile(`"(?:[^"]|"")*"`)
	booleanLiteral      = regexp.MustCompile(`(?i)\b(?:true|false)\b`)
)

// replaceLiterals runs the literal passes in a fixed order. Numbers go first so
// that digits inside identifiers such as users2 are judged by their neighbours
// before any quoting is removed.
func replaceLiterals(text string) string {
	text = replaceNumbers(text, floatLiteral)
	text = replaceNumbers(text, integerLiteral)
	text = singleQuotedLiteral.ReplaceAllLiteralString(text, Placeholder)
	text = doubleQuotedLiteral.ReplaceAllLiteralString(text, Placeholder)
	text = booleanLiteral.ReplaceAllLiteralString(text, Placeholder)
	return text
}

// replaceNumbers replaces matches of re unless the match touches a letter or an
// underscore on either side. RE2 has no lookaround, so neighbours are checked
// by hand.
func replaceNumbers(text string, re *regexp.Regexp) string {
	matches := re.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > 0 && isIdentChar(text[start-1]) {
			continue
		}
		if end < len(text) && isIdentChar(text[end]) {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(Placeholder)
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
