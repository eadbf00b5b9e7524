package sqlnorm

import (
	"regexp"
	"strings"
)

var (
	inList          = regexp.MustCompile(`(?i)\b(in)\s*\(([^()]*)\)`)
	bindPlaceholder = regexp.MustCompile(`^(?:\?|\$\?|\$[0-9]+|:[A-Za-z_][A-Za-z0-9_]*)$`)
)

// canonicalizeInLists rewrites every IN (...) list of bind values to exactly as
// many placeholders as it had items, joined by ", ". Lists holding anything
// other than placeholders (columns, expressions) are left alone so that they
// keep distinguishing queries. BETWEEN ? AND ? needs no rewrite.
func canonicalizeInLists(text string) string {
	return inList.ReplaceAllStringFunc(text, func(match string) string {
		sub := inList.FindStringSubmatch(match)
		keyword, inner := sub[1], sub[2]

		items := strings.Split(inner, ",")
		for _, item := range items {
			if !bindPlaceholder.MatchString(strings.TrimSpace(item)) {
				return match
			}
		}

		placeholders := make([]string, len(items))
		for i := range placeholders {
			placeholders[i] = Placeholder
		}
		return keyword + " (" + strings.Join(placeholders, ", ") + ")"
	})
}
