package sqlnorm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	backtickSpan    = regexp.MustCompile("`[^`]*`")
	doubleQuoteSpan = regexp.MustCompile(`"[^"]*"`)
	bareIdentifier  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	placeholderRef  = regexp.MustCompile(`__IDENTIFIER_[0-9]+__`)
)

// identifierTable records the original text of every protected identifier,
// indexed by the number embedded in its placeholder.
type identifierTable struct {
	originals []string
}

func (t *identifierTable) add(original string) string {
	token := fmt.Sprintf("__IDENTIFIER_%d__", len(t.originals))
	t.originals = append(t.originals, original)
	return token
}

// protectIdentifiers swaps quoted identifiers for opaque tokens so that the
// literal passes cannot touch them. Backtick spans are always protected;
// double-quoted spans only when they look like `name` or `table.column`.
func protectIdentifiers(text string) (string, *identifierTable) {
	table := &identifierTable{}

	text = backtickSpan.ReplaceAllStringFunc(text, table.add)

	text = doubleQuoteSpan.ReplaceAllStringFunc(text, func(span string) string {
		inner := span[1 : len(span)-1]
		if bareIdentifier.MatchString(inner) || strings.Contains(inner, ".") {
			return table.add(span)
		}
		return span
	})

	return text, table
}

// restoreIdentifiers puts the original quoted text back in place of each token.
func restoreIdentifiers(text string, table *identifierTable) string {
	if table == nil || len(table.originals) == 0 {
		return text
	}
	return placeholderRef.ReplaceAllStringFunc(text, func(token string) string {
		idx, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(token, "__IDENTIFIER_"), "__"))
		if err != nil || idx < 0 || idx >= len(table.originals) {
			return token
		}
		return table.originals[idx]
	})
}
