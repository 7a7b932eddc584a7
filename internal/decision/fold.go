package decision

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold reduces a free-text token to its comparison key: accents removed,
// upper-cased, underscores and dashes treated as spaces, whitespace collapsed.
// "Médio " and "medio" fold to the same key; so do "DEFICIT_HIDRICO" and
// "Déficit Hídrico".
func Fold(s string) string {
	// transform.Chain is stateful, build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.Map(func(r rune) rune {
		switch r {
		case '_', '-':
			return ' '
		}
		return r
	}, out)
	return strings.Join(strings.Fields(strings.ToUpper(out)), " ")
}
