package similarity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// suffixes the sources occasionally glue onto player names.
var nameSuffixes = map[string]struct{}{
	"jr":  {},
	"jr.": {},
	"sr":  {},
	"sr.": {},
	"ii":  {},
	"iii": {},
	"iv":  {},
}

// NormalizeName folds case, strips diacritics, collapses whitespace and
// drops generational suffixes and trailing shirt numbers, so that
// "Kylian Mbappé  Jr." and "kylian mbappe" compare equal.
func NormalizeName(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	stripped, _, err := transform.String(diacriticStripper, lowered)
	if err != nil {
		stripped = lowered
	}

	fields := strings.Fields(stripped)
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if _, drop := nameSuffixes[field]; drop {
			continue
		}
		if isDigits(field) {
			continue
		}
		out = append(out, field)
	}
	return strings.Join(out, " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
