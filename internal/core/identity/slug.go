package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold strips diacritics by decomposing and removing combining marks
var fold = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Slug folds an identity name to a filesystem safe form used in archive
// filenames: diacritics stripped, spaces to underscores, anything outside
// [A-Za-z0-9_-] replaced with an underscore. Case is preserved so names
// stay readable when parsed back out of filenames
func Slug(name string) string {
	s, _, err := transform.String(fold, name)
	if err != nil {
		s = name
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "person"
	}
	return out
}
