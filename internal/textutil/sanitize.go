package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxTokenLength caps tokens so workspace paths stay well under filesystem
// name limits once a content hash is appended.
const MaxTokenLength = 64

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeToken converts value to a lowercase token safe for use as a
// directory name. Accents are folded to their base letters, ASCII letters,
// digits, '-' and '_' are kept, and every other run of characters collapses
// to a single underscore. Empty results become "unknown".
func SanitizeToken(value string) string {
	folded, _, err := transform.String(stripMarks, strings.TrimSpace(value))
	if err != nil {
		folded = value
	}

	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
		if b.Len() >= MaxTokenLength {
			break
		}
	}
	out := strings.Trim(b.String(), "_-")
	if len(out) > MaxTokenLength {
		out = strings.TrimRight(out[:MaxTokenLength], "_-")
	}
	if out == "" {
		return "unknown"
	}
	return out
}
