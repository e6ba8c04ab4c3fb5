package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldAccents decomposes text and drops combining marks, so "Capítulo"
// becomes "Capitulo".
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// SanitizeFileName makes a chapter name usable as a video file stem. Path
// separators and reserved punctuation become dashes, control characters and
// quoting characters are removed, and whitespace runs collapse to one space.
func SanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*':
			b.WriteByte('-')
		case r == '?' || r == '"' || r == '<' || r == '>' || r == '|' || unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// SanitizeToken turns a chapter folder name into a lowercase ASCII token for
// chapter IDs. Accents are folded, letters and digits are kept along with
// dashes and underscores, and every other rune becomes an underscore.
// Empty results yield "unknown".
func SanitizeToken(value string) string {
	var b strings.Builder
	for _, r := range foldAccents(strings.TrimSpace(value)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if out := strings.Trim(b.String(), "_-"); out != "" {
		return out
	}
	return "unknown"
}
