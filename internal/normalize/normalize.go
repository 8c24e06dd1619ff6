package normalize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// brandingPhrases are outlet names and attribution tails that
// aggregators prepend or append to otherwise identical headlines. They
// are removed from the comparison form only; the display form keeps
// them.
var brandingPhrases = []string{
	"fibre2fashion",
	"just style",
	"apparel resources",
	"apparelresources",
	"sources say",
	"sources",
	"exclusive",
	"breaking",
	"report",
	"reuters",
	"bloomberg",
}

// Display strips all markup from s, unescapes HTML entities, and
// collapses whitespace runs to single spaces.
func Display(s string) string {
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// Truncate caps s at max runes, replacing the tail with a truncation
// marker when it cuts. max values below 1 return an empty string.
func Truncate(s string, max int) string {
	if max < 1 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

// CompareKey renders s into the comparison form: display form,
// lowercased, branding phrases removed, everything outside [a-z0-9 ]
// dropped, whitespace collapsed. The result is never shown to a user.
func CompareKey(s string) string {
	s = strings.ToLower(Display(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	key := " " + strings.Join(strings.Fields(b.String()), " ") + " "

	for _, phrase := range brandingPhrases {
		key = strings.ReplaceAll(key, " "+phrase+" ", " ")
	}

	return strings.TrimSpace(strings.Join(strings.Fields(key), " "))
}
