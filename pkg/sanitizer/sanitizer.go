package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

// Apply runs the transforms over value in order.
func Apply(value string, transforms ...func(string) string) string {
	for _, t := range transforms {
		value = t(value)
	}
	return value
}

// Trim removes leading and trailing whitespace.
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// TrimToUpper trims and uppercases, for code-like fields (IFSC, currency).
func TrimToUpper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes anything that looks like a markup tag.
func StripHTML(s string) string {
	return htmlTagRe.ReplaceAllString(s, "")
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// SingleLine collapses all whitespace runs, newlines included, into single
// spaces.
func SingleLine(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// RemoveExtraWhitespace collapses repeated spaces and tabs but keeps the
// string's own leading/trailing content intact apart from trimming.
func RemoveExtraWhitespace(s string) string {
	return SingleLine(s)
}

// MaxLength truncates to at most maxLen runes.
func MaxLength(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// KeepDigits drops every rune that is not an ASCII digit.
func KeepDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsDigit(r) && r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
