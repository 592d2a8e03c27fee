package logutil

import "strings"

// SanitizeForLog strips newlines and other control characters from
// request-supplied strings before they reach the log, so a crafted pod or
// namespace name cannot inject fake log entries.
func SanitizeForLog(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(' ')
		case r < 32:
			// drop remaining control characters
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
