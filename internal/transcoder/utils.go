package transcoder

import "strings"

// tail returns at most the last n bytes of s, trimmed of surrounding whitespace
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
