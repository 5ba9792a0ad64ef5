// Package utils holds small text helpers shared by the notifiers and logging.
package utils

import (
	"strings"
)

const ellipsis = "..."

// TruncateText flattens text to one line and cuts it to at most maxLen runes,
// ending in "..." when shortened.
func TruncateText(text string, maxLen int) string {
	text = strings.TrimSpace(strings.Join(strings.Fields(text), " "))

	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= len(ellipsis) {
		return ellipsis
	}
	return string(runes[:maxLen-len(ellipsis)]) + ellipsis
}

var logEscaper = strings.NewReplacer("\n", `\n`, "\r", `\r`, "\t", `\t`)

// EscapeForLogging keeps upstream text on a single log line and caps its length
func EscapeForLogging(text string, maxLen int) string {
	if runes := []rune(text); len(runes) > maxLen {
		text = string(runes[:maxLen]) + ellipsis
	}
	return logEscaper.Replace(text)
}
