package telegram

import (
	"strings"
	"unicode/utf8"
)

// SplitMessage splits text into chunks of at most maxLen characters,
// preferring to break after a newline in the second half of a chunk.
func SplitMessage(text string, maxLen int) []string {
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			parts = append(parts, string(runes))
			break
		}

		splitAt := maxLen
		chunk := string(runes[:maxLen])
		if nl := strings.LastIndex(chunk, "\n"); nl >= 0 {
			if at := utf8.RuneCountInString(chunk[:nl]) + 1; at > maxLen/2 {
				splitAt = at
			}
		}

		parts = append(parts, string(runes[:splitAt]))
		runes = runes[splitAt:]
	}

	return parts
}
