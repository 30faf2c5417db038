package screen

import "strings"

// Platform limits, in runes.
const (
	MaxMessageLength = 4096
	MaxCaptionLength = 1024
)

// Truncate shortens text to at most limit runes, marking the cut with an ellipsis.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit || limit <= 0 {
		return text
	}
	return string(runes[:limit-1]) + "…"
}

// Split breaks text into chunks of at most limit runes, preferring to cut
// after a newline in the second half of a chunk.
func Split(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	runes := []rune(text)
	var chunks []string
	for len(runes) > 0 {
		size := len(runes)
		if size > limit {
			size = limit
			if idx := lastIndexRune(runes[:size], '\n'); idx > size/2 {
				size = idx + 1
			}
		}
		if chunk := strings.TrimRight(string(runes[:size]), "\n"); chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[size:]
	}
	return chunks
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
