package speech

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxLen is the narration chunk cap. Long utterances get cut off
// by speech engines, so text is split into sentence-aligned pieces.
const DefaultMaxLen = 200

// Sentence boundaries searched backward from the cap. The danda covers
// Hindi translations.
var delimiters = []string{". ", "। ", "? ", "! ", "\n"}

// Chunk splits text into pieces of at most maxLen runes, preferring to
// cut just after a sentence delimiter, then after a space, then hard.
// Concatenating the chunks reproduces the input byte for byte.
func Chunk(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	if text == "" {
		return nil
	}

	var chunks []string
	rest := []rune(text)
	for len(rest) > 0 {
		if len(rest) <= maxLen {
			chunks = append(chunks, string(rest))
			break
		}
		n := cutPoint(string(rest[:maxLen]), maxLen)
		chunks = append(chunks, string(rest[:n]))
		rest = rest[n:]
	}
	return chunks
}

// cutPoint returns how many runes of window to keep. window holds
// exactly maxLen runes.
func cutPoint(window string, maxLen int) int {
	best := -1
	for _, d := range delimiters {
		if i := strings.LastIndex(window, d); i >= 0 {
			if end := i + len(d); end > best {
				best = end
			}
		}
	}
	if best > 0 {
		return utf8.RuneCountInString(window[:best])
	}
	if i := strings.LastIndexByte(window, ' '); i > 0 {
		return utf8.RuneCountInString(window[:i+1])
	}
	return maxLen
}
