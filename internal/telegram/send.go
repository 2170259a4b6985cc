package telegram

import (
	"strings"
	"unicode/utf16"
)

// maxMessageUnits is Telegram's text limit, counted in UTF-16 code units.
const maxMessageUnits = 4096

// chunkMessage splits text into pieces of at most limit UTF-16 units.
// Cuts fall on rune boundaries, preferably after a newline in the second
// half of a piece.
func chunkMessage(text string, limit int) []string {
	var chunks []string
	for text != "" {
		end := prefixEnd(text, limit)
		if end == len(text) {
			chunks = append(chunks, text)
			break
		}
		if nl := strings.LastIndexByte(text[:end], '\n'); nl >= 0 && nl+1 > end/2 {
			end = nl + 1
		}
		chunks = append(chunks, text[:end])
		text = text[end:]
	}
	if chunks == nil {
		chunks = []string{text}
	}
	return chunks
}

// prefixEnd returns the byte length of the longest prefix of s that fits in
// limit UTF-16 units. At least one rune is always taken.
func prefixEnd(s string, limit int) int {
	units := 0
	for i, r := range s {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+n > limit && i > 0 {
			return i
		}
		units += n
	}
	return len(s)
}
