package suggest

import (
	"unicode"
)

// Tokenizer splits row text into words. A word is a maximal run of
// identifier-like runes.
type Tokenizer struct {
	// Unicode treats every Unicode letter, mark and digit as a word rune.
	// Without it only [A-Za-z0-9_] are.
	Unicode bool
}

// IsWordRune reports whether r can be part of a word.
func (t Tokenizer) IsWordRune(r rune) bool {
	if r == '_' {
		return true
	}
	if r < 0x80 {
		return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
	}
	if !t.Unicode {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r)
}

// Words appends every word of line to dst, in order, duplicates included.
func (t Tokenizer) Words(dst []string, line string) []string {
	start := -1
	for i, r := range line {
		if t.IsWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			dst = append(dst, line[start:i])
			start = -1
		}
	}
	if start >= 0 {
		dst = append(dst, line[start:])
	}
	return dst
}

// WordAt returns the word touching the caret at rune column col. A caret at
// either edge of a word counts as inside it.
func (t Tokenizer) WordAt(line string, col int) (string, bool) {
	runes := []rune(line)
	if col < 0 {
		col = 0
	}
	if col > len(runes) {
		col = len(runes)
	}

	start, end := col, col
	for start > 0 && t.IsWordRune(runes[start-1]) {
		start--
	}
	for end < len(runes) && t.IsWordRune(runes[end]) {
		end++
	}
	if start == end {
		return "", false
	}
	return string(runes[start:end]), true
}
