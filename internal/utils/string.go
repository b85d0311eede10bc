package utils

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// IsSeparator checks if a rune is a separator character
func IsSeparator(r rune) bool {
	return r == ' ' || r == '_' || r == '-' || r == '.' || r == '/' || r == '\t' || r == ':'
}

// EqualFold performs case-insensitive rune equality check
func EqualFold(a, b rune) bool {
	if a == b {
		return true
	}

	// Try simple ASCII case folding first (faster)
	if a < utf8.RuneSelf && b < utf8.RuneSelf {
		return EqualFoldASCII(a, b)
	}

	// Use Unicode's more comprehensive case folding
	return strings.EqualFold(string(a), string(b))
}

// EqualFoldASCII folds only A-Z, any other rune must match exactly.
func EqualFoldASCII(a, b rune) bool {
	if 'A' <= a && a <= 'Z' {
		a += 'a' - 'A'
	}
	if 'A' <= b && b <= 'Z' {
		b += 'a' - 'A'
	}
	return a == b
}

// RuneLen is the number of runes in s.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// FormatWithCommas formats an integer with comma separators
func FormatWithCommas(n int) string {
	str := strconv.Itoa(n)
	if n < 1000 && n > -1000 {
		return str
	}

	sign := ""
	if str[0] == '-' {
		sign, str = "-", str[1:]
	}
	var b strings.Builder
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(char)
	}
	return sign + b.String()
}
