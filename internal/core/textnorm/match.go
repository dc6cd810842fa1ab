package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ContainsWord reports whether phrase occurs in text delimited by word
// boundaries on both sides. Letters, digits and underscore of any script are
// word characters, so "como" does not match inside "comoção".
func ContainsWord(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	offset := 0
	for {
		idx := strings.Index(text[offset:], phrase)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(phrase)
		if boundaryBefore(text, start, phrase) && boundaryAfter(text, end, phrase) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}

// ContainsAnyWord reports whether any of the phrases is a whole-word match.
func ContainsAnyWord(text string, phrases ...string) bool {
	for _, phrase := range phrases {
		if ContainsWord(text, phrase) {
			return true
		}
	}
	return false
}

func boundaryBefore(text string, start int, phrase string) bool {
	first, _ := utf8.DecodeRuneInString(phrase)
	if !isWordRune(first) {
		return true
	}
	if start == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(text[:start])
	return !isWordRune(prev)
}

func boundaryAfter(text string, end int, phrase string) bool {
	last, _ := utf8.DecodeLastRuneInString(phrase)
	if !isWordRune(last) {
		return true
	}
	if end >= len(text) {
		return true
	}
	next, _ := utf8.DecodeRuneInString(text[end:])
	return !isWordRune(next)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
