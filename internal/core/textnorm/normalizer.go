package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/kirillkom/mail-triage/internal/core/domain"
)

// accentedLetters are the only non-ASCII letters that survive the character
// filter. The set is lowercase only and the filter runs before case folding,
// so uppercase accented letters become token separators.
const accentedLetters = "çãáéíóúàèêõô"

type Normalizer struct {
	res Resources
}

func NewNormalizer(res Resources) *Normalizer {
	return &Normalizer{res: res}
}

// Normalize filters characters, lowercases, tokenizes, drops stopwords and
// lemmatizes. Token order is preserved.
func (n *Normalizer) Normalize(text string) domain.NormalizedText {
	filtered := filterCharacters(text)
	// cases.Caser is stateful, so each call gets its own.
	lowered := cases.Lower(language.BrazilianPortuguese).String(filtered)

	fields := strings.Fields(lowered)
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if n.res.IsStopword(field) {
			continue
		}
		tokens = append(tokens, n.res.Lemma(field))
	}
	return domain.NormalizedText{Tokens: tokens}
}

func filterCharacters(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if keepRune(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte(' ')
	}
	return b.String()
}

func keepRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case unicode.IsSpace(r):
		return true
	default:
		return strings.ContainsRune(accentedLetters, r)
	}
}
