package classify

import (
	"strings"

	"github.com/kirillkom/mail-triage/internal/core/domain"
	"github.com/kirillkom/mail-triage/internal/core/textnorm"
)

// Classifier is a deterministic keyword scorer. It holds no per-call state and
// is safe for concurrent use.
//
// Keywords match as substrings, not whole words, so "ajuda" also hits inside
// "ajudar". This over-matches sub-words and is a known precision limit; the
// tie-break outcomes depend on it.
type Classifier struct {
	keywords KeywordSet
}

func New(keywords KeywordSet) *Classifier {
	return &Classifier{keywords: keywords.Normalized()}
}

func (c *Classifier) KeywordSetID() string {
	return c.keywords.ID()
}

// Classify scores text against both keyword lists. Ties, including the empty
// text, resolve to Productive.
func (c *Classifier) Classify(normalized string) domain.Decision {
	text := strings.ToLower(normalized)

	scores := domain.Scores{
		Productive:   countSubstringHits(text, c.keywords.Productive),
		Unproductive: countSubstringHits(text, c.keywords.Unproductive),
	}

	if containsAny(text, c.keywords.AttachmentMarkers) {
		scores.Productive++
	}
	if strings.Contains(text, "?") || textnorm.ContainsAnyWord(text, c.keywords.ModalMarkers...) {
		scores.Productive++
	}

	category := domain.CategoryUnproductive
	if scores.Productive >= scores.Unproductive {
		category = domain.CategoryProductive
	}
	return domain.Decision{Category: category, Scores: scores}
}

func countSubstringHits(text string, phrases []string) int {
	hits := 0
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			hits++
		}
	}
	return hits
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
