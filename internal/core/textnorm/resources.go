package textnorm

import "strings"

// Resources holds the process-wide linguistic data used by the Normalizer.
// A Resources value is immutable once built and safe to share between
// goroutines.
type Resources struct {
	stopwords map[string]struct{}
	lemmas    map[string]string
}

// NewResources copies the given stopword list and lemma table. Keys are
// lowercased; empty entries are ignored.
func NewResources(stopwords []string, lemmas map[string]string) Resources {
	res := Resources{
		stopwords: make(map[string]struct{}, len(stopwords)),
		lemmas:    make(map[string]string, len(lemmas)),
	}
	for _, word := range stopwords {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		res.stopwords[word] = struct{}{}
	}
	for form, lemma := range lemmas {
		form = strings.ToLower(strings.TrimSpace(form))
		lemma = strings.ToLower(strings.TrimSpace(lemma))
		if form == "" || lemma == "" {
			continue
		}
		res.lemmas[form] = lemma
	}
	return res
}

func (r Resources) IsStopword(token string) bool {
	_, ok := r.stopwords[token]
	return ok
}

// Lemma maps a token to its dictionary form. Unknown tokens are returned as is.
func (r Resources) Lemma(token string) string {
	if lemma, ok := r.lemmas[token]; ok {
		return lemma
	}
	return token
}

func (r Resources) StopwordCount() int { return len(r.stopwords) }

func (r Resources) LemmaCount() int { return len(r.lemmas) }
