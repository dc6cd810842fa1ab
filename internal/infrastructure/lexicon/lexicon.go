package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/mail-triage/internal/core/classify"
	"github.com/kirillkom/mail-triage/internal/core/textnorm"
)

//go:embed default.yaml
var defaultYAML []byte

// Lexicon bundles every piece of language data the pipeline reads: the
// classifier keyword set, the stopword list and the lemma table.
type Lexicon struct {
	Keywords  classify.KeywordSet `yaml:"keywords"`
	Stopwords []string            `yaml:"stopwords"`
	Lemmas    map[string]string   `yaml:"lemmas"`
}

// Default returns the embedded Brazilian Portuguese lexicon.
func Default() (Lexicon, error) {
	lex, err := Parse(defaultYAML)
	if err != nil {
		return Lexicon{}, fmt.Errorf("parse embedded lexicon: %w", err)
	}
	return lex, nil
}

// Load reads a lexicon file. Sections missing from the file are taken from the
// embedded default. An empty path returns the default.
func Load(path string) (Lexicon, error) {
	def, err := Default()
	if err != nil {
		return Lexicon{}, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return def, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	lex, err := Parse(raw)
	if err != nil {
		return Lexicon{}, fmt.Errorf("parse lexicon %s: %w", path, err)
	}
	return lex.withFallback(def), nil
}

func Parse(raw []byte) (Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(raw, &lex); err != nil {
		return Lexicon{}, err
	}
	return lex, nil
}

func (l Lexicon) withFallback(def Lexicon) Lexicon {
	out := l
	if len(out.Keywords.Productive) == 0 && len(out.Keywords.Unproductive) == 0 {
		out.Keywords = def.Keywords
	}
	if len(out.Stopwords) == 0 {
		out.Stopwords = def.Stopwords
	}
	if len(out.Lemmas) == 0 {
		out.Lemmas = def.Lemmas
	}
	return out
}

// Validate checks the keyword set is usable by the classifier.
func (l Lexicon) Validate() error {
	return l.Keywords.Normalized().Validate()
}

// Resources builds the immutable normalizer resources from this lexicon.
func (l Lexicon) Resources() textnorm.Resources {
	return textnorm.NewResources(l.Stopwords, l.Lemmas)
}
