package classify

import (
	"fmt"
	"strings"
)

// KeywordSet is the named, versioned lexical configuration of the classifier.
type KeywordSet struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Productive   []string `yaml:"productive"`
	Unproductive []string `yaml:"unproductive"`

	// AttachmentMarkers add one productive hit when any is a substring.
	AttachmentMarkers []string `yaml:"attachment_markers"`
	// ModalMarkers add one productive hit on a whole-word match (as does "?").
	ModalMarkers []string `yaml:"modal_markers"`
}

// Normalized returns a copy with lowercased, trimmed, de-duplicated phrases.
func (k KeywordSet) Normalized() KeywordSet {
	return KeywordSet{
		Name:              strings.TrimSpace(k.Name),
		Version:           strings.TrimSpace(k.Version),
		Productive:        normalizePhrases(k.Productive),
		Unproductive:      normalizePhrases(k.Unproductive),
		AttachmentMarkers: normalizePhrases(k.AttachmentMarkers),
		ModalMarkers:      normalizePhrases(k.ModalMarkers),
	}
}

func (k KeywordSet) Validate() error {
	if len(k.Productive) == 0 {
		return fmt.Errorf("keyword set %q: productive list is empty", k.Name)
	}
	if len(k.Unproductive) == 0 {
		return fmt.Errorf("keyword set %q: unproductive list is empty", k.Name)
	}
	return nil
}

// ID identifies the keyword set in logs, e.g. "pt-br-support@3".
func (k KeywordSet) ID() string {
	name := k.Name
	if name == "" {
		name = "unnamed"
	}
	if k.Version == "" {
		return name
	}
	return name + "@" + k.Version
}

func normalizePhrases(phrases []string) []string {
	seen := make(map[string]struct{}, len(phrases))
	out := make([]string, 0, len(phrases))
	for _, phrase := range phrases {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase == "" {
			continue
		}
		if _, ok := seen[phrase]; ok {
			continue
		}
		seen[phrase] = struct{}{}
		out = append(out, phrase)
	}
	return out
}
