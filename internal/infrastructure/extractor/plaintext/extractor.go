package plaintext

import (
	"context"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// Extractor decodes uploaded .txt files as UTF-8.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractText decodes body as UTF-8. Invalid byte sequences are replaced with
// U+FFFD instead of failing; valid input round-trips unchanged.
func (e *Extractor) ExtractText(_ context.Context, body []byte) (string, error) {
	if len(body) == 0 {
		return "", nil
	}
	decoded, err := unicode.UTF8.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("decode utf-8 text: %w", err)
	}
	return string(decoded), nil
}
