package pdfdoc

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor reads plain text out of PDF documents page by page.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractText joins per-page text with "\n". Pages without extractable text
// contribute an empty string. The pdf package panics on some malformed
// inputs; those panics are returned as errors.
func (e *Extractor) ExtractText(ctx context.Context, body []byte) (text string, err error) {
	if len(body) == 0 {
		return "", nil
	}
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("pdf engine panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		pages = append(pages, pageText(reader.Page(i)))
	}
	return strings.Join(pages, "\n"), nil
}

func pageText(page pdf.Page) string {
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
