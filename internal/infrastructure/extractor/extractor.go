package extractor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kirillkom/mail-triage/internal/core/domain"
	"github.com/kirillkom/mail-triage/internal/core/ports"
)

// Extractor picks a format extractor by file extension and degrades every
// failure to the pasted text, or to an empty string when there is none.
type Extractor struct {
	plain    ports.FormatExtractor
	document ports.FormatExtractor
}

// New wires the per-format extractors. A nil document extractor means no PDF
// engine is available; documents then yield empty text.
func New(plain, document ports.FormatExtractor) *Extractor {
	return &Extractor{plain: plain, document: document}
}

func (e *Extractor) Extract(ctx context.Context, input domain.RawInput) string {
	pasted := strings.TrimSpace(input.PastedText)

	var engine ports.FormatExtractor
	format := input.Format()
	switch format {
	case domain.FormatPlainText:
		engine = e.plain
	case domain.FormatDocument:
		engine = e.document
	default:
		return pasted
	}

	if engine == nil {
		slog.Debug("extract_engine_unavailable", "format", string(format), "filename", input.Filename)
		return pasted
	}

	text, err := engine.ExtractText(ctx, input.Body)
	if err != nil {
		slog.Debug("extract_degraded", "format", string(format), "filename", input.Filename, "error", err)
		return pasted
	}
	if strings.TrimSpace(text) == "" {
		return pasted
	}
	return text
}
