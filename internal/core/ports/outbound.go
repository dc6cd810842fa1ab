package ports

import (
	"context"

	"github.com/kirillkom/mail-triage/internal/core/domain"
)

// ContentExtractor turns raw request input into plain text. It never fails:
// every error degrades to an empty string.
type ContentExtractor interface {
	Extract(ctx context.Context, input domain.RawInput) string
}

// FormatExtractor reads text out of one document format.
type FormatExtractor interface {
	ExtractText(ctx context.Context, body []byte) (string, error)
}

// TextNormalizer reduces text to canonical tokens.
type TextNormalizer interface {
	Normalize(text string) domain.NormalizedText
}

// EmailClassifier scores normalized text into exactly one category.
type EmailClassifier interface {
	Classify(normalized string) domain.Decision
}

// ReplyGenerator is the optional external text-generation capability.
type ReplyGenerator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (string, error)
}

// ReplyComposer maps a category and the original text to a reply.
type ReplyComposer interface {
	Compose(ctx context.Context, category domain.Category, original string) (string, domain.ReplySource)
}

// TriageRecorder persists the audit trail of triage runs.
type TriageRecorder interface {
	Record(ctx context.Context, record domain.TriageRecord) error
}

// DocumentArchiver keeps uploaded documents next to their audit record.
type DocumentArchiver interface {
	Archive(ctx context.Context, recordID, filename string, body []byte) error
}

// TriagePublisher announces completed triage runs.
type TriagePublisher interface {
	PublishTriaged(ctx context.Context, event domain.TriageEvent) error
}

// TriageObserver receives pipeline counters; implemented by the metrics layer.
type TriageObserver interface {
	ObserveTriage(category domain.Category, source domain.ReplySource)
	ObserveGenerationFailure(reason domain.GenerationFailure)
}
