package ports

import (
	"context"

	"github.com/kirillkom/mail-triage/internal/core/domain"
)

// EmailTriager is the inbound contract for the classify-and-reply pipeline.
type EmailTriager interface {
	Triage(ctx context.Context, input domain.RawInput) (*domain.TriageResult, error)
}
