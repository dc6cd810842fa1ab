package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kirillkom/mail-triage/internal/core/domain"
	"github.com/kirillkom/mail-triage/internal/core/ports"
)

// TriageUseCase runs extraction, normalization, classification and reply
// composition for one email. Audit recording and event publishing are
// optional side channels whose failures are logged only, as is archiving of
// uploaded documents.
type TriageUseCase struct {
	extractor  ports.ContentExtractor
	normalizer ports.TextNormalizer
	classifier ports.EmailClassifier
	composer   ports.ReplyComposer

	recorder  ports.TriageRecorder
	archiver  ports.DocumentArchiver
	publisher ports.TriagePublisher
	observer  ports.TriageObserver

	now func() time.Time
}

func NewTriageUseCase(
	extractor ports.ContentExtractor,
	normalizer ports.TextNormalizer,
	classifier ports.EmailClassifier,
	composer ports.ReplyComposer,
) *TriageUseCase {
	return &TriageUseCase{
		extractor:  extractor,
		normalizer: normalizer,
		classifier: classifier,
		composer:   composer,
		now:        time.Now,
	}
}

func (uc *TriageUseCase) WithRecorder(recorder ports.TriageRecorder) *TriageUseCase {
	uc.recorder = recorder
	return uc
}

func (uc *TriageUseCase) WithArchiver(archiver ports.DocumentArchiver) *TriageUseCase {
	uc.archiver = archiver
	return uc
}

func (uc *TriageUseCase) WithPublisher(publisher ports.TriagePublisher) *TriageUseCase {
	uc.publisher = publisher
	return uc
}

func (uc *TriageUseCase) WithObserver(observer ports.TriageObserver) *TriageUseCase {
	uc.observer = observer
	return uc
}

func (uc *TriageUseCase) Triage(ctx context.Context, input domain.RawInput) (*domain.TriageResult, error) {
	started := uc.now()

	text := uc.extractor.Extract(ctx, input)
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "triage", domain.ErrContentMissing)
	}

	normalized := uc.normalizer.Normalize(text)
	decision := uc.classifier.Classify(normalized.String())
	reply, source := uc.composer.Compose(ctx, decision.Category, text)

	result := &domain.TriageResult{
		Category:    decision.Category,
		Reply:       reply,
		ReplySource: source,
		Scores:      decision.Scores,
	}

	recordID := uc.record(ctx, input, result, text)
	uc.archive(ctx, input, recordID)
	uc.publish(ctx, input, result, recordID)
	if uc.observer != nil {
		uc.observer.ObserveTriage(result.Category, result.ReplySource)
	}

	slog.Info("triage_completed",
		"record_id", recordID,
		"source", sourceOf(input),
		"category", string(result.Category),
		"reply_source", string(result.ReplySource),
		"productive_hits", result.Scores.Productive,
		"unproductive_hits", result.Scores.Unproductive,
		"tokens", len(normalized.Tokens),
		"duration_ms", float64(uc.now().Sub(started).Microseconds())/1000.0,
	)
	return result, nil
}

func (uc *TriageUseCase) record(ctx context.Context, input domain.RawInput, result *domain.TriageResult, text string) string {
	id := uuid.NewString()
	if uc.recorder == nil {
		return id
	}
	record := domain.TriageRecord{
		ID:          id,
		Source:      sourceOf(input),
		Filename:    input.Filename,
		Category:    result.Category,
		ReplySource: result.ReplySource,
		Scores:      result.Scores,
		TextChars:   utf8.RuneCountInString(text),
		CreatedAt:   uc.now().UTC(),
	}
	if err := uc.recorder.Record(ctx, record); err != nil {
		slog.Error("triage_record_failed", "record_id", id, "error", err)
	}
	return id
}

func (uc *TriageUseCase) archive(ctx context.Context, input domain.RawInput, recordID string) {
	if uc.archiver == nil || !input.HasDocument() {
		return
	}
	if err := uc.archiver.Archive(ctx, recordID, input.Filename, input.Body); err != nil {
		slog.Error("triage_archive_failed", "record_id", recordID, "filename", input.Filename, "error", err)
	}
}

func (uc *TriageUseCase) publish(ctx context.Context, input domain.RawInput, result *domain.TriageResult, recordID string) {
	if uc.publisher == nil {
		return
	}
	event := domain.TriageEvent{
		RecordID:    recordID,
		Source:      sourceOf(input),
		Category:    result.Category,
		ReplySource: result.ReplySource,
		Reply:       result.Reply,
		OccurredAt:  uc.now().UTC(),
	}
	if err := uc.publisher.PublishTriaged(ctx, event); err != nil {
		slog.Error("triage_publish_failed", "record_id", recordID, "error", err)
	}
}

func sourceOf(input domain.RawInput) string {
	if s := strings.TrimSpace(input.Source); s != "" {
		return s
	}
	return "api"
}
