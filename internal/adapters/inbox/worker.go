package inbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/mail-triage/internal/core/domain"
	"github.com/kirillkom/mail-triage/internal/core/ports"
	"github.com/kirillkom/mail-triage/internal/infrastructure/mailbox"
)

const source = "imap"

// Mailbox is the slice of the IMAP poller the worker drives.
type Mailbox interface {
	FetchUnseen(ctx context.Context) ([]mailbox.Message, error)
	MarkSeen(ctx context.Context, uids ...uint32) error
}

type Metrics interface {
	StartMessage()
	FinishMessage(category domain.Category, duration time.Duration, err error)
	ObservePoll(fetched int, err error)
}

// Worker polls a mailbox and triages every unseen message. A message is
// marked seen only after it was triaged or found to have no content, so
// transient failures are picked up again on the next poll.
type Worker struct {
	mailbox  Mailbox
	triager  ports.EmailTriager
	metrics  Metrics
	interval time.Duration
}

func NewWorker(mb Mailbox, triager ports.EmailTriager, metrics Metrics, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{
		mailbox:  mb,
		triager:  triager,
		metrics:  metrics,
		interval: interval,
	}
}

// Run polls until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.PollOnce(ctx); err != nil {
			slog.Error("inbox_poll_failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce triages one batch and returns how many messages were settled.
func (w *Worker) PollOnce(ctx context.Context) (int, error) {
	messages, err := w.mailbox.FetchUnseen(ctx)
	if w.metrics != nil {
		w.metrics.ObservePoll(len(messages), err)
	}
	if err != nil {
		return 0, err
	}

	settled := make([]uint32, 0, len(messages))
	for _, msg := range messages {
		if ctx.Err() != nil {
			break
		}
		if w.handle(ctx, msg) {
			settled = append(settled, msg.UID)
		}
	}
	if len(settled) == 0 {
		return 0, nil
	}
	if err := w.mailbox.MarkSeen(ctx, settled...); err != nil {
		return 0, err
	}
	return len(settled), nil
}

func (w *Worker) handle(ctx context.Context, msg mailbox.Message) bool {
	started := time.Now()
	if w.metrics != nil {
		w.metrics.StartMessage()
	}

	result, err := w.triager.Triage(ctx, msg.RawInput(source))

	var category domain.Category
	if result != nil {
		category = result.Category
	}
	if w.metrics != nil {
		w.metrics.FinishMessage(category, time.Since(started), err)
	}

	switch {
	case err == nil:
		slog.Info("inbox_message_triaged",
			"uid", msg.UID,
			"message_id", msg.MessageID,
			"from", msg.From,
			"category", string(result.Category),
			"reply_source", string(result.ReplySource),
		)
		return true
	case domain.IsKind(err, domain.ErrContentMissing):
		slog.Warn("inbox_message_empty", "uid", msg.UID, "message_id", msg.MessageID)
		return true
	default:
		slog.Error("inbox_message_failed", "uid", msg.UID, "message_id", msg.MessageID, "error", err)
		return false
	}
}
