package mailbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

type Config struct {
	Server   string
	Port     int
	Email    string
	Password string
	Folder   string
	// BatchSize bounds how many unseen messages one poll fetches.
	BatchSize int
}

// Poller reads unseen messages from one IMAP folder over TLS.
type Poller struct {
	cfg    Config
	client *client.Client
}

func NewPoller(cfg Config) *Poller {
	if cfg.Folder == "" {
		cfg.Folder = "INBOX"
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	return &Poller{cfg: cfg}
}

func (p *Poller) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", p.cfg.Server, p.cfg.Port)
	slog.Info("imap_connecting", "addr", addr, "email", p.cfg.Email)

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("dial imap %s: %w", addr, err)
	}
	if err := c.Login(p.cfg.Email, p.cfg.Password); err != nil {
		_ = c.Logout()
		return fmt.Errorf("imap login: %w", err)
	}
	p.client = c
	return nil
}

func (p *Poller) Close() error {
	if p.client == nil {
		return nil
	}
	err := p.client.Logout()
	p.client = nil
	return err
}

// FetchUnseen returns up to BatchSize unseen messages without marking them
// read. A message that fails to parse comes back with its UID only, so the
// caller settles it instead of fetching it forever. A dropped connection is
// re-dialed on the next call.
func (p *Poller) FetchUnseen(ctx context.Context) ([]Message, error) {
	if p.client == nil {
		if err := p.Connect(ctx); err != nil {
			return nil, err
		}
	}
	if _, err := p.client.Select(p.cfg.Folder, false); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("select mailbox %s: %w", p.cfg.Folder, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := p.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	if len(uids) > p.cfg.BatchSize {
		uids = uids[:p.cfg.BatchSize]
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- p.client.UidFetch(seqSet, items, messages)
	}()

	out := make([]Message, 0, len(uids))
	for raw := range messages {
		var msg Message
		if body := raw.GetBody(section); body != nil {
			parsed, err := ParseMessage(body)
			if err != nil {
				slog.Warn("imap_message_parse_failed", "uid", raw.Uid, "error", err)
			} else {
				msg = parsed
			}
		}
		msg.UID = raw.Uid
		out = append(out, msg)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch unseen: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkSeen flags the given messages as read.
func (p *Poller) MarkSeen(ctx context.Context, uids ...uint32) error {
	if p.client == nil {
		return fmt.Errorf("imap client is not connected")
	}
	if len(uids) == 0 {
		return nil
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := p.client.UidStore(seqSet, item, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}
