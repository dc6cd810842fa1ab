package mailbox

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/kirillkom/mail-triage/internal/core/domain"
)

// maxPartBytes caps how much of a single MIME part is read into memory.
const maxPartBytes = 10 << 20

// Message is an inbound email reduced to what the triage pipeline reads.
type Message struct {
	UID        uint32
	MessageID  string
	From       string
	Subject    string
	Text       string
	ReceivedAt time.Time

	// Attachment is the first txt or pdf attachment, if any.
	Attachment *Attachment
}

type Attachment struct {
	Filename string
	Body     []byte
}

// RawInput feeds the attachment as the document and the body text as the
// pasted fallback.
func (m Message) RawInput(source string) domain.RawInput {
	in := domain.RawInput{
		PastedText: m.Text,
		Source:     source,
	}
	if m.Attachment != nil {
		in.Filename = m.Attachment.Filename
		in.Body = m.Attachment.Body
	}
	return in
}

// ParseMessage reads an RFC 5322 message. The text/plain part wins over
// text/html; an HTML-only body is reduced to its visible text.
func ParseMessage(r io.Reader) (Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return Message{}, fmt.Errorf("read message header: %w", err)
	}
	defer mr.Close()

	var msg Message
	msg.Subject, _ = mr.Header.Subject()
	msg.MessageID, _ = mr.Header.MessageID()
	msg.ReceivedAt, _ = mr.Header.Date()
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].Address
	}

	var plain, html string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if plain != "" || html != "" {
				break
			}
			return msg, fmt.Errorf("read message part: %w", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			body, err := io.ReadAll(io.LimitReader(part.Body, maxPartBytes))
			if err != nil {
				continue
			}
			switch {
			case strings.HasPrefix(ct, "text/plain") && plain == "":
				plain = string(body)
			case strings.HasPrefix(ct, "text/html") && html == "":
				html = string(body)
			}
		case *mail.AttachmentHeader:
			if msg.Attachment != nil {
				continue
			}
			filename, _ := h.Filename()
			if domain.FormatFromFilename(filename) == domain.FormatUnsupported {
				continue
			}
			body, err := io.ReadAll(io.LimitReader(part.Body, maxPartBytes))
			if err != nil || len(body) == 0 {
				continue
			}
			msg.Attachment = &Attachment{Filename: filename, Body: body}
		}
	}

	switch {
	case strings.TrimSpace(plain) != "":
		msg.Text = plain
	case html != "":
		msg.Text = HTMLToText(html)
	}
	return msg, nil
}

// HTMLToText returns the visible text of an HTML fragment with whitespace
// runs collapsed. Script and style contents are dropped.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, head").Remove()
	doc.Find("br, p, div, li, tr, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml("\n")
	})

	lines := strings.Split(doc.Text(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
