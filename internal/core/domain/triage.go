package domain

import (
	"path/filepath"
	"strings"
	"time"
)

type Format string

const (
	FormatPlainText   Format = "plain-text"
	FormatDocument    Format = "document"
	FormatUnsupported Format = "unsupported"
)

// FormatFromFilename infers the upload format from the file extension.
// Only "txt" and "pdf" are recognized.
func FormatFromFilename(filename string) Format {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(filename)), "."))
	switch ext {
	case "txt":
		return FormatPlainText
	case "pdf":
		return FormatDocument
	default:
		return FormatUnsupported
	}
}

// RawInput is one request's worth of email content: an optional uploaded
// document plus optional pasted text.
type RawInput struct {
	Filename   string
	Body       []byte
	PastedText string

	// Source names the channel the email arrived through (api, imap, cli, mcp).
	Source string
}

func (in RawInput) HasDocument() bool {
	return strings.TrimSpace(in.Filename) != "" && len(in.Body) > 0
}

func (in RawInput) Format() Format {
	if !in.HasDocument() {
		return FormatUnsupported
	}
	return FormatFromFilename(in.Filename)
}

type NormalizedText struct {
	Tokens []string
}

func (n NormalizedText) String() string {
	return strings.Join(n.Tokens, " ")
}

type Category string

const (
	CategoryProductive   Category = "Productive"
	CategoryUnproductive Category = "Unproductive"
)

// Label returns the Portuguese display label shown to end users.
func (c Category) Label() string {
	if c == CategoryUnproductive {
		return "Improdutivo"
	}
	return "Produtivo"
}

type Scores struct {
	Productive   int `json:"productive"`
	Unproductive int `json:"unproductive"`
}

type Decision struct {
	Category Category `json:"category"`
	Scores   Scores   `json:"scores"`
}

type ReplySource string

const (
	ReplySourceGenerated ReplySource = "generated"
	ReplySourceTemplate  ReplySource = "template"
)

type TriageResult struct {
	Category    Category    `json:"category"`
	Reply       string      `json:"reply"`
	ReplySource ReplySource `json:"reply_source"`
	Scores      Scores      `json:"scores"`
}

// GenerationRequest carries a fully built prompt and fixed decoding parameters.
type GenerationRequest struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

type GenerationFailure string

const (
	GenerationNotConfigured GenerationFailure = "not_configured"
	GenerationTimeout       GenerationFailure = "timeout"
	GenerationUnauthorized  GenerationFailure = "unauthorized"
	GenerationUnavailable   GenerationFailure = "unavailable"
	GenerationMalformed     GenerationFailure = "malformed"
	GenerationCircuitOpen   GenerationFailure = "circuit_open"
	GenerationEmpty         GenerationFailure = "empty"
	GenerationError         GenerationFailure = "error"
)

// GenerationOutcome is either a generated reply body or a typed failure.
type GenerationOutcome struct {
	Text    string
	Failure GenerationFailure
	Err     error
}

func (o GenerationOutcome) OK() bool {
	return o.Failure == "" && strings.TrimSpace(o.Text) != ""
}

// TriageRecord is the audit trail entry written after a successful triage.
type TriageRecord struct {
	ID          string      `json:"id"`
	Source      string      `json:"source"`
	Filename    string      `json:"filename,omitempty"`
	Category    Category    `json:"category"`
	ReplySource ReplySource `json:"reply_source"`
	Scores      Scores      `json:"scores"`
	TextChars   int         `json:"text_chars"`
	CreatedAt   time.Time   `json:"created_at"`
}

// TriageEvent is published to the message bus after a triage run.
type TriageEvent struct {
	RecordID    string      `json:"record_id"`
	Source      string      `json:"source"`
	Category    Category    `json:"category"`
	ReplySource ReplySource `json:"reply_source"`
	Reply       string      `json:"reply"`
	OccurredAt  time.Time   `json:"occurred_at"`
}
