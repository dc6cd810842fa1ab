package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	mcpadapter "github.com/kirillkom/mail-triage/internal/adapters/mcp"
	"github.com/kirillkom/mail-triage/internal/bootstrap"
	"github.com/kirillkom/mail-triage/internal/core/domain"
	"github.com/kirillkom/mail-triage/internal/infrastructure/mailbox"
)

const maxInputBytes = 10 << 20

// readClassifyInput turns the classify flags into pipeline input. A .eml file
// is parsed as a MIME message: its first txt or pdf attachment becomes the
// document and its body the pasted text.
func readClassifyInput(text, file string, stdin io.Reader) (domain.RawInput, error) {
	if file == "" {
		if text == "" && stdin != nil {
			raw, err := io.ReadAll(io.LimitReader(stdin, maxInputBytes))
			if err != nil {
				return domain.RawInput{}, fmt.Errorf("read stdin: %w", err)
			}
			text = string(raw)
		}
		return domain.RawInput{PastedText: text, Source: "cli"}, nil
	}

	body, err := os.ReadFile(file)
	if err != nil {
		return domain.RawInput{}, fmt.Errorf("read %s: %w", file, err)
	}
	if len(body) > maxInputBytes {
		return domain.RawInput{}, fmt.Errorf("%s exceeds %d bytes", file, maxInputBytes)
	}

	if strings.EqualFold(filepath.Ext(file), ".eml") {
		msg, err := mailbox.ParseMessage(bytes.NewReader(body))
		if err != nil {
			return domain.RawInput{}, fmt.Errorf("parse %s: %w", file, err)
		}
		input := msg.RawInput("cli")
		if text != "" {
			input.PastedText = text
		}
		return input, nil
	}

	return domain.RawInput{
		Filename:   filepath.Base(file),
		Body:       body,
		PastedText: text,
		Source:     "cli",
	}, nil
}

func runMCP(app *bootstrap.App) error {
	return mcpadapter.Run(app.Triage, version)
}

type eventSubscriber interface {
	SubscribeTriaged(ctx context.Context, handler func(context.Context, domain.TriageEvent) error) error
}

// followEvents prints one JSON line per triage event until ctx is done.
func followEvents(ctx context.Context, bus eventSubscriber, out io.Writer) error {
	return bus.SubscribeTriaged(ctx, func(_ context.Context, event domain.TriageEvent) error {
		return writeJSONLine(out, event)
	})
}

func writeJSONLine(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
