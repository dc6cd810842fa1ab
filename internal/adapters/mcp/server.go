package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/mail-triage/internal/core/domain"
	"github.com/kirillkom/mail-triage/internal/core/ports"
)

const (
	serverName       = "mail-triage"
	classifyToolName = "classify_email"
)

var classifyToolDef = mcp.NewTool(classifyToolName,
	mcp.WithDescription("Classify a Portuguese email as Produtivo or Improdutivo and propose a reply."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Email body as plain text."),
	),
	mcp.WithString("filename",
		mcp.Description("Optional .txt attachment name whose content is given in text. Other extensions are ignored."),
	),
)

type classifyRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename,omitempty"`
}

type classifyResponse struct {
	Category    domain.Category    `json:"category"`
	Label       string             `json:"label"`
	Reply       string             `json:"reply"`
	ReplySource domain.ReplySource `json:"reply_source"`
	Scores      domain.Scores      `json:"scores"`
}

// Handlers exposes the triage pipeline as MCP tools.
type Handlers struct {
	triager ports.EmailTriager
}

func NewHandlers(triager ports.EmailTriager) *Handlers {
	return &Handlers{triager: triager}
}

func NewServer(triager ports.EmailTriager, version string) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
	)
	h := NewHandlers(triager)
	s.AddTool(classifyToolDef, h.HandleClassify)
	return s
}

// Run serves the tools over stdio until stdin closes.
func Run(triager ports.EmailTriager, version string) error {
	return server.ServeStdio(NewServer(triager, version))
}

func (h *Handlers) HandleClassify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := decode[classifyRequest](req)
	if err != nil {
		return errorResult("invalid_request", err.Error()), nil
	}

	input := domain.RawInput{PastedText: args.Text, Source: "mcp"}
	// Text arrives as a string, so only a plain-text filename can describe it.
	name := strings.TrimSpace(args.Filename)
	if domain.FormatFromFilename(name) == domain.FormatPlainText && strings.TrimSpace(args.Text) != "" {
		input.Filename = name
		input.Body = []byte(args.Text)
	}

	result, err := h.triager.Triage(ctx, input)
	if err != nil {
		if domain.IsKind(err, domain.ErrContentMissing) {
			return errorResult("content_missing", domain.ErrContentMissing.Error()), nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return errorResult("cancelled", err.Error()), nil
		}
		slog.Error("mcp_classify_failed", "error", err)
		return errorResult("internal", "an internal error occurred"), nil
	}

	return mcp.NewToolResultJSON(classifyResponse{
		Category:    result.Category,
		Label:       result.Category.Label(),
		Reply:       result.Reply,
		ReplySource: result.ReplySource,
		Scores:      result.Scores,
	})
}

func decode[T any](req mcp.CallToolRequest) (T, error) {
	var out T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return out, fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("unmarshal args: %w", err)
	}
	return out, nil
}

func errorResult(code, message string) *mcp.CallToolResult {
	content, _ := json.Marshal(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}
