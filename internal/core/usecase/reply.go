package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/mail-triage/internal/core/domain"
	"github.com/kirillkom/mail-triage/internal/core/ports"
	"github.com/kirillkom/mail-triage/internal/core/textnorm"
)

const (
	promptBodyLimit = 4000

	replyStatus = "Verificamos seu pedido e vamos consultar o status interno. " +
		"Por favor, confirme o número do protocolo/CPF/CNPJ e a data da solicitação. " +
		"Assim que atualizado, retornaremos neste mesmo e-mail."
	replyAccess = "Entendi a dificuldade de acesso. Para agilizar, informe o CPF/CNPJ, e-mail cadastrado " +
		"e, se possível, um print do erro. Já encaminhei para o time técnico e " +
		"retornaremos com as orientações de desbloqueio."
	replyGeneric = "Recebemos sua solicitação. Para prosseguir, compartilhe os dados essenciais " +
		"(CPF/CNPJ, número do protocolo e detalhes do caso). Assim que recebermos, " +
		"daremos andamento e retornaremos com a atualização."
	replyAcknowledge = "Agradecemos a mensagem! Não identificamos necessidade de ação neste momento. " +
		"Se precisar de suporte ou tiver alguma solicitação específica, conte conosco por aqui."
)

var (
	statusMarkers = []string{"status", "andamento", "protocolo"}
	accessMarkers = []string{"acesso", "login", "senha", "não consigo"}
)

type ReplyOptions struct {
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

func DefaultReplyOptions() ReplyOptions {
	return ReplyOptions{
		Timeout:     20 * time.Second,
		Temperature: 0.3,
		MaxTokens:   220,
	}
}

// ReplyComposer prefers the external generator and falls back to fixed
// templates on any generation failure. It never returns an empty reply.
type ReplyComposer struct {
	generator ports.ReplyGenerator
	observer  ports.TriageObserver
	opts      ReplyOptions
}

// NewReplyComposer accepts a nil generator; every reply is then a template.
func NewReplyComposer(generator ports.ReplyGenerator, observer ports.TriageObserver, opts ReplyOptions) *ReplyComposer {
	def := DefaultReplyOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	if opts.Temperature < 0 {
		opts.Temperature = def.Temperature
	}
	return &ReplyComposer{
		generator: generator,
		observer:  observer,
		opts:      opts,
	}
}

func (c *ReplyComposer) Compose(ctx context.Context, category domain.Category, original string) (string, domain.ReplySource) {
	outcome := c.generate(ctx, category, original)
	if outcome.OK() {
		return strings.TrimSpace(outcome.Text), domain.ReplySourceGenerated
	}

	if outcome.Failure != domain.GenerationNotConfigured {
		slog.Warn("reply_generation_failed",
			"reason", string(outcome.Failure),
			"category", string(category),
			"error", outcome.Err,
		)
	}
	if c.observer != nil {
		c.observer.ObserveGenerationFailure(outcome.Failure)
	}
	return FallbackReply(category, original), domain.ReplySourceTemplate
}

func (c *ReplyComposer) generate(ctx context.Context, category domain.Category, original string) domain.GenerationOutcome {
	if c.generator == nil {
		return domain.GenerationOutcome{Failure: domain.GenerationNotConfigured}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	text, err := c.generator.Generate(callCtx, domain.GenerationRequest{
		Prompt:      BuildReplyPrompt(category, original),
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	})
	if err != nil {
		return domain.GenerationOutcome{Failure: classifyGenerationError(err), Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return domain.GenerationOutcome{Failure: domain.GenerationEmpty}
	}
	return domain.GenerationOutcome{Text: text}
}

func classifyGenerationError(err error) domain.GenerationFailure {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.GenerationTimeout
	case domain.IsKind(err, domain.ErrCircuitOpen):
		return domain.GenerationCircuitOpen
	case domain.IsKind(err, domain.ErrUnauthorized):
		return domain.GenerationUnauthorized
	case domain.IsKind(err, domain.ErrMalformedResponse):
		return domain.GenerationMalformed
	case domain.IsKind(err, domain.ErrTemporary):
		return domain.GenerationUnavailable
	default:
		return domain.GenerationError
	}
}

// BuildReplyPrompt embeds the category label and at most promptBodyLimit
// characters of the trimmed email body.
func BuildReplyPrompt(category domain.Category, original string) string {
	body := []rune(strings.TrimSpace(original))
	if len(body) > promptBodyLimit {
		body = body[:promptBodyLimit]
	}

	var b strings.Builder
	b.WriteString("Você é um assistente de atendimento ao cliente do setor financeiro.\n")
	fmt.Fprintf(&b, "Classificação: %s.\n", category.Label())
	b.WriteString("Gere uma resposta breve, educada e objetiva em português brasileiro ao e-mail abaixo.\n")
	b.WriteString("Inclua próximos passos claros e peça informações essenciais se estiverem faltando.\n")
	b.WriteString("E-mail:\n")
	fmt.Fprintf(&b, "\"\"\"%s\"\"\"\n", string(body))
	b.WriteString("Responda apenas com o corpo do e-mail (sem saudação inicial genérica nem assinatura).")
	return b.String()
}

// FallbackReply picks a fixed template by category and whole-word markers in
// the lowercased original text.
func FallbackReply(category domain.Category, original string) string {
	if category == domain.CategoryUnproductive {
		return replyAcknowledge
	}
	lowered := strings.ToLower(original)
	switch {
	case textnorm.ContainsAnyWord(lowered, statusMarkers...):
		return replyStatus
	case textnorm.ContainsAnyWord(lowered, accessMarkers...):
		return replyAccess
	default:
		return replyGeneric
	}
}
