package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/mail-triage/internal/core/domain"
	"github.com/kirillkom/mail-triage/internal/infrastructure/llm"
	"github.com/kirillkom/mail-triage/internal/infrastructure/resilience"
)

const generateOperation = "ollama.generate"

// Client generates reply bodies with a local Ollama model.
type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// WithExecutor routes every call through the given breaker.
func (c *Client) WithExecutor(executor *resilience.Executor) *Client {
	c.executor = executor
	return c
}

func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": req.Prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}

	var response struct {
		Response *string `json:"response"`
	}
	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/generate", reqBody, &response, "generate")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, generateOperation, call, llm.ClassifyError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", llm.WrapDomainError(generateOperation, err)
	}
	if response.Response == nil {
		return "", domain.WrapError(domain.ErrMalformedResponse, generateOperation, errMissingResponse)
	}
	return strings.TrimSpace(*response.Response), nil
}
