package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/mail-triage/internal/core/domain"
	"github.com/kirillkom/mail-triage/internal/infrastructure/resilience"
)

func TestGenerateSendsPromptAndDecodingOptions(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  Por favor, envie o protocolo.  "}`))
	}))
	defer server.Close()

	client := New(server.URL+"/", "llama3.1:8b")
	got, err := client.Generate(context.Background(), domain.GenerationRequest{Prompt: "prompt body", Temperature: 0.3, MaxTokens: 220})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != "Por favor, envie o protocolo." {
		t.Fatalf("unexpected reply: %q", got)
	}
	if payload["model"] != "llama3.1:8b" || payload["prompt"] != "prompt body" || payload["stream"] != false {
		t.Fatalf("unexpected payload: %v", payload)
	}
	options, _ := payload["options"].(map[string]any)
	if options["temperature"] != 0.3 || options["num_predict"] != float64(220) {
		t.Fatalf("unexpected options: %v", options)
	}
}

func TestGenerateIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL, "gen").Generate(context.Background(), domain.GenerationRequest{Prompt: "x"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error kind, got %v", err)
	}
}

func TestGenerateMissingResponseFieldIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"done":true}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "gen").Generate(context.Background(), domain.GenerationRequest{Prompt: "x"})
	if !domain.IsKind(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestGenerateBrokenJSONIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":`))
	}))
	defer server.Close()

	_, err := New(server.URL, "gen").Generate(context.Background(), domain.GenerationRequest{Prompt: "x"})
	if !domain.IsKind(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestGenerateThroughOpenBreakerIsCircuitOpen(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := resilience.GenerationConfig(true)
	cfg.BreakerMinRequests = 1
	client := New(server.URL, "gen").WithExecutor(resilience.NewExecutor(cfg))

	if _, err := client.Generate(context.Background(), domain.GenerationRequest{Prompt: "x"}); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	_, err := client.Generate(context.Background(), domain.GenerationRequest{Prompt: "x"})
	if !domain.IsKind(err, domain.ErrCircuitOpen) {
		t.Fatalf("expected circuit open, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected provider called once, got %d", calls)
	}
}
