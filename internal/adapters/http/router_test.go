package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/mail-triage/internal/core/domain"
	"github.com/kirillkom/mail-triage/internal/observability/metrics"
)

type triagerFake struct {
	result *domain.TriageResult
	err    error
	inputs []domain.RawInput
}

func (f *triagerFake) Triage(_ context.Context, input domain.RawInput) (*domain.TriageResult, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type recordReaderFake struct {
	records map[string]*domain.TriageRecord
}

func (f recordReaderFake) GetByID(_ context.Context, id string) (*domain.TriageRecord, error) {
	if rec, ok := f.records[id]; ok {
		return rec, nil
	}
	return nil, domain.WrapError(domain.ErrNotFound, "get triage record", errors.New("no rows"))
}

func productiveResult() *domain.TriageResult {
	return &domain.TriageResult{
		Category:    domain.CategoryProductive,
		Reply:       "Olá! Recebemos sua solicitação.",
		ReplySource: domain.ReplySourceTemplate,
		Scores:      domain.Scores{Productive: 4},
	}
}

func newTestHandler(triager *triagerFake, records RecordReader) http.Handler {
	return NewRouter(triager, records, metrics.NewHTTPServerMetrics("test"), Options{}).Handler()
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(&triagerFake{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestMetricsEndpointIsMounted(t *testing.T) {
	handler := newTestHandler(&triagerFake{}, nil)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "mailtriage_http_requests_total") {
		t.Fatalf("expected request counter in exposition, got %s", rec.Body.String())
	}
}

func TestClassifyJSON(t *testing.T) {
	triager := &triagerFake{result: productiveResult()}
	handler := newTestHandler(triager, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/classify", strings.NewReader(`{"text":"Qual o status do protocolo?"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got domain.TriageResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got != *productiveResult() {
		t.Fatalf("unexpected response: %+v", got)
	}
	if len(triager.inputs) != 1 || triager.inputs[0].PastedText != "Qual o status do protocolo?" || triager.inputs[0].Source != "api" {
		t.Fatalf("unexpected triage input: %+v", triager.inputs)
	}
}

func TestClassifyMultipartWithFile(t *testing.T) {
	triager := &triagerFake{result: productiveResult()}
	handler := newTestHandler(triager, nil)

	body, contentType := multipartBody(t, map[string]string{"text": "colado"}, "file", "mail.txt", []byte("conteúdo do arquivo"))
	req := httptest.NewRequest(http.MethodPost, "/v1/classify", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	in := triager.inputs[0]
	if in.Filename != "mail.txt" || string(in.Body) != "conteúdo do arquivo" || in.PastedText != "colado" {
		t.Fatalf("unexpected triage input: %+v", in)
	}
}

func TestClassifyContentMissingIsBadRequest(t *testing.T) {
	triager := &triagerFake{err: domain.WrapError(domain.ErrInvalidInput, "triage", domain.ErrContentMissing)}
	handler := newTestHandler(triager, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/classify", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), domain.ErrContentMissing.Error()) {
		t.Fatalf("expected content missing message, got %s", rec.Body.String())
	}
}

func TestClassifyInvalidJSONIsBadRequest(t *testing.T) {
	triager := &triagerFake{result: productiveResult()}
	handler := newTestHandler(triager, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/classify", strings.NewReader(`{"text":`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(triager.inputs) != 0 {
		t.Fatalf("triager must not run on malformed body")
	}
}

func TestClassifyInternalErrorHidesDetails(t *testing.T) {
	triager := &triagerFake{err: errors.New("pq: password authentication failed")}
	handler := newTestHandler(triager, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/classify", strings.NewReader(`{"text":"oi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("internal details leaked: %s", rec.Body.String())
	}
}

func TestClassifyOversizedUploadIs413(t *testing.T) {
	triager := &triagerFake{result: productiveResult()}
	handler := NewRouter(triager, nil, nil, Options{MaxUploadBytes: 1024}).Handler()

	body, contentType := multipartBody(t, nil, "file", "big.pdf", bytes.Repeat([]byte("a"), 4096))
	req := httptest.NewRequest(http.MethodPost, "/v1/classify", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(triager.inputs) != 0 {
		t.Fatalf("triager must not run on oversized upload")
	}
}

func TestLegacyClassifyForm(t *testing.T) {
	triager := &triagerFake{result: productiveResult()}
	handler := newTestHandler(triager, nil)

	form := url.Values{"emailText": {"Não consigo acessar minha conta"}}
	req := httptest.NewRequest(http.MethodPost, "/classificar", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got legacyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !got.OK || got.Categoria != "Produtivo" || got.Resposta != productiveResult().Reply {
		t.Fatalf("unexpected response: %+v", got)
	}
	if triager.inputs[0].PastedText != "Não consigo acessar minha conta" || triager.inputs[0].Source != "web" {
		t.Fatalf("unexpected triage input: %+v", triager.inputs[0])
	}
}

func TestLegacyClassifyMultipartFile(t *testing.T) {
	triager := &triagerFake{result: &domain.TriageResult{Category: domain.CategoryUnproductive, Reply: "Obrigado!"}}
	handler := newTestHandler(triager, nil)

	body, contentType := multipartBody(t, nil, "emailFile", "natal.txt", []byte("Feliz Natal"))
	req := httptest.NewRequest(http.MethodPost, "/classificar", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"categoria":"Improdutivo"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if triager.inputs[0].Filename != "natal.txt" {
		t.Fatalf("expected uploaded file to reach the triager")
	}
}

func TestLegacyClassifyMissingContent(t *testing.T) {
	triager := &triagerFake{err: domain.WrapError(domain.ErrInvalidInput, "triage", domain.ErrContentMissing)}
	handler := newTestHandler(triager, nil)

	req := httptest.NewRequest(http.MethodPost, "/classificar", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	want := `{"ok":false,"error":"Nenhum conteúdo de e-mail fornecido."}`
	if strings.TrimSpace(rec.Body.String()) != want {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestGetTriageRecord(t *testing.T) {
	created := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	records := recordReaderFake{records: map[string]*domain.TriageRecord{
		"rec-1": {ID: "rec-1", Source: "api", Category: domain.CategoryProductive, CreatedAt: created},
	}}
	handler := newTestHandler(&triagerFake{}, records)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/triages/rec-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"id":"rec-1"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/triages/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetTriageRecordDisabledWithoutStore(t *testing.T) {
	handler := newTestHandler(&triagerFake{}, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/triages/rec-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileField != "" {
		part, err := writer.CreateFormFile(fileField, filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

type documentReaderFake struct {
	files map[string]string
}

func (f documentReaderFake) Open(_ context.Context, recordID, filename string) (io.ReadCloser, error) {
	if body, ok := f.files[recordID+"/"+filename]; ok {
		return io.NopCloser(strings.NewReader(body)), nil
	}
	return nil, domain.WrapError(domain.ErrNotFound, "open archived document", errors.New("missing"))
}

func TestGetTriageDocument(t *testing.T) {
	records := recordReaderFake{records: map[string]*domain.TriageRecord{
		"rec-1": {ID: "rec-1", Filename: "pedido.txt"},
		"rec-2": {ID: "rec-2"},
	}}
	documents := documentReaderFake{files: map[string]string{"rec-1/pedido.txt": "Preciso de suporte"}}
	handler := NewRouter(&triagerFake{}, records, nil, Options{}).WithDocuments(documents).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/triages/rec-1/document", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "Preciso de suporte" {
		t.Fatalf("unexpected response %d: %q", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "pedido.txt") {
		t.Fatalf("expected attachment file name, got %q", rec.Header().Get("Content-Disposition"))
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/triages/rec-2/document", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for record without document, got %d", rec.Code)
	}
}
