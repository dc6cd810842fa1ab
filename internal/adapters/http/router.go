package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kirillkom/mail-triage/internal/core/domain"
	"github.com/kirillkom/mail-triage/internal/core/ports"
)

const legacyMissingContent = "Nenhum conteúdo de e-mail fornecido."

// RecordReader serves the audit trail; nil disables the lookup endpoint.
type RecordReader interface {
	GetByID(ctx context.Context, id string) (*domain.TriageRecord, error)
}

// DocumentReader serves archived uploads; nil disables the download endpoint.
type DocumentReader interface {
	Open(ctx context.Context, recordID, filename string) (io.ReadCloser, error)
}

// Metrics is the subset of the Prometheus registry the router mounts.
type Metrics interface {
	Handler() http.Handler
	Middleware(next http.Handler) http.Handler
	RecordRejected(reason string)
}

type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	MaxUploadBytes int64
}

type Router struct {
	triager   ports.EmailTriager
	records   RecordReader
	documents DocumentReader
	metrics   Metrics
	opts      Options
}

func NewRouter(triager ports.EmailTriager, records RecordReader, metrics Metrics, opts Options) *Router {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Router{
		triager: triager,
		records: records,
		metrics: metrics,
		opts:    opts,
	}
}

// WithDocuments enables GET /v1/triages/{id}/document. It needs a record
// reader to resolve the file name.
func (rt *Router) WithDocuments(documents DocumentReader) *Router {
	rt.documents = documents
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)

	var onReject func(string)
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
		onReject = rt.metrics.RecordRejected
	}
	r.Use(func(next http.Handler) http.Handler {
		return rateLimitMiddleware(next, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst, onReject)
	})
	r.Use(func(next http.Handler) http.Handler {
		return backpressureMiddleware(next, rt.opts.MaxInFlight, 250*time.Millisecond, onReject)
	})

	r.Get("/healthz", rt.healthz)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}
	r.Post("/v1/classify", rt.classify)
	r.Post("/classificar", rt.classifyLegacy)
	if rt.records != nil {
		r.Get("/v1/triages/{id}", rt.getTriage)
		if rt.documents != nil {
			r.Get("/v1/triages/{id}/document", rt.getDocument)
		}
	}
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) classify(w http.ResponseWriter, r *http.Request) {
	input, err := rt.readInput(w, r, "file", "text")
	if err != nil {
		writeInputError(w, err, func(msg string) any { return map[string]string{"error": msg} })
		return
	}
	input.Source = "api"

	result, err := rt.triager.Triage(r.Context(), input)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		logHandlerError(r, status, err)
		writeJSON(w, status, map[string]string{"error": publicErrorMessage(err, status)})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type legacyResponse struct {
	OK        bool   `json:"ok"`
	Categoria string `json:"categoria,omitempty"`
	Resposta  string `json:"resposta,omitempty"`
	Error     string `json:"error,omitempty"`
}

// classifyLegacy serves the form contract of the original web page.
func (rt *Router) classifyLegacy(w http.ResponseWriter, r *http.Request) {
	input, err := rt.readInput(w, r, "emailFile", "emailText")
	if err != nil {
		writeInputError(w, err, func(msg string) any { return legacyResponse{Error: msg} })
		return
	}
	input.Source = "web"

	result, err := rt.triager.Triage(r.Context(), input)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		logHandlerError(r, status, err)
		msg := publicErrorMessage(err, status)
		if domain.IsKind(err, domain.ErrContentMissing) {
			msg = legacyMissingContent
		}
		writeJSON(w, status, legacyResponse{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, legacyResponse{
		OK:        true,
		Categoria: result.Category.Label(),
		Resposta:  result.Reply,
	})
}

func (rt *Router) getTriage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	record, err := rt.records.GetByID(r.Context(), id)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		logHandlerError(r, status, err)
		writeJSON(w, status, map[string]string{"error": publicErrorMessage(err, status)})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	record, err := rt.records.GetByID(r.Context(), id)
	if err == nil && record.Filename == "" {
		err = domain.WrapError(domain.ErrNotFound, "get document", fmt.Errorf("record %s has no document", id))
	}
	var body io.ReadCloser
	if err == nil {
		body, err = rt.documents.Open(r.Context(), record.ID, record.Filename)
	}
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		logHandlerError(r, status, err)
		writeJSON(w, status, map[string]string{"error": publicErrorMessage(err, status)})
		return
	}
	defer body.Close()

	contentType := "text/plain; charset=utf-8"
	if domain.FormatFromFilename(record.Filename) == domain.FormatDocument {
		contentType = "application/pdf"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": record.Filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("http_document_copy_failed", "record_id", record.ID, "error", err)
	}
}

var errUploadTooLarge = errors.New("upload too large")

// readInput accepts multipart forms, urlencoded forms and JSON bodies of the
// form {"text": "..."}.
func (rt *Router) readInput(w http.ResponseWriter, r *http.Request, fileField, textField string) (domain.RawInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return domain.RawInput{}, classifyBodyError(err, "invalid json")
		}
		return domain.RawInput{PastedText: req.Text}, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(rt.opts.MaxUploadBytes); err != nil {
			return domain.RawInput{}, classifyBodyError(err, "invalid multipart form")
		}
		input := domain.RawInput{PastedText: r.FormValue(textField)}
		file, header, err := r.FormFile(fileField)
		if errors.Is(err, http.ErrMissingFile) {
			return input, nil
		}
		if err != nil {
			return domain.RawInput{}, classifyBodyError(err, "invalid upload")
		}
		defer file.Close()
		body, err := readUpload(file)
		if err != nil {
			return domain.RawInput{}, classifyBodyError(err, "invalid upload")
		}
		input.Filename = header.Filename
		input.Body = body
		return input, nil
	default:
		if err := r.ParseForm(); err != nil {
			return domain.RawInput{}, classifyBodyError(err, "invalid form")
		}
		return domain.RawInput{PastedText: r.PostFormValue(textField)}, nil
	}
}

func readUpload(file multipart.File) ([]byte, error) {
	body, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return body, nil
}

func classifyBodyError(err error, msg string) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge) {
		return errUploadTooLarge
	}
	return domain.WrapError(domain.ErrInvalidInput, msg, err)
}

func writeInputError(w http.ResponseWriter, err error, body func(string) any) {
	if errors.Is(err, errUploadTooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, body("upload exceeds the size limit"))
		return
	}
	writeJSON(w, mapErrorToHTTPStatus(err), body(err.Error()))
}

func logHandlerError(r *http.Request, status int, err error) {
	if status < http.StatusInternalServerError {
		return
	}
	slog.Error("http_handler_failed",
		"request_id", requestIDFromContext(r.Context()),
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
