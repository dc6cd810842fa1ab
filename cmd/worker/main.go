package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/mail-triage/internal/adapters/inbox"
	"github.com/kirillkom/mail-triage/internal/bootstrap"
	"github.com/kirillkom/mail-triage/internal/config"
	"github.com/kirillkom/mail-triage/internal/infrastructure/mailbox"
	"github.com/kirillkom/mail-triage/internal/observability/logging"
	"github.com/kirillkom/mail-triage/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("worker", cfg.LogLevel))

	if cfg.IMAPServer == "" || cfg.IMAPEmail == "" {
		slog.Error("worker_misconfigured", "error", "IMAP_SERVER and IMAP_EMAIL are required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, workerMetrics)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := newMetricsServer(cfg.WorkerMetricsPort, workerMetrics.Handler())
	go func() {
		slog.Info("worker_metrics_listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	poller := mailbox.NewPoller(mailbox.Config{
		Server:   cfg.IMAPServer,
		Port:     cfg.IMAPPort,
		Email:    cfg.IMAPEmail,
		Password: cfg.IMAPPassword,
		Folder:   cfg.IMAPFolder,
	})
	if err := poller.Connect(ctx); err != nil {
		slog.Error("imap_connect_failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = poller.Close() }()

	slog.Info("worker_polling", "folder", cfg.IMAPFolder, "interval", cfg.IMAPPollInterval.String())
	worker := inbox.NewWorker(poller, app.Triage, workerMetrics, cfg.IMAPPollInterval)
	if err := worker.Run(ctx); err != nil {
		slog.Error("worker_failed", "error", err)
	}
}

func newMetricsServer(port string, metricsHandler http.Handler) *http.Server {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metricsHandler)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
