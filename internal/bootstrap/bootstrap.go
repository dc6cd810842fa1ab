package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/mail-triage/internal/config"
	"github.com/kirillkom/mail-triage/internal/core/classify"
	"github.com/kirillkom/mail-triage/internal/core/ports"
	"github.com/kirillkom/mail-triage/internal/core/textnorm"
	"github.com/kirillkom/mail-triage/internal/core/usecase"
	"github.com/kirillkom/mail-triage/internal/infrastructure/extractor"
	"github.com/kirillkom/mail-triage/internal/infrastructure/extractor/pdfdoc"
	"github.com/kirillkom/mail-triage/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/mail-triage/internal/infrastructure/lexicon"
	"github.com/kirillkom/mail-triage/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/mail-triage/internal/infrastructure/llm/openai"
	"github.com/kirillkom/mail-triage/internal/infrastructure/queue/nats"
	"github.com/kirillkom/mail-triage/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/mail-triage/internal/infrastructure/resilience"
	"github.com/kirillkom/mail-triage/internal/infrastructure/storage/localfs"
)

// Observer is implemented by the per-process metrics registries.
type Observer interface {
	ports.TriageObserver
	ObserveBreakerState(operation, from, to string)
}

type App struct {
	Config config.Config

	Triage *usecase.TriageUseCase

	// Records, Archive and Bus are nil when POSTGRES_DSN, ARCHIVE_DIR or
	// NATS_URL is unset.
	Records *postgres.TriageRepository
	Archive *localfs.Archive
	Bus     *nats.Bus

	closeFn func()
}

// New builds the triage pipeline. Only the lexicon is mandatory; reply
// generation, the audit store and the event bus are enabled by configuration.
// observer may be nil.
func New(ctx context.Context, cfg config.Config, observer Observer) (*App, error) {
	lex, err := lexicon.Load(cfg.LexiconPath)
	if err != nil {
		return nil, fmt.Errorf("load lexicon: %w", err)
	}
	if err := lex.Validate(); err != nil {
		return nil, fmt.Errorf("validate lexicon: %w", err)
	}

	classifier := classify.New(lex.Keywords)
	normalizer := textnorm.NewNormalizer(lex.Resources())
	extract := extractor.New(plaintext.NewExtractor(), pdfdoc.NewExtractor())

	var triageObserver ports.TriageObserver
	resCfg := resilience.GenerationConfig(cfg.BreakerEnabled)
	if observer != nil {
		triageObserver = observer
		resCfg.OnStateChange = observer.ObserveBreakerState
	}

	generator := newGenerator(cfg, resilience.NewExecutor(resCfg))
	composer := usecase.NewReplyComposer(generator, triageObserver, usecase.ReplyOptions{
		Timeout:     cfg.GenerationTimeout,
		Temperature: cfg.GenerationTemperature,
		MaxTokens:   cfg.GenerationMaxTokens,
	})

	triage := usecase.NewTriageUseCase(extract, normalizer, classifier, composer)
	if triageObserver != nil {
		triage = triage.WithObserver(triageObserver)
	}

	app := &App{Config: cfg}
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewTriageRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		app.Records = repo
		triage = triage.WithRecorder(repo)
	}

	if cfg.ArchiveDir != "" {
		archive, err := localfs.New(cfg.ArchiveDir)
		if err != nil {
			if db != nil {
				_ = db.Close()
			}
			return nil, fmt.Errorf("init document archive: %w", err)
		}
		app.Archive = archive
		triage = triage.WithArchiver(archive)
	}

	if cfg.NATSURL != "" {
		bus, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, busOptions(observer))
		if err != nil {
			if db != nil {
				_ = db.Close()
			}
			return nil, fmt.Errorf("init message bus: %w", err)
		}
		app.Bus = bus
		triage = triage.WithPublisher(bus)
	}

	app.Triage = triage
	app.closeFn = func() {
		if app.Bus != nil {
			app.Bus.Close()
		}
		if db != nil {
			_ = db.Close()
		}
	}

	slog.Info("triage_pipeline_ready",
		"keyword_set", classifier.KeywordSetID(),
		"stopwords", lex.Resources().StopwordCount(),
		"lemmas", lex.Resources().LemmaCount(),
		"generator", generatorName(cfg),
		"audit_store", app.Records != nil,
		"document_archive", app.Archive != nil,
		"event_bus", app.Bus != nil,
	)
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// busOptions retries publishes that fail on broker connectivity with the
// default backoff, behind their own breaker.
func busOptions(observer Observer) nats.Options {
	publishCfg := resilience.DefaultConfig()
	if observer != nil {
		publishCfg.OnStateChange = observer.ObserveBreakerState
	}
	return nats.Options{ResilienceExecutor: resilience.NewExecutor(publishCfg)}
}

func newGenerator(cfg config.Config, executor *resilience.Executor) ports.ReplyGenerator {
	if !cfg.GenerationEnabled() {
		return nil
	}
	switch cfg.GeneratorProvider {
	case config.ProviderOllama:
		return ollama.New(cfg.OllamaURL, cfg.OllamaGenModel).WithExecutor(executor)
	default:
		return openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel).WithExecutor(executor)
	}
}

func generatorName(cfg config.Config) string {
	if !cfg.GenerationEnabled() {
		return "templates"
	}
	return cfg.GeneratorProvider
}
