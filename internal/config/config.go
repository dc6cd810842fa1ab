package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type Config struct {
	APIPort  string
	LogLevel string

	LexiconPath string

	GeneratorProvider     string
	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIModel           string
	OllamaURL             string
	OllamaGenModel        string
	GenerationTimeout     time.Duration
	GenerationTemperature float64
	GenerationMaxTokens   int
	BreakerEnabled        bool

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	MaxUploadBytes    int64

	PostgresDSN string
	ArchiveDir  string

	NATSURL     string
	NATSSubject string

	IMAPServer       string
	IMAPPort         int
	IMAPEmail        string
	IMAPPassword     string
	IMAPFolder       string
	IMAPPollInterval time.Duration

	WorkerMetricsPort string
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("PORT", mustEnv("API_PORT", "5000")),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		LexiconPath: mustEnv("LEXICON_PATH", ""),

		GeneratorProvider:     strings.ToLower(mustEnv("GENERATOR_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:          mustEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         mustEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:           mustEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OllamaURL:             mustEnv("OLLAMA_URL", ""),
		OllamaGenModel:        mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		GenerationTimeout:     mustEnvDuration("GENERATION_TIMEOUT", 20*time.Second),
		GenerationTemperature: mustEnvFloat("GENERATION_TEMPERATURE", 0.3),
		GenerationMaxTokens:   mustEnvInt("GENERATION_MAX_TOKENS", 220),
		BreakerEnabled:        mustEnvBool("BREAKER_ENABLED", true),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 0),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 0),
		MaxUploadBytes:    int64(mustEnvInt("MAX_UPLOAD_BYTES", 10<<20)),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),
		ArchiveDir:  mustEnv("ARCHIVE_DIR", ""),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "emails.triaged"),

		IMAPServer:       mustEnv("IMAP_SERVER", ""),
		IMAPPort:         mustEnvInt("IMAP_PORT", 993),
		IMAPEmail:        mustEnv("IMAP_EMAIL", ""),
		IMAPPassword:     mustEnv("IMAP_PASSWORD", ""),
		IMAPFolder:       mustEnv("IMAP_FOLDER", "INBOX"),
		IMAPPollInterval: mustEnvDuration("IMAP_POLL_INTERVAL", time.Minute),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

// GenerationEnabled reports whether the selected provider has what it needs
// to be called. Without it every reply comes from the templates.
func (c Config) GenerationEnabled() bool {
	switch c.GeneratorProvider {
	case ProviderOllama:
		return strings.TrimSpace(c.OllamaURL) != ""
	case ProviderOpenAI:
		return strings.TrimSpace(c.OpenAIAPIKey) != ""
	default:
		return false
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
