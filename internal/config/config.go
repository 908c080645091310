package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Logger       LoggerConfig
	LLM          LLMConfig
	Embedding    EmbeddingConfig
	Knowledge    KnowledgeConfig
	Store        StoreConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Pipeline     PipelineConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// LLMConfig selects and configures the chat model provider.
type LLMConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// EmbeddingConfig selects the engine used for query embeddings. It must match
// the engine the knowledge index was built with.
type EmbeddingConfig struct {
	Provider       string
	OllamaEndpoint string
	OllamaModel    string
	GenAIAPIKey    string
	GenAIModel     string
}

// KnowledgeConfig locates the prebuilt knowledge index.
type KnowledgeConfig struct {
	IndexPath string
	TopK      int
	MinScore  float64
}

// StoreConfig selects the row store backend holding tickets.
type StoreConfig struct {
	Backend   string
	XLSXPath  string
	SheetName string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	QueueKey string
}

// PipelineConfig tunes retries of the triage pipeline.
type PipelineConfig struct {
	GenerationRetries     int
	GenerationBackoffMS   int
	StoreAttempts         int
	StoreBackoffMS        int
	RetryWorkerIntervalMS int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	minScore, err := strconv.ParseFloat(getEnv("KNOWLEDGE_MIN_SCORE", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid KNOWLEDGE_MIN_SCORE: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-triage"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 60),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		LLM: LLMConfig{
			Provider:       getEnv("LLM_PROVIDER", "groq"),
			APIKey:         firstEnv("LLM_API_KEY", "GROQ_API_KEY", "GOOGLE_API_KEY"),
			BaseURL:        os.Getenv("LLM_BASE_URL"),
			Model:          os.Getenv("LLM_MODEL"),
			TimeoutSeconds: getEnvAsInt("LLM_TIMEOUT_SECONDS", 30),
		},
		Embedding: EmbeddingConfig{
			Provider:       getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaEndpoint: getEnv("OLLAMA_ENDPOINT", "http://localhost:11434"),
			OllamaModel:    getEnv("OLLAMA_EMBED_MODEL", "all-minilm"),
			GenAIAPIKey:    firstEnv("GENAI_API_KEY", "GOOGLE_API_KEY"),
			GenAIModel:     getEnv("GENAI_EMBED_MODEL", "gemini-embedding-001"),
		},
		Knowledge: KnowledgeConfig{
			IndexPath: getEnv("KNOWLEDGE_INDEX_PATH", "data/knowledge.db"),
			TopK:      getEnvAsInt("KNOWLEDGE_TOP_K", 3),
			MinScore:  minScore,
		},
		Store: StoreConfig{
			Backend:   getEnv("STORE_BACKEND", "xlsx"),
			XLSXPath:  getEnv("STORE_XLSX_PATH", "data/TicketDatabase.xlsx"),
			SheetName: getEnv("STORE_SHEET", "Tickets"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			QueueKey: getEnv("REDIS_SAVE_QUEUE_KEY", "ticket-triage:pending-saves"),
		},
		Pipeline: PipelineConfig{
			GenerationRetries:     getEnvAsInt("GENERATION_RETRIES", 1),
			GenerationBackoffMS:   getEnvAsInt("GENERATION_BACKOFF_MS", 500),
			StoreAttempts:         getEnvAsInt("STORE_ATTEMPTS", 3),
			StoreBackoffMS:        getEnvAsInt("STORE_BACKOFF_MS", 200),
			RetryWorkerIntervalMS: getEnvAsInt("RETRY_WORKER_INTERVAL_MS", 5000),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if cfg.Knowledge.TopK <= 0 {
		cfg.Knowledge.TopK = 3
	}
	switch cfg.Store.Backend {
	case "xlsx", "postgres", "memory":
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q (use xlsx, postgres or memory)", cfg.Store.Backend)
	}
	if cfg.Store.Backend == "postgres" && cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required when STORE_BACKEND=postgres")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout bounds a single model call.
func (l LLMConfig) Timeout() time.Duration {
	if l.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// GenerationBackoff returns the base delay between generation attempts.
func (p PipelineConfig) GenerationBackoff() time.Duration {
	return time.Duration(p.GenerationBackoffMS) * time.Millisecond
}

// StoreBackoff returns the base delay between store attempts.
func (p PipelineConfig) StoreBackoff() time.Duration {
	return time.Duration(p.StoreBackoffMS) * time.Millisecond
}

// RetryWorkerInterval returns the poll interval of the save-retry worker.
func (p PipelineConfig) RetryWorkerInterval() time.Duration {
	if p.RetryWorkerIntervalMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(p.RetryWorkerIntervalMS) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return ""
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
