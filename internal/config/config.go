package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	DSN string
}

// LLMConfig holds the chunker endpoint settings.
type LLMConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// EmbeddingConfig holds the embedding client settings.
type EmbeddingConfig struct {
	BaseURL   string
	Model     string
	Dimension int
	BatchSize int
	Timeout   time.Duration
}

// PollerConfig holds feed polling settings.
type PollerConfig struct {
	BatchSize        int
	Workers          int
	BackoffBase      time.Duration
	BackoffCap       time.Duration
	MaxFailures      int
	Cron             string
	UserAgent        string
	TrackingDenylist []string
}

// WorkerConfig holds article worker settings.
type WorkerConfig struct {
	BatchSize     int
	Workers       int
	MaxAttempts   int
	MinTextLength int
	MaxFetchBytes int64
	FetchTimeout  time.Duration
}

// ServiceConfig holds cadence and batch size for one continuous service.
type ServiceConfig struct {
	Interval time.Duration
	Batch    int
}

// TrendsConfig holds clustering and caching settings.
type TrendsConfig struct {
	WindowHours int
	Limit       int
	TopN        int
	Eps         float64
	MinSamples  int
	Keywords    int
	TTL         time.Duration
}

// RedisConfig holds the optional trends cache backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TelegramConfig holds report delivery settings.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// Config is the immutable process-wide configuration, constructed once at
// startup by Load. Services must not read the environment after that.
type Config struct {
	Database    DatabaseConfig
	LLM         LLMConfig
	Embedding   EmbeddingConfig
	Poller      PollerConfig
	Worker      WorkerConfig
	Chunking    ServiceConfig
	Embed       ServiceConfig
	FTS         ServiceConfig
	Trends      TrendsConfig
	Redis       RedisConfig
	Telegram    TelegramConfig
	ServiceMode string
	FTSConfig   string
	QueueDir    string
	LeaseFor    time.Duration
	GraceFor    time.Duration
	LogLevel    string
	LogPath     string
	Timezone    string
}

// defaultDenylist are query parameters stripped during URL canonicalization.
// Entries ending in "*" match by prefix.
var defaultDenylist = []string{
	"utm_*",
	"fbclid", "gclid", "mc_cid", "mc_eid", "igshid", "ref",
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	// Overload so .env values deterministically control local runs.
	_ = godotenv.Overload()

	cfg := Config{}
	cfg.Database.DSN = strings.TrimSpace(os.Getenv("PG_DSN"))

	cfg.LLM.BaseURL = envOr("OLLAMA_BASE_URL", "http://localhost:11434")
	cfg.LLM.Model = envOr("OLLAMA_MODEL", "llama3.1")
	cfg.LLM.Timeout = envSeconds("OLLAMA_TIMEOUT_SECONDS", 60*time.Second)

	cfg.Embedding.BaseURL = envOr("EMBEDDING_BASE_URL", cfg.LLM.BaseURL)
	cfg.Embedding.Model = envOr("EMBEDDING_MODEL", "nomic-embed-text")
	cfg.Embedding.Dimension = envInt("EMBEDDING_DIM", 768)
	cfg.Embedding.BatchSize = envInt("EMBEDDING_BATCH_SIZE", 64)
	cfg.Embedding.Timeout = envSeconds("EMBEDDING_TIMEOUT_SECONDS", 30*time.Second)

	cfg.Poller.BatchSize = envInt("POLL_BATCH", 50)
	cfg.Poller.Workers = envInt("POLL_WORKERS", 4)
	cfg.Poller.BackoffBase = 5 * time.Minute
	cfg.Poller.BackoffCap = 6 * time.Hour
	cfg.Poller.MaxFailures = envInt("POLL_MAX_FAILURES", 10)
	cfg.Poller.Cron = envOr("POLL_CRON", "*/5 * * * *")
	cfg.Poller.UserAgent = envOr("HTTP_USER_AGENT", "newswire/1.0 (+feed poller)")
	cfg.Poller.TrackingDenylist = defaultDenylist
	if v := strings.TrimSpace(os.Getenv("TRACKING_DENYLIST")); v != "" {
		cfg.Poller.TrackingDenylist = strings.Split(v, ",")
	}

	cfg.Worker.BatchSize = envInt("WORK_BATCH", 20)
	cfg.Worker.Workers = envInt("WORK_WORKERS", 4)
	cfg.Worker.MaxAttempts = envInt("WORK_MAX_ATTEMPTS", 3)
	cfg.Worker.MinTextLength = envInt("WORK_MIN_TEXT_LENGTH", 200)
	cfg.Worker.MaxFetchBytes = int64(envInt("MAX_FETCH_BYTES", 8*1000*1000))
	cfg.Worker.FetchTimeout = envSeconds("FETCH_TIMEOUT_SECONDS", 30*time.Second)

	cfg.Chunking.Interval = envSeconds("CHUNK_INTERVAL", 30*time.Second)
	cfg.Chunking.Batch = envInt("CHUNK_BATCH", 10)
	cfg.Embed.Interval = envSeconds("EMBED_INTERVAL", 15*time.Second)
	cfg.Embed.Batch = envInt("EMBED_BATCH", 200)
	cfg.FTS.Interval = envSeconds("FTS_INTERVAL", 15*time.Second)
	cfg.FTS.Batch = envInt("FTS_BATCH", 500)

	cfg.Trends.WindowHours = envInt("TRENDS_WINDOW_HOURS", 24)
	cfg.Trends.Limit = envInt("TRENDS_LIMIT", 600)
	cfg.Trends.TopN = envInt("TRENDS_TOP_N", 10)
	cfg.Trends.Eps = envFloat("TRENDS_EPS", 0.30)
	cfg.Trends.MinSamples = envInt("TRENDS_MIN_SAMPLES", 5)
	cfg.Trends.Keywords = envInt("TRENDS_KEYWORDS", 6)
	cfg.Trends.TTL = time.Duration(envInt("TRENDS_TTL_MINUTES", 10)) * time.Minute

	cfg.Redis.Addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = envInt("REDIS_DB", 0)

	cfg.Telegram.BotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.Telegram.ChatID = strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID"))

	cfg.ServiceMode = strings.TrimSpace(os.Getenv("SERVICE_MODE"))
	cfg.FTSConfig = envOr("FTS_CONFIG", "english")
	cfg.QueueDir = envOr("QUEUE_DIR", "storage")
	cfg.LeaseFor = envSeconds("CLAIM_LEASE_SECONDS", 5*time.Minute)
	cfg.GraceFor = envSeconds("SHUTDOWN_GRACE_SECONDS", 30*time.Second)
	cfg.LogLevel = envOr("LOG_LEVEL", "info")
	cfg.LogPath = strings.TrimSpace(os.Getenv("LOG_PATH"))
	cfg.Timezone = envOr("TZ", "UTC")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration errors that must stop the process at start.
func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("PG_DSN is required")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("EMBEDDING_BATCH_SIZE must be positive, got %d", c.Embedding.BatchSize)
	}
	if c.Trends.Eps <= 0 || c.Trends.Eps >= 2 {
		return fmt.Errorf("TRENDS_EPS must be in (0, 2), got %v", c.Trends.Eps)
	}
	if c.Trends.MinSamples < 1 {
		return fmt.Errorf("TRENDS_MIN_SAMPLES must be at least 1, got %d", c.Trends.MinSamples)
	}
	switch c.ServiceMode {
	case "", "fts-continuous", "chunk-continuous", "embed-continuous":
	default:
		return fmt.Errorf("unknown SERVICE_MODE %q", c.ServiceMode)
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envSeconds(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return def
}
