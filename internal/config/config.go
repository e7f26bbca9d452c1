package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the ResearchMate server.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Cache     CacheConfig
	Queue     QueueConfig
	TextGen   TextGenConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            int
	Env             string
	ShutdownTimeout time.Duration
}

type StoreConfig struct {
	Driver          string
	DatabaseURL     string
	SQLitePath      string
	MigrationsDir   string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CacheConfig selects Redis when RedisURL is set, the in-process cache otherwise.
type CacheConfig struct {
	RedisURL string
	Size     int
	TTL      time.Duration
}

type QueueConfig struct {
	Driver    string
	Workers   int
	Depth     int
	AMQPURL   string
	AMQPQueue string
}

type TextGenConfig struct {
	Provider    string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	LlamaCpp    LlamaCppConfig
	Ollama      OllamaConfig
	VLLM        VLLMConfig
	OpenAI      OpenAIConfig
	Anthropic   AnthropicConfig
}

type LlamaCppConfig struct {
	URL string
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type VLLMConfig struct {
	BaseURL string
	Model   string
}

type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

type AnthropicConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// AuthConfig holds bcrypt hashes of accepted API keys. Empty disables auth.
type AuthConfig struct {
	APIKeyHashes []string
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	QueueMemory = "memory"
	QueueAMQP   = "amqp"
)

var validProviders = map[string]bool{
	"llamacpp":  true,
	"ollama":    true,
	"vllm":      true,
	"openai":    true,
	"anthropic": true,
	"mock":      true,
}

var validStores = map[string]bool{
	StoreMemory:   true,
	StorePostgres: true,
	StoreSQLite:   true,
}

// Load reads configuration from environment variables and returns a validated Config.
// A .env file in the working directory is applied first when present; variables
// already set in the environment take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            envInt("RESEARCHMATE_PORT", 8000),
			Env:             envString("RESEARCHMATE_ENV", "development"),
			ShutdownTimeout: envDuration("RESEARCHMATE_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Driver:          envString("STORE_DRIVER", StoreMemory),
			DatabaseURL:     os.Getenv("DATABASE_URL"),
			SQLitePath:      envString("SQLITE_PATH", "jobs.db"),
			MigrationsDir:   envString("MIGRATIONS_DIR", "migrations"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Cache: CacheConfig{
			RedisURL: os.Getenv("REDIS_URL"),
			Size:     envInt("CACHE_SIZE", 1024),
			TTL:      envDuration("CACHE_TTL", 30*time.Minute),
		},
		Queue: QueueConfig{
			Driver:    envString("QUEUE_DRIVER", QueueMemory),
			Workers:   envInt("QUEUE_WORKERS", 4),
			Depth:     envInt("QUEUE_DEPTH", 64),
			AMQPURL:   os.Getenv("AMQP_URL"),
			AMQPQueue: envString("AMQP_QUEUE", "researchmate.jobs"),
		},
		TextGen: TextGenConfig{
			Provider:    envString("TEXTGEN_PROVIDER", "llamacpp"),
			Timeout:     envDurationSecs("TEXTGEN_TIMEOUT_SECS", 300*time.Second),
			MaxTokens:   envInt("TEXTGEN_MAX_TOKENS", 1024),
			Temperature: envFloat("TEXTGEN_TEMPERATURE", 0.2),
			LlamaCpp: LlamaCppConfig{
				URL: envString("LLAMACPP_URL", "http://localhost:8080/completion"),
			},
			Ollama: OllamaConfig{
				BaseURL: envString("OLLAMA_BASE_URL", "http://localhost:11434"),
				Model:   envString("OLLAMA_MODEL", "llama3"),
			},
			VLLM: VLLMConfig{
				BaseURL: envString("VLLM_BASE_URL", "http://localhost:8000"),
				Model:   envString("VLLM_MODEL", ""),
			},
			OpenAI: OpenAIConfig{
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-3.5-turbo-instruct"),
			},
			Anthropic: AnthropicConfig{
				BaseURL: envString("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
				APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
				Model:   envString("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),
			},
		},
		Auth: AuthConfig{
			APIKeyHashes: envList("API_KEY_HASHES"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 120),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("RESEARCHMATE_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if !validStores[c.Store.Driver] {
		return fmt.Errorf("STORE_DRIVER must be one of memory, postgres, sqlite; got %q", c.Store.Driver)
	}
	if c.Store.Driver == StorePostgres && c.Store.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is postgres")
	}
	if c.Store.Driver == StoreSQLite && c.Store.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER is sqlite")
	}

	switch c.Queue.Driver {
	case QueueMemory:
	case QueueAMQP:
		if c.Queue.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required when QUEUE_DRIVER is amqp")
		}
	default:
		return fmt.Errorf("QUEUE_DRIVER must be one of memory, amqp; got %q", c.Queue.Driver)
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("QUEUE_WORKERS must be positive, got %d", c.Queue.Workers)
	}
	if c.Queue.Depth <= 0 {
		return fmt.Errorf("QUEUE_DEPTH must be positive, got %d", c.Queue.Depth)
	}

	if !validProviders[c.TextGen.Provider] {
		return fmt.Errorf("TEXTGEN_PROVIDER must be one of llamacpp, ollama, vllm, openai, anthropic, mock; got %q", c.TextGen.Provider)
	}
	if c.TextGen.Provider == "llamacpp" && !isHTTPURL(c.TextGen.LlamaCpp.URL) {
		return fmt.Errorf("LLAMACPP_URL must start with http:// or https://, got %q", c.TextGen.LlamaCpp.URL)
	}
	if c.TextGen.Provider == "openai" && c.TextGen.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when TEXTGEN_PROVIDER is openai")
	}
	if c.TextGen.Provider == "anthropic" && c.TextGen.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when TEXTGEN_PROVIDER is anthropic")
	}
	if c.TextGen.Provider == "vllm" && c.TextGen.VLLM.Model == "" {
		return fmt.Errorf("VLLM_MODEL is required when TEXTGEN_PROVIDER is vllm")
	}

	return nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}

// envList splits a comma-separated variable, dropping empty entries.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
