package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeLambda Mode = "lambda"
	ModeLocal  Mode = "local"
)

const (
	StorageDynamoDB = "dynamodb"
	StorageBolt     = "bolt"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config is read once at startup and passed down explicitly.
type Config struct {
	Mode   Mode
	Port   string
	LogEnv string

	// ParamPrefix is the SSM path prefix for secrets (lambda mode).
	ParamPrefix string

	StorageBackend string
	StateTable     string
	BoltPath       string

	DatabaseURL string

	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	TranslationCacheTTL time.Duration
	WeatherCacheTTL     time.Duration

	WeatherBaseURL string

	LLMProvider   string
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiModel   string
	GeminiRPS     float64

	ExternalCallTimeout time.Duration
	MaxMessageLength    int
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Mode:   Mode(strings.ToLower(getEnv("APP_MODE", string(ModeLambda)))),
		Port:   getEnv("PORT", "8080"),
		LogEnv: getEnv("LOG_ENV", "production"),

		ParamPrefix: strings.TrimRight(strings.TrimSpace(getEnv("PARAM_PREFIX", "/agri-advisor")), "/"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", StorageDynamoDB)),
		StateTable:     getEnv("STATE_TABLE", ""),
		BoltPath:       getEnv("BOLT_PATH", "data/sessions.bolt"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		LLMProvider:   strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		WeatherBaseURL: getEnv("WEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
	}

	var err error
	if cfg.RedisDB, err = envInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.MaxMessageLength, err = envInt("MAX_MESSAGE_LENGTH", 2000); err != nil {
		return nil, err
	}
	if cfg.TranslationCacheTTL, err = envDuration("TRANSLATION_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.WeatherCacheTTL, err = envDuration("WEATHER_CACHE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ExternalCallTimeout, err = envDuration("EXTERNAL_CALL_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.GeminiRPS, err = envFloat("GEMINI_RPS", 3); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on settings the process cannot start without.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLambda, ModeLocal:
	default:
		return fmt.Errorf("config: APP_MODE must be %q or %q, got %q", ModeLambda, ModeLocal, c.Mode)
	}
	if c.Mode == ModeLambda && c.ParamPrefix == "" {
		return errors.New("config: PARAM_PREFIX is required in lambda mode")
	}

	switch c.StorageBackend {
	case StorageDynamoDB:
		if c.StateTable == "" {
			return errors.New("config: STATE_TABLE is required for the dynamodb backend")
		}
	case StorageBolt:
		if c.BoltPath == "" {
			return errors.New("config: BOLT_PATH is required for the bolt backend")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL is required")
	}

	switch c.LLMProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("config: unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.ExternalCallTimeout <= 0 {
		return errors.New("config: EXTERNAL_CALL_TIMEOUT must be positive")
	}
	if c.MaxMessageLength <= 0 {
		return errors.New("config: MAX_MESSAGE_LENGTH must be positive")
	}
	return nil
}

// SecretName returns the full parameter name for a secret under ParamPrefix.
func (c *Config) SecretName(name string) string {
	return c.ParamPrefix + "/" + strings.TrimLeft(name, "/")
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
