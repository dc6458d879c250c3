package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tradepost-ocr/api/internal/quota"
)

type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	GeminiAPIKey          string
	GeminiModel           string
	GeminiTemperature     float32
	GeminiMaxOutputTokens int32

	AuthRequired   bool
	TestToken      string
	ClientIPHeader string

	MaxImageChars    int
	DefaultImageMIME string

	Quota        quota.Policy
	QuotaBackend string // memory | redis | postgres

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DatabaseURL   string

	TelegramBotToken string
	BotQuantity      int
	LogLevel         string
}

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvAsFloat(k string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvAsBool(k string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Load reads .env (if present) and the environment. Call Validate before use.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	strategy, err := quota.ParseStrategy(getEnv("QUOTA_STRATEGY", string(quota.Daily)))
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 90*time.Second),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GeminiModel:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTemperature:     float32(getEnvAsFloat("GEMINI_TEMPERATURE", 0.1)),
		GeminiMaxOutputTokens: int32(getEnvAsInt("GEMINI_MAX_OUTPUT_TOKENS", 2048)),

		AuthRequired:   getEnvAsBool("AUTH_REQUIRED", false),
		TestToken:      getEnv("TEST_TOKEN", ""),
		ClientIPHeader: getEnv("CLIENT_IP_HEADER", "CF-Connecting-IP"),

		MaxImageChars:    getEnvAsInt("MAX_IMAGE_CHARS", 1_400_000),
		DefaultImageMIME: getEnv("DEFAULT_IMAGE_MIME", "image/png"),

		Quota: quota.Policy{
			Strategy: strategy,
			Limit:    getEnvAsInt("QUOTA_LIMIT", 5),
			Window:   getDuration("QUOTA_WINDOW", 60*time.Second),
		},
		QuotaBackend: strings.ToLower(getEnv("QUOTA_BACKEND", BackendMemory)),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		BotQuantity:      getEnvAsInt("BOT_QUANTITY", 100),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}, nil
}

// Validate reports settings the service cannot start with. A missing Gemini
// key is not fatal: requests fail with a misconfiguration error instead.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Quota.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxImageChars <= 0 {
		errs = append(errs, fmt.Errorf("MAX_IMAGE_CHARS must be > 0"))
	}
	switch c.QuotaBackend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.Quota.Strategy != quota.Daily {
			errs = append(errs, fmt.Errorf("postgres quota backend supports only the daily strategy"))
		}
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for the postgres quota backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown QUOTA_BACKEND %q; use memory|redis|postgres", c.QuotaBackend))
	}
	if c.AuthRequired && c.TestToken == "" {
		log.Println("AUTH_REQUIRED is set but TEST_TOKEN is empty: every request will be rejected")
	}
	return errors.Join(errs...)
}
