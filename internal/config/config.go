package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"

	StoreNotion   = "notion"
	StorePostgres = "postgres"

	RatingPropertySelect      = "select"
	RatingPropertyMultiSelect = "multi_select"
)

var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-3.5-turbo",
	ProviderGemini:    "gemini-1.5-flash",
	ProviderAnthropic: "claude-3-5-haiku-latest",
}

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Completion
	CompletionProvider   string
	CompletionModel      string
	CompletionAPIKey     string
	OpenAIBaseURL        string
	AnthropicBaseURL     string
	CompletionConcurrent int
	CompletionTimeout    time.Duration

	// Record store
	RecordStore          string
	NotionAPIKey         string
	NotionDatabaseID     string
	NotionRatingProperty string
	VerifyDatabase       bool
	DatabaseURL          string
	RecordsTable         string

	// Sessions
	RedisURL        string
	SessionSecret   string
	SessionTTL      time.Duration
	DefaultUserName string
	AskRateLimit    int

	// Frontend
	FrontendURL string
}

// ConfigurationError lists every required variable that was missing or invalid.
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "required environment variables not set: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid configuration: "+strings.Join(e.Invalid, "; "))
	}
	return strings.Join(parts, "; ")
}

// IsDevelopment reports whether the service runs with developer defaults.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// RecordDatabaseID is the identifier handed to the record store.
func (c *Config) RecordDatabaseID() string {
	if c.RecordStore == StorePostgres {
		return c.RecordsTable
	}
	return c.NotionDatabaseID
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfgErr := &ConfigurationError{}

	cfg := &Config{
		Port:     getEnvOrDefault("PORT", "8080"),
		Env:      getEnvOrDefault("ENV", "development"),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),

		CompletionProvider:   strings.ToLower(getEnvOrDefault("COMPLETION_PROVIDER", ProviderOpenAI)),
		OpenAIBaseURL:        getEnvOrDefault("OPENAI_BASE_URL", ""),
		AnthropicBaseURL:     getEnvOrDefault("ANTHROPIC_BASE_URL", ""),
		CompletionConcurrent: getEnvAsIntOrDefault("COMPLETION_CONCURRENT_REQUESTS", 5),
		CompletionTimeout:    getEnvAsDurationOrDefault("COMPLETION_TIMEOUT", 60*time.Second),

		RecordStore:          strings.ToLower(getEnvOrDefault("RECORD_STORE", StoreNotion)),
		NotionRatingProperty: strings.ToLower(getEnvOrDefault("NOTION_RATING_PROPERTY", RatingPropertyMultiSelect)),
		VerifyDatabase:       getEnvAsBoolOrDefault("VERIFY_RECORD_DATABASE", true),
		RecordsTable:         getEnvOrDefault("RECORDS_TABLE", "qa_records"),

		RedisURL:        getEnvOrDefault("REDIS_URL", ""),
		SessionSecret:   getEnvOrDefault("SESSION_SECRET", ""),
		SessionTTL:      getEnvAsDurationOrDefault("SESSION_TTL", 24*time.Hour),
		DefaultUserName: getEnvOrDefault("DEFAULT_USER_NAME", "Anonymous"),
		AskRateLimit:    getEnvAsIntOrDefault("ASK_RATE_LIMIT", 20),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	switch cfg.CompletionProvider {
	case ProviderOpenAI:
		cfg.CompletionAPIKey = requireEnv("OPENAI_API_KEY", cfgErr)
	case ProviderGemini:
		cfg.CompletionAPIKey = requireEnv("GEMINI_API_KEY", cfgErr)
	case ProviderAnthropic:
		cfg.CompletionAPIKey = requireEnv("ANTHROPIC_API_KEY", cfgErr)
	default:
		cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf("COMPLETION_PROVIDER %q is not one of openai, gemini, anthropic", cfg.CompletionProvider))
	}
	cfg.CompletionModel = getEnvOrDefault("COMPLETION_MODEL", defaultModels[cfg.CompletionProvider])

	switch cfg.RecordStore {
	case StoreNotion:
		cfg.NotionAPIKey = requireEnv("NOTION_API_KEY", cfgErr)
		cfg.NotionDatabaseID = requireEnv("NOTION_DATABASE_ID", cfgErr)
	case StorePostgres:
		cfg.DatabaseURL = requireEnv("DATABASE_URL", cfgErr)
	default:
		cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf("RECORD_STORE %q is not one of notion, postgres", cfg.RecordStore))
	}

	if cfg.NotionRatingProperty != RatingPropertySelect && cfg.NotionRatingProperty != RatingPropertyMultiSelect {
		cfgErr.Invalid = append(cfgErr.Invalid, fmt.Sprintf("NOTION_RATING_PROPERTY %q is not one of select, multi_select", cfg.NotionRatingProperty))
	}
	if cfg.CompletionConcurrent < 1 {
		cfg.CompletionConcurrent = 1
	}

	if len(cfgErr.Missing) > 0 || len(cfgErr.Invalid) > 0 {
		return nil, cfgErr
	}
	return cfg, nil
}

func requireEnv(key string, cfgErr *ConfigurationError) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		cfgErr.Missing = append(cfgErr.Missing, key)
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
