// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// StoreDriver selects the itinerary store: "postgres" (default) or "mongo".
	StoreDriver string

	// DatabaseURL is the Postgres connection string. Required for postgres.
	DatabaseURL string

	// MongoURL and MongoDatabase locate the Mongo store. MongoURL is required for mongo.
	MongoURL      string
	MongoDatabase string

	// RedisURL enables the Redis cache. Empty means an in-process cache.
	RedisURL string

	// CacheTTL is how long an itinerary stays cached. Defaults to 5m.
	CacheTTL time.Duration

	// LLMProvider selects the generation backend: "openai" (default) or "gemini".
	// The matching API key is required.
	LLMProvider  string
	OpenAIAPIKey string
	OpenAIModel  string
	GeminiAPIKey string
	GeminiModel  string

	// PersistencePolicy is "best_effort" (default) or "required".
	PersistencePolicy string

	// JWTSecret enables bearer tokens. Empty means every caller is a guest.
	JWTSecret string

	// GenerateRatePerMinute caps generate calls per client IP. 0 disables it.
	GenerateRatePerMinute int

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set, or the
// first variable that does not parse.
func Load() (Config, error) {
	cfg := Config{
		Port:              getEnv("PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		CORSOrigins:       splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		StoreDriver:       strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		MongoURL:          os.Getenv("MONGO_URL"),
		MongoDatabase:     getEnv("MONGO_DATABASE", "tripplanner"),
		RedisURL:          os.Getenv("REDIS_URL"),
		LLMProvider:       strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		PersistencePolicy: getEnv("PERSISTENCE_POLICY", "best_effort"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
	}

	var err error
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.GenerateRatePerMinute, err = getInt("GENERATE_RATE_PER_MINUTE", 10); err != nil {
		return Config{}, err
	}
	maxBody, err := getInt("MAX_BODY_BYTES", 1<<20)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxBodyBytes = int64(maxBody)

	var missing []string

	switch cfg.StoreDriver {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreMongo:
		if cfg.MongoURL == "" {
			missing = append(missing, "MONGO_URL")
		}
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StorePostgres, StoreMongo, cfg.StoreDriver)
	}

	switch cfg.LLMProvider {
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	default:
		return Config{}, fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderGemini, cfg.LLMProvider)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, v)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a duration such as 5m, got %q", key, v)
	}
	return d, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
