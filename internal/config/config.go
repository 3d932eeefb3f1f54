package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config carries everything main needs to wire the service. Values come from
// the environment, with an optional .env file for local runs.
type Config struct {
	// HTTP server
	Addr string

	// Database. Empty selects the in-memory store.
	DatabaseURL string
	// Migrate applies db/migrations on startup when a DATABASE_URL is set.
	Migrate       bool
	MigrationsURL string

	// Logging
	LogLevel  string
	LogFormat string

	// Currency used to format amounts in API responses (amounts themselves are
	// currency-agnostic minor units).
	Currency string

	// DefaultEnvironment is the partition assumed when a request omits one.
	DefaultEnvironment string

	// AllowedOrigins for browser clients, comma separated.
	AllowedOrigins []string
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Addr:               getEnv("ADDR", ":8080"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Migrate:            getEnvBool("MIGRATE", false),
		MigrationsURL:      getEnv("MIGRATIONS_URL", "file://db/migrations"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
		Currency:           strings.ToUpper(getEnv("CURRENCY", "EUR")),
		DefaultEnvironment: getEnv("DEFAULT_ENVIRONMENT", "prod"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
	}
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("ADDR must not be empty")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("CURRENCY %q: expected a 3-letter ISO code", c.Currency)
	}
	if c.DefaultEnvironment == "" {
		return fmt.Errorf("DEFAULT_ENVIRONMENT must not be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
