package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// REST backend (base includes the API version segment, e.g.
	// http://localhost:3002/api/v1).
	APIBaseURL string
	APIToken   string

	// Realtime feed. Empty in development selects the in-memory store.
	RedisURL string

	// Support identity the gateway sends as. Injected here rather than
	// hardcoded so deployments can run per-tenant identities.
	AdminID   string
	AdminName string

	// Directory cache
	DirectoryDBPath    string
	DirectorySyncEvery time.Duration
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		APIBaseURL:         getEnv("API_BASE_URL", "http://localhost:3002/api/v1"),
		APIToken:           os.Getenv("API_TOKEN"),
		RedisURL:           os.Getenv("REDIS_URL"),
		AdminID:            getEnv("SUPPORT_ADMIN_ID", "admin"),
		AdminName:          getEnv("SUPPORT_ADMIN_NAME", "Support"),
		DirectoryDBPath:    getEnv("DIRECTORY_DB_PATH", "./data/directory.db"),
		DirectorySyncEvery: getDuration("DIRECTORY_SYNC_INTERVAL", 5*time.Minute),
	}

	// In production, require the realtime feed and a backend token
	if cfg.Env == "production" {
		if cfg.RedisURL == "" {
			panic("REDIS_URL is required in production")
		}
		if cfg.APIToken == "" {
			panic("API_TOKEN is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
