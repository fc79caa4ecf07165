package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// HTTP Server Configuration
	HTTPPort           int
	CORSAllowedOrigins []string

	// Database Configuration
	DatabaseURL string

	// Ingestion Configuration
	ChunkSize       int
	MaxFieldLength  int
	ClassifyWorkers int
	MaxRetries      int
	ToolsFile       string

	// Upstream feed Configuration
	StreamURL       string
	StreamWiki      string
	StreamReconnect time.Duration

	// Logging Configuration
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	// HTTP Port for the read API
	cfg.HTTPPort = getEnvAsIntOrDefault("HTTP_PORT", 8000)
	cfg.CORSAllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS")

	// Database configuration
	cfg.DatabaseURL = getEnvOrDefault("DATABASE_URL", "sqlite://editgroups.db")

	// Ingestion configuration
	cfg.ChunkSize = getEnvAsIntOrDefault("INGEST_CHUNK_SIZE", 50)
	if cfg.ChunkSize < 1 {
		log.Printf("INGEST_CHUNK_SIZE=%d is too small, using 1", cfg.ChunkSize)
		cfg.ChunkSize = 1
	}
	cfg.MaxFieldLength = getEnvAsIntOrDefault("MAX_FIELD_LENGTH", 190)
	cfg.ClassifyWorkers = getEnvAsIntOrDefault("CLASSIFY_WORKERS", 4)
	cfg.MaxRetries = getEnvAsIntOrDefault("INGEST_MAX_RETRIES", 3)
	cfg.ToolsFile = getEnvOrDefault("TOOLS_FILE", "tools.yaml")

	// Feed configuration
	cfg.StreamURL = getEnvOrDefault("STREAM_URL", "https://stream.wikimedia.org/v2/stream/recentchange")
	cfg.StreamWiki = os.Getenv("STREAM_WIKI")
	if _, set := os.LookupEnv("STREAM_WIKI"); !set {
		cfg.StreamWiki = "wikidatawiki"
	}
	cfg.StreamReconnect = time.Duration(getEnvAsIntOrDefault("STREAM_RECONNECT_SECONDS", 5)) * time.Second

	// Logging configuration
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getEnvOrDefault("LOG_FORMAT", "text")

	return cfg, nil
}

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault returns the value of an environment variable as an integer or a default value
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty items
func getEnvAsList(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
