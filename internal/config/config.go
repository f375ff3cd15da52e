package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	BaseURL          string
	FrontendURL      string
	AIProvider       string
	OpenAIKey        string
	AIModel          string
	AIBaseURL        string
	AIMaxRetries     int
	EnableHSTS       bool
	RedisURL         string
	RateLimit        string
	RabbitMQURL      string
	RabbitMQPrefetch int
	DLQRetention     time.Duration
	DLQGCInterval    time.Duration
	SweepInterval    time.Duration
	TaxonomyTTL      time.Duration
	QueryCacheTTL    time.Duration
	WorkerDebugMode  bool
	ServerDebugMode  bool
	OTELEnabled      bool
	OTELEndpoint     string
}

// Load loads configuration from environment variables.
// REDIS_URL and RABBITMQ_URL are optional: without Redis the server uses in-memory
// rate limiting and no query cache, without RabbitMQ entries are analyzed inline.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		BaseURL:          getEnv("BASE_URL", "http://localhost:8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		AIProvider:       getEnv("AI_PROVIDER", "openai"),
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		AIModel:          getEnv("AI_MODEL", ""),
		AIBaseURL:        getEnv("AI_BASE_URL", ""),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", 2),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),
		RedisURL:         getEnv("REDIS_URL", ""),
		RateLimit:        getEnv("RATE_LIMIT", "5-S"),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),
		DLQRetention:     getEnvDuration("DLQ_RETENTION", 7*24*time.Hour),
		DLQGCInterval:    getEnvDuration("DLQ_GC_INTERVAL", time.Hour),
		SweepInterval:    getEnvDuration("SWEEP_INTERVAL", 15*time.Minute),
		TaxonomyTTL:      getEnvDuration("TAXONOMY_TTL", 5*time.Minute),
		QueryCacheTTL:    getEnvDuration("QUERY_CACHE_TTL", time.Minute),
		WorkerDebugMode:  getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:  getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:      getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:     getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TaxonomyTTL <= 0 {
		return nil, fmt.Errorf("TAXONOMY_TTL must be positive, got %s", cfg.TaxonomyTTL)
	}

	return cfg, nil
}

// UseQueue reports whether extraction jobs go through RabbitMQ
func (c *Config) UseQueue() bool {
	return c.RabbitMQURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("90s", "5m")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
