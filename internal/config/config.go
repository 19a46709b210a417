package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the service. Everything is optional: with
// no environment set at all the server runs in demo mode with canned
// vision responses and in-memory usage storage.
type Config struct {
	HTTPPort  string
	Env       string
	Database  DatabaseConfig
	Redis     RedisConfig
	Vision    VisionConfig
	LLM       LLMConfig
	RateLimit RateLimitConfig
}

// DatabaseConfig holds database connection settings. URL empty means no
// durable backend; the usage store runs memory-only.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings. Address empty disables rate
// limiting.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// VisionConfig holds vision provider settings. APIKey empty switches the
// client to canned demo responses.
type VisionConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// LLMConfig holds settings for the optional routing/verification/narration
// model. APIKey empty disables all three stages.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// RateLimitConfig bounds requests per client per minute.
type RateLimitConfig struct {
	PerMinute int
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort: getEnvString("HTTP_PORT", "8080"),
		Env:      getEnvString("APP_ENV", "development"),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:  os.Getenv("REDIS_ADDRESS"),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Vision: VisionConfig{
			APIKey:  os.Getenv("MOONDREAM_KEY"),
			BaseURL: getEnvString("MOONDREAM_BASE_URL", ""),
			Timeout: getEnvDuration("MOONDREAM_TIMEOUT", 60*time.Second),
		},
		LLM: LLMConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: getEnvString("OPENAI_BASE_URL", ""),
			Model:   getEnvString("OPENAI_MODEL", ""),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		},
	}
}

// IsDevelopment reports whether internal error details may be exposed in
// API responses.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "test"
}
