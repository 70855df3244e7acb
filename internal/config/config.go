package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Env      string
	LogLevel string

	// Scheduling backend API
	APIBaseURL  string
	APIKey      string
	ClinicID    int64
	HTTPTimeout time.Duration

	// Clinic-local wall clock. All slot and schedule times are interpreted
	// in this single fixed zone.
	ClinicTimezone string

	// Cache freshness policy
	SlotFreshFor    time.Duration
	CacheKeepFor    time.Duration
	RefreshInterval time.Duration
	JanitorInterval time.Duration

	// Read-path retry policy. The booking mutation is never retried.
	ReadRetryMaxAttempts int
	ReadRetryBaseDelay   time.Duration

	// Cross-session invalidation bus (optional)
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// fakeclinicd development server
	FakeClinicAddr string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		APIBaseURL:  getEnv("SCHED_API_BASE_URL", "http://localhost:8480"),
		APIKey:      getEnv("SCHED_API_KEY", ""),
		ClinicID:    getEnvAsInt64("SCHED_CLINIC_ID", 1),
		HTTPTimeout: getEnvAsDuration("SCHED_HTTP_TIMEOUT", 20*time.Second),

		ClinicTimezone: getEnv("CLINIC_TIMEZONE", "Asia/Tokyo"),

		SlotFreshFor:    getEnvAsDuration("SLOT_FRESH_FOR", 30*time.Second),
		CacheKeepFor:    getEnvAsDuration("CACHE_KEEP_FOR", 5*time.Minute),
		RefreshInterval: getEnvAsDuration("SLOT_REFRESH_INTERVAL", 60*time.Second),
		JanitorInterval: getEnvAsDuration("CACHE_JANITOR_INTERVAL", time.Minute),

		ReadRetryMaxAttempts: getEnvAsInt("READ_RETRY_MAX_ATTEMPTS", 3),
		ReadRetryBaseDelay:   getEnvAsDuration("READ_RETRY_BASE_DELAY", 250*time.Millisecond),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		FakeClinicAddr: getEnv("FAKECLINIC_ADDR", ":8480"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsInt64(key string, fallback int64) int64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}
