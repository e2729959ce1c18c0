package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL  string
	StoreBackend string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SlotCacheTTL  time.Duration

	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitPerSec    int
	RateLimitBurst     int

	BookingLockTimeout   time.Duration
	MaxRangeDays         int
	DefaultSlotMinutes   int
	DefaultBufferMinutes int
	DefaultLeadMinutes   int

	OutboxBatchSize int
	OutboxInterval  time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:  getEnv("DATABASE_URL", ""),
		StoreBackend: strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", "auto"))),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SlotCacheTTL:  getEnvAsDuration("SLOT_CACHE_TTL", 30*time.Second),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
		RateLimitPerSec:    getEnvAsInt("RATE_LIMIT_PER_SEC", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		BookingLockTimeout:   getEnvAsDuration("BOOKING_LOCK_TIMEOUT", 5*time.Second),
		MaxRangeDays:         getEnvAsInt("MAX_RANGE_DAYS", 60),
		DefaultSlotMinutes:   getEnvAsInt("DEFAULT_SLOT_MINUTES", 30),
		DefaultBufferMinutes: getEnvAsInt("DEFAULT_BUFFER_MINUTES", 0),
		DefaultLeadMinutes:   getEnvAsInt("DEFAULT_LEAD_MINUTES", 0),

		OutboxBatchSize: getEnvAsInt("OUTBOX_BATCH_SIZE", 25),
		OutboxInterval:  getEnvAsDuration("OUTBOX_INTERVAL", 2*time.Second),
	}
}

// UsePostgres reports whether the postgres backend should be wired. The
// "auto" backend follows DATABASE_URL.
func (c *Config) UsePostgres() bool {
	switch c.StoreBackend {
	case "postgres":
		return true
	case "memory":
		return false
	}
	return c.DatabaseURL != ""
}

// MaxRange returns the queryable span bound; zero disables it.
func (c *Config) MaxRange() time.Duration {
	if c.MaxRangeDays <= 0 {
		return 0
	}
	return time.Duration(c.MaxRangeDays) * 24 * time.Hour
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
