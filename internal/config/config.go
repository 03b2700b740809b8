package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	RedisAddr   string
	DatabaseURL string

	// Providers maps provider name to its inbound signing secret.
	Providers          map[string]string
	SignatureTolerance time.Duration
	EventRetention     time.Duration

	SinkURLs      []string
	SinkSecret    string
	Workers       int
	QueueCapacity int
	MaxAttempts   int
	MonitorHealth bool
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	return &Config{
		Port:               GetString("PORT", "8000"),
		Environment:        GetString("ENVIRONMENT", "development"),
		RedisAddr:          GetString("REDIS_ADDR", "localhost:6379"),
		DatabaseURL:        GetString("DATABASE_URL", ""),
		Providers:          parseProviders(GetString("WEBHOOK_PROVIDERS", "")),
		SignatureTolerance: GetDuration("SIGNATURE_TOLERANCE", 5*time.Minute),
		EventRetention:     GetDuration("EVENT_RETENTION", 24*time.Hour),
		SinkURLs:           splitList(GetString("SINK_URLS", "")),
		SinkSecret:         GetString("SINK_SIGNING_SECRET", ""),
		Workers:            GetInt("DISPATCH_WORKERS", 16),
		QueueCapacity:      GetInt("QUEUE_CAPACITY", 10000),
		MaxAttempts:        GetInt("DISPATCH_MAX_ATTEMPTS", 8),
		MonitorHealth:      GetBool("MONITOR_HEALTH", true),
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// parseProviders reads "name:secret,name:secret" pairs. Entries without a
// secret are dropped rather than registered unverifiable.
func parseProviders(raw string) map[string]string {
	providers := make(map[string]string)
	for _, entry := range splitList(raw) {
		name, secret, found := strings.Cut(entry, ":")
		if !found || name == "" || secret == "" {
			slog.Warn("ignoring malformed provider entry", "entry", entry)
			continue
		}
		providers[name] = secret
	}
	return providers
}

func splitList(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func GetString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
