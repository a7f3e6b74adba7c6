package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider names accepted in PROVIDER.
const (
	ProviderYahoo  = "yahoo"
	ProviderCSV    = "csv"
	ProviderSQLite = "sqlite"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Price source
	Provider      string // yahoo | csv | sqlite
	CSVDir        string
	YahooBaseURL  string
	YahooAdjusted bool

	// Infrastructure
	RedisAddr     string // empty disables the bar cache
	RedisPassword string
	RedisCacheTTL time.Duration
	SQLitePath    string
	HTTPAddr      string
	MetricsAddr   string

	// Runtime
	LogLevel     string
	BatchWorkers int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Provider:      strings.ToLower(getEnv("PROVIDER", ProviderYahoo)),
		CSVDir:        getEnv("CSV_DIR", "data/csv"),
		YahooBaseURL:  getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		YahooAdjusted: getBool("YAHOO_ADJUSTED", true),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisCacheTTL: getDuration("REDIS_CACHE_TTL", 12*time.Hour),
		SQLitePath:    getEnv("SQLITE_PATH", "data/bars.db"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		LogLevel:     getEnv("LOG_LEVEL", "info"),
		BatchWorkers: getInt("BATCH_WORKERS", 4),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return d
}
