package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store backends.
const (
	BackendSQLite    = "sqlite"
	BackendPathstore = "pathstore"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Document store
	StoreBackend    string
	SQLitePath      string
	PathstoreURL    string
	PathstoreAPIKey string

	// Worker pool
	WorkerCount          int
	MaxQueueSize         int
	MaxConcurrentConvert int
	MaxConcurrentStore   int

	// Upload limits
	MaxUploadBytes int64

	// Converter
	MaxDepth     int
	MinifyOutput bool

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	LogLevel string
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("RICHCONV_API_KEY"),

		StoreBackend:    envOr("STORE_BACKEND", BackendSQLite),
		SQLitePath:      envOr("SQLITE_PATH", "richconv.db"),
		PathstoreURL:    envOr("PATHSTORE_URL", "http://localhost:8080"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),

		WorkerCount:          envInt("WORKER_COUNT", 4),
		MaxQueueSize:         envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentConvert: envInt("MAX_CONCURRENT_CONVERT", 8),
		MaxConcurrentStore:   envInt("MAX_CONCURRENT_STORE", 10),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		// 0 disables the depth guard, so a negative value means "use default".
		MaxDepth:     envInt("MAX_DEPTH", 512),
		MinifyOutput: envBool("MINIFY_OUTPUT", false),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		LogLevel: envOr("LOG_LEVEL", "info"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentConvert <= 0 {
		cfg.MaxConcurrentConvert = 8
	}
	if cfg.MaxConcurrentStore <= 0 {
		cfg.MaxConcurrentStore = 10
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = 512
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("RICHCONV_API_KEY is required")
	}
	switch c.StoreBackend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendPathstore:
		if c.PathstoreAPIKey == "" {
			return fmt.Errorf("PATHSTORE_API_KEY is required for the pathstore backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
