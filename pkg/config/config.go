// Package config reads settings from a .env file and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"migra/pkg/storage"
)

type Config struct {
	Port     string
	Env      string
	Log      LogConfig
	Analysis AnalysisConfig
	Wizard   WizardConfig
	Tenant   TenantConfig
	Import   ImportConfig
	Storage  storage.Config
}

// LogConfig is consumed by logger.Setup.
type LogConfig struct {
	Level     string
	Format    string
	Output    string
	FilePath  string
	AddSource bool
}

type AnalysisConfig struct {
	StrictSniffing  bool
	MaxArchiveBytes int64
	CacheEntries    int
	CacheTTL        time.Duration
}

type WizardConfig struct {
	SessionTTL     time.Duration
	ActiveTenantID string
}

type TenantConfig struct {
	// PostgresDSN selects the Postgres repository; empty keeps companies in memory.
	PostgresDSN string
}

type ImportConfig struct {
	Driver string
	DSN    string
	// QueueURL hands imports to workers when set.
	QueueURL string
	Queue    string
	Prefetch int
}

// Load reads .env (if present) and then the process environment, which
// takes precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := firstNonEmpty(strings.TrimSpace(os.Getenv("APP_ENV")), "local")

	port := getEnv("PORT", "8080")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	cfg := &Config{
		Port: port,
		Env:  env,
		Log: LogConfig{
			Level:     getEnv("LOG_LEVEL", "info"),
			Format:    getEnv("LOG_FORMAT", defaultLogFormat(env)),
			Output:    getEnv("LOG_OUTPUT", "stdout"),
			FilePath:  getEnv("LOG_FILE", ""),
			AddSource: getEnvAsBool("LOG_ADD_SOURCE", false),
		},
		Analysis: AnalysisConfig{
			StrictSniffing:  getEnvAsBool("MIGRA_STRICT_SNIFFING", false),
			MaxArchiveBytes: int64(getEnvAsInt("MIGRA_MAX_ARCHIVE_BYTES", 256<<20)),
			CacheEntries:    getEnvAsInt("MIGRA_CACHE_ENTRIES", 32),
			CacheTTL:        time.Duration(getEnvAsInt("MIGRA_CACHE_TTL_SECONDS", 900)) * time.Second,
		},
		Wizard: WizardConfig{
			SessionTTL:     time.Duration(getEnvAsInt("MIGRA_SESSION_TTL_SECONDS", 3600)) * time.Second,
			ActiveTenantID: getEnv("MIGRA_ACTIVE_TENANT_ID", ""),
		},
		Tenant: TenantConfig{
			PostgresDSN: getEnv("TENANT_PG_DSN", ""),
		},
		Import: ImportConfig{
			Driver:   getEnv("IMPORT_DB_DRIVER", "sqlite"),
			DSN:      getEnv("IMPORT_DB_DSN", "file:migra.db?_pragma=busy_timeout(5000)"),
			QueueURL: getEnv("MIGRA_IMPORT_QUEUE_URL", ""),
			Queue:    getEnv("MIGRA_IMPORT_QUEUE", "migra_import"),
			Prefetch: getEnvAsInt("MIGRA_IMPORT_PREFETCH", 4),
		},
		Storage: storage.Config{
			Kind: getEnv("STORAGE_KIND", "memory"),
			Dir:  getEnv("STORAGE_DIR", "./data"),
			S3: storage.S3Config{
				Endpoint:  getEnv("STORAGE_S3_ENDPOINT", ""),
				Region:    firstNonEmpty(getEnv("STORAGE_S3_REGION", ""), "us-east-1"),
				AccessKey: firstNonEmpty(getEnv("STORAGE_S3_ACCESS_KEY", ""), getEnv("MINIO_ROOT_USER", "")),
				SecretKey: firstNonEmpty(getEnv("STORAGE_S3_SECRET_KEY", ""), getEnv("MINIO_ROOT_PASSWORD", "")),
				Bucket:    getEnv("STORAGE_S3_BUCKET", "migra-uploads"),
				UseSSL:    getEnvAsBool("STORAGE_S3_USE_SSL", !strings.EqualFold(env, "local")),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks values that would only fail later, at first use.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s, must be 'json' or 'text'", c.Log.Format)
	}
	if c.Analysis.MaxArchiveBytes <= 0 {
		return fmt.Errorf("MIGRA_MAX_ARCHIVE_BYTES must be positive")
	}
	switch strings.ToLower(c.Import.Driver) {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("invalid IMPORT_DB_DRIVER: %s", c.Import.Driver)
	}
	switch strings.ToLower(c.Storage.Kind) {
	case "memory", "disk", "s3":
	default:
		return fmt.Errorf("invalid STORAGE_KIND: %s", c.Storage.Kind)
	}
	if c.Import.QueueURL != "" && strings.EqualFold(c.Storage.Kind, "memory") {
		return fmt.Errorf("queued imports need STORAGE_KIND disk or s3 so workers can read uploads")
	}
	return nil
}

func defaultLogFormat(env string) string {
	if strings.EqualFold(env, "local") {
		return "text"
	}
	return "json"
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvAsBool(key string, defaultValue bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
