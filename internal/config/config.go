package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the complete service configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Storage  StorageConfig  `toml:"storage"`
	Auth     AuthConfig     `toml:"auth"`
	Logging  LoggingConfig  `toml:"logging"`
	Jobs     JobsConfig     `toml:"jobs"`
}

type ServerConfig struct {
	Port        int    `toml:"port"`
	StoreDriver string `toml:"store_driver"` // "postgres" or "memory"
}

// DatabaseConfig contains pool and transaction settings
type DatabaseConfig struct {
	URL           string        `toml:"url"`
	MaxConns      int           `toml:"max_conns"`
	TxMaxAttempts int           `toml:"tx_max_attempts"`
	LockTimeout   time.Duration `toml:"lock_timeout"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// StorageConfig contains MinIO settings for ledger exports
type StorageConfig struct {
	Endpoint     string `toml:"endpoint"`
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
	UseSSL       bool   `toml:"use_ssl"`
	ExportBucket string `toml:"export_bucket"`
}

type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	JWKSURL   string `toml:"jwks_url"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// JobsConfig contains background job intervals
type JobsConfig struct {
	Enabled           bool          `toml:"enabled"`
	ReconcileInterval time.Duration `toml:"reconcile_interval"`
	ExportInterval    time.Duration `toml:"export_interval"`
	ExportSettleDelay time.Duration `toml:"export_settle_delay"` // must exceed the longest write transaction
	LowStockInterval  time.Duration `toml:"low_stock_interval"`
	LowStockThreshold int           `toml:"low_stock_threshold"` // 0 disables the check
}

// Load reads .env (if present), the environment, and finally the TOML file
// named by CONFIG_FILE, which overrides anything set before it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvAsInt("PORT", 8080),
			StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		},
		Database: DatabaseConfig{
			URL:           getEnv("DATABASE_URL", ""),
			MaxConns:      getEnvAsInt("DB_MAX_CONNS", 20),
			TxMaxAttempts: getEnvAsInt("DB_TX_MAX_ATTEMPTS", 3),
			LockTimeout:   getEnvAsDuration("DB_LOCK_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Endpoint:     getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:    getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:    getEnv("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:       getEnv("MINIO_USE_SSL", "false") == "true",
			ExportBucket: getEnv("MINIO_EXPORT_BUCKET", "ledger-exports"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWKSURL:   getEnv("JWT_JWKS_URL", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Jobs: JobsConfig{
			Enabled:           getEnv("JOBS_ENABLED", "true") == "true",
			ReconcileInterval: getEnvAsDuration("RECONCILE_INTERVAL", 30*time.Minute),
			ExportInterval:    getEnvAsDuration("EXPORT_INTERVAL", 24*time.Hour),
			ExportSettleDelay: getEnvAsDuration("EXPORT_SETTLE_DELAY", 5*time.Minute),
			LowStockInterval:  getEnvAsDuration("LOW_STOCK_INTERVAL", 30*time.Minute),
			LowStockThreshold: getEnvAsInt("LOW_STOCK_THRESHOLD", 0),
		},
	}

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		if _, err := toml.DecodeFile(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no usable default
func (c *Config) Validate() error {
	switch c.Server.StoreDriver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Server.StoreDriver)
	}
	if c.Database.TxMaxAttempts < 1 {
		return fmt.Errorf("DB_TX_MAX_ATTEMPTS must be at least 1")
	}
	if c.Jobs.ExportSettleDelay < 0 {
		return fmt.Errorf("EXPORT_SETTLE_DELAY must not be negative")
	}
	if c.Auth.JWTSecret == "" && c.Auth.JWKSURL == "" {
		return fmt.Errorf("one of JWT_SECRET or JWT_JWKS_URL is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
