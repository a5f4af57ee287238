package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Record store
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Document numbers
	DocSeqBackend string
	RedisURL      string

	// Identity
	JWTSecret string
	JWTIssuer string

	// Attachments
	GCSBucket        string
	AttachmentURLTTL time.Duration

	// Google Sheets export
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Ledger
	ImportBatchSize int
	OrgName         string
	BalanceCacheTTL time.Duration
	LogLevel        string
}

var (
	validBackends       = []string{"memory", "sqlite", "postgres"}
	validDocSeqBackends = []string{"store", "redis"}
)

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/livrocaixa.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "livrocaixa"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_changes"),

		DocSeqBackend: getEnv("DOCSEQ_BACKEND", "store"),
		RedisURL:      getEnv("REDIS_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", ""),

		GCSBucket:        getEnv("GCS_BUCKET", ""),
		AttachmentURLTTL: getEnvDuration("ATTACHMENT_URL_TTL", 10*time.Minute),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Consolidado"),

		ImportBatchSize: getEnvInt("IMPORT_BATCH_SIZE", 200),
		OrgName:         getEnv("ORG_NAME", "Financeiro Igreja"),
		BalanceCacheTTL: getEnvDuration("BALANCE_CACHE_TTL", 5*time.Minute),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks every setting and returns all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if !slices.Contains(validDocSeqBackends, c.DocSeqBackend) {
		errors = append(errors, fmt.Sprintf("invalid doc number backend '%s': must be one of %v", c.DocSeqBackend, validDocSeqBackends))
	}
	if c.DocSeqBackend == "redis" && c.RedisURL == "" {
		errors = append(errors, "REDIS_URL is required when DOCSEQ_BACKEND is redis")
	}

	if strings.TrimSpace(c.JWTSecret) == "" {
		errors = append(errors, "JWT_SECRET is required")
	} else if len(c.JWTSecret) < 16 {
		errors = append(errors, "JWT_SECRET must be at least 16 characters")
	}

	if c.AttachmentURLTTL < time.Minute || c.AttachmentURLTTL > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid attachment URL TTL %v: must be between 1 minute and 7 days", c.AttachmentURLTTL))
	}

	if c.ImportBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid import batch size %d: must be at least 1", c.ImportBatchSize))
	} else if c.ImportBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid import batch size %d: must be at most 1000", c.ImportBatchSize))
	}

	if c.BalanceCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid balance cache TTL %v: must not be negative", c.BalanceCacheTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker checks the settings the ledger worker needs.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the worker")
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
