package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JM200322/proyecto-ocr-odoo/internal/logger"
)

// OdooInstance holds the connection settings for one Odoo deployment.
type OdooInstance struct {
	URL      string
	Database string
	Username string
	Password string
}

type Config struct {
	// OCR.space Configuration
	OCRSpaceAPIKey string
	OCRSpaceURL    string
	OCRLanguage    string
	OCRTimeout     time.Duration
	OCRMaxRetries  int
	OCRBackoffBase time.Duration

	// Fallback Providers
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
	TesseractEnabled      bool

	// HTTP Server Configuration
	HTTPAddr           string
	HTTPRequestTimeout time.Duration
	MaxUploadBytes     int64

	// Persistence Configuration
	DatabaseURL   string
	LookupMaxAge  time.Duration
	RetentionDays int

	// Cache Configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Odoo Configuration
	OdooInstances map[string]OdooInstance
	OdooTimeout   time.Duration

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OCRSpaceAPIKey: getEnv("OCR_SPACE_API_KEY", "helloworld"),
		OCRSpaceURL:    getEnv("OCR_SPACE_URL", "https://api.ocr.space/parse/image"),
		OCRLanguage:    getEnv("OCR_LANGUAGE", "spa"),
		OCRTimeout:     getEnvDuration("OCR_TIMEOUT", 30*time.Second),
		OCRMaxRetries:  getEnvInt("OCR_MAX_RETRIES", 3),
		OCRBackoffBase: getEnvDuration("OCR_BACKOFF_BASE", 2*time.Second),

		GoogleCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS", ""),
		TesseractEnabled:      getEnvBool("TESSERACT_ENABLED", false),

		HTTPAddr:           getEnv("HTTP_ADDR", ":5000"),
		HTTPRequestTimeout: getEnvDuration("HTTP_REQUEST_TIMEOUT", 90*time.Second),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 10*1024*1024)),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		LookupMaxAge:  getEnvDuration("HASH_LOOKUP_MAX_AGE", 7*24*time.Hour),
		RetentionDays: getEnvInt("HISTORY_RETENTION_DAYS", 90),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 24*time.Hour),

		OdooTimeout: getEnvDuration("ODOO_TIMEOUT", 20*time.Second),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		LogTimeFormat: getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:     getEnv("LOG_OUTPUT", "stdout"),
	}

	config.OdooInstances = loadOdooInstances()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// loadOdooInstances builds the named instance map from the environment.
// The unprefixed ODOO_* variables define "production"; ODOO_STAGING_* adds
// an optional "staging" entry.
func loadOdooInstances() map[string]OdooInstance {
	instances := make(map[string]OdooInstance)

	if url := getEnv("ODOO_URL", ""); url != "" {
		instances["production"] = OdooInstance{
			URL:      url,
			Database: getEnv("ODOO_DB", ""),
			Username: getEnv("ODOO_USERNAME", ""),
			Password: getEnv("ODOO_PASSWORD", ""),
		}
	}
	if url := getEnv("ODOO_STAGING_URL", ""); url != "" {
		instances["staging"] = OdooInstance{
			URL:      url,
			Database: getEnv("ODOO_STAGING_DB", ""),
			Username: getEnv("ODOO_STAGING_USERNAME", ""),
			Password: getEnv("ODOO_STAGING_PASSWORD", ""),
		}
	}

	return instances
}

func (c *Config) validate() error {
	if c.OCRSpaceURL == "" {
		return fmt.Errorf("OCR_SPACE_URL is required")
	}
	if c.OCRSpaceAPIKey == "" {
		return fmt.Errorf("OCR_SPACE_API_KEY is required")
	}
	if c.OCRMaxRetries < 1 {
		return fmt.Errorf("OCR_MAX_RETRIES must be at least 1")
	}
	if c.OCRTimeout <= 0 {
		return fmt.Errorf("OCR_TIMEOUT must be positive")
	}
	if c.OCRBackoffBase <= 0 {
		return fmt.Errorf("OCR_BACKOFF_BASE must be positive")
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	for name, inst := range c.OdooInstances {
		if inst.Database == "" || inst.Username == "" {
			return fmt.Errorf("odoo instance %q is missing database or username", name)
		}
	}
	return nil
}

// HasVisionCredentials reports whether a Google Vision fallback can be built.
func (c *Config) HasVisionCredentials() bool {
	return c.GoogleCredentialsFile != "" || c.GoogleCredentialsJSON != ""
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
