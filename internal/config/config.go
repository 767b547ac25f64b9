package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"vatfiling/internal/logger"
)

type Config struct {
	// Storage Configuration
	DatabaseURL    string
	StorageDir     string
	StorageBaseURL string
	GCSBucket      string // when set, objects live in Cloud Storage instead of StorageDir

	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// Batch Configuration
	BatchWorkers   int
	FetchRateLimit float64
	FetchBurst     int

	// Validation and Mapping Configuration
	RulesFile           string
	LegacyLineMapping   bool
	LegacyPayableAmount decimal.Decimal
	ReportFormat        string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the configuration from the environment and, when
// VATFILING_CONFIG names one, a config file. Environment variables win.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	if file := v.GetString("VATFILING_CONFIG"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	payable, err := decimal.NewFromString(v.GetString("LEGACY_PAYABLE_AMOUNT"))
	if err != nil {
		return nil, fmt.Errorf("LEGACY_PAYABLE_AMOUNT: %w", err)
	}

	config := &Config{
		DatabaseURL:          v.GetString("DATABASE_URL"),
		StorageDir:           v.GetString("STORAGE_DIR"),
		StorageBaseURL:       strings.TrimRight(v.GetString("STORAGE_BASE_URL"), "/"),
		GCSBucket:            v.GetString("GCS_BUCKET"),
		GoogleSheetURL:       v.GetString("GOOGLE_SHEET_URL"),
		GoogleSheetWorksheet: v.GetString("GOOGLE_SHEET_WORKSHEET"),
		BatchWorkers:         v.GetInt("BATCH_WORKERS"),
		FetchRateLimit:       v.GetFloat64("FETCH_RATE_LIMIT"),
		FetchBurst:           v.GetInt("FETCH_BURST"),
		RulesFile:            v.GetString("VAT_RULES_FILE"),
		LegacyLineMapping:    v.GetBool("LEGACY_LINE_MAPPING"),
		LegacyPayableAmount:  payable,
		ReportFormat:         strings.ToLower(v.GetString("REPORT_FORMAT")),
		LogLevel:             v.GetString("LOG_LEVEL"),
		LogFormat:            v.GetString("LOG_FORMAT"),
		LogTimeFormat:        v.GetString("LOG_TIME_FORMAT"),
		LogOutput:            v.GetString("LOG_OUTPUT"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("STORAGE_DIR", "data/objects")
	v.SetDefault("STORAGE_BASE_URL", "https://objects.local/vat-bucket")
	v.SetDefault("GOOGLE_SHEET_WORKSHEET", "VAT Return")
	v.SetDefault("BATCH_WORKERS", 12)
	v.SetDefault("FETCH_RATE_LIMIT", 10)
	v.SetDefault("FETCH_BURST", 20)
	v.SetDefault("LEGACY_LINE_MAPPING", false)
	v.SetDefault("LEGACY_PAYABLE_AMOUNT", "9550")
	v.SetDefault("REPORT_FORMAT", "xlsx")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00")
	v.SetDefault("LOG_OUTPUT", "stderr")
}

func (c *Config) validate() error {
	if c.BatchWorkers < 1 {
		return fmt.Errorf("BATCH_WORKERS must be at least 1, got %d", c.BatchWorkers)
	}
	if c.FetchRateLimit <= 0 {
		return fmt.Errorf("FETCH_RATE_LIMIT must be positive, got %v", c.FetchRateLimit)
	}
	if c.FetchBurst < 1 {
		return fmt.Errorf("FETCH_BURST must be at least 1, got %d", c.FetchBurst)
	}
	if c.StorageDir == "" {
		return fmt.Errorf("STORAGE_DIR is required")
	}
	if c.StorageBaseURL == "" {
		return fmt.Errorf("STORAGE_BASE_URL is required")
	}
	switch c.ReportFormat {
	case "xlsx", "pdf":
	default:
		return fmt.Errorf("REPORT_FORMAT must be xlsx or pdf, got %q", c.ReportFormat)
	}
	if c.LegacyPayableAmount.IsNegative() {
		return fmt.Errorf("LEGACY_PAYABLE_AMOUNT must not be negative")
	}
	return nil
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
