package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"expensetracker/internal/core"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Recurring materialization
	RecurringInterval       time.Duration
	MaterializerConcurrency int

	// Dashboard
	BaseCurrency string
	SnapshotTTL  time.Duration

	LogLevel string

	Catalog core.Catalog
}

var validBackends = []string{"memory", "sqlite", "postgres"}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("port", "8081")
	v.SetDefault("data_backend", "memory")
	v.SetDefault("sqlite_db_path", "./data/expenses.db")
	v.SetDefault("database_url", "")

	v.SetDefault("amqp_url", "")
	v.SetDefault("amqp_exchange", "expenses")
	v.SetDefault("amqp_queue", "expense_created")

	v.SetDefault("google_spreadsheet_id", "")
	v.SetDefault("google_sheet_name", "Expenses")
	v.SetDefault("google_service_account_json", "")
	v.SetDefault("google_service_account_file", "")

	v.SetDefault("recurring_interval", time.Hour)
	v.SetDefault("materializer_concurrency", 1)

	v.SetDefault("base_currency", "")
	v.SetDefault("snapshot_ttl", 5*time.Minute)
	v.SetDefault("log_level", "info")

	def := core.DefaultCatalog()
	v.SetDefault("catalog.categories", toStrings(def.Categories))
	v.SetDefault("catalog.currencies", toStrings(def.Currencies))
	v.SetDefault("catalog.default_currency", string(def.DefaultCurrency))
	rates := make(map[string]any, len(def.Rates))
	for cur, r := range def.Rates {
		rates[strings.ToLower(string(cur))] = r
	}
	v.SetDefault("catalog.rates", rates)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration from the environment and, when CONFIG_FILE is
// set, from that YAML/TOML/JSON file. Environment variables win over the file.
func Load() (*Config, error) {
	v := newViper()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	catalog, err := loadCatalog(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:         v.GetString("port"),
		DataBackend:  strings.ToLower(v.GetString("data_backend")),
		SQLiteDBPath: v.GetString("sqlite_db_path"),
		DatabaseURL:  v.GetString("database_url"),

		AMQPURL:      v.GetString("amqp_url"),
		AMQPExchange: v.GetString("amqp_exchange"),
		AMQPQueue:    v.GetString("amqp_queue"),

		GoogleSpreadsheetID:      v.GetString("google_spreadsheet_id"),
		GoogleSheetName:          v.GetString("google_sheet_name"),
		GoogleServiceAccountJSON: v.GetString("google_service_account_json"),
		GoogleServiceAccountFile: v.GetString("google_service_account_file"),

		RecurringInterval:       v.GetDuration("recurring_interval"),
		MaterializerConcurrency: v.GetInt("materializer_concurrency"),

		BaseCurrency: strings.ToUpper(v.GetString("base_currency")),
		SnapshotTTL:  v.GetDuration("snapshot_ttl"),
		LogLevel:     strings.ToLower(v.GetString("log_level")),

		Catalog: catalog,
	}
	if cfg.BaseCurrency == "" {
		cfg.BaseCurrency = string(catalog.DefaultCurrency)
	}
	return cfg, nil
}

func loadCatalog(v *viper.Viper) (core.Catalog, error) {
	c := core.Catalog{
		DefaultCurrency: core.Currency(strings.ToUpper(v.GetString("catalog.default_currency"))),
		Rates:           make(map[core.Currency]float64),
	}
	for _, name := range splitList(v.GetStringSlice("catalog.categories")) {
		c.Categories = append(c.Categories, core.Category(name))
	}

	rateKeys := make([]string, 0)
	for key := range v.GetStringMap("catalog.rates") {
		rateKeys = append(rateKeys, key)
	}
	sort.Strings(rateKeys)
	for _, key := range rateKeys {
		raw := v.GetString("catalog.rates." + key)
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return core.Catalog{}, fmt.Errorf("catalog rate for %s: %w", strings.ToUpper(key), err)
		}
		c.Rates[core.Currency(strings.ToUpper(key))] = rate
	}

	for _, code := range splitList(v.GetStringSlice("catalog.currencies")) {
		c.Currencies = append(c.Currencies, core.Currency(strings.ToUpper(code)))
	}
	if len(c.Currencies) == 0 {
		for _, key := range rateKeys {
			c.Currencies = append(c.Currencies, core.Currency(strings.ToUpper(key)))
		}
	}
	return c, nil
}

// splitList accepts both real lists and a single comma separated value, which
// is how lists arrive from environment variables.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func toStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" && c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}

	if c.DataBackend == "postgres" {
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

	if c.RecurringInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at least 1 second", c.RecurringInterval))
	} else if c.RecurringInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid recurring interval %v: must be at most 24 hours", c.RecurringInterval))
	}

	if c.MaterializerConcurrency < 1 || c.MaterializerConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid materializer concurrency %d: must be between 1 and 64", c.MaterializerConcurrency))
	}

	if c.SnapshotTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid snapshot TTL %v: must not be negative", c.SnapshotTTL))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if err := c.Catalog.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			errors = append(errors, line)
		}
	} else if !c.Catalog.HasCurrency(core.Currency(c.BaseCurrency)) {
		errors = append(errors, fmt.Sprintf("base currency '%s' is not in the catalog", c.BaseCurrency))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateSheets checks the settings the spreadsheet export needs.
func (c *Config) ValidateSheets() error {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for spreadsheet export")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "GOOGLE_SHEET_NAME is required for spreadsheet export")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for spreadsheet export")
	}
	if len(errors) > 0 {
		return fmt.Errorf("sheets configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ParseLevel maps a LOG_LEVEL value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be one of debug, info, warn, error", s)
	}
}
