// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	matching, err := cfg.Matching.MatcherConfig()
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/eshaffer321/ledger-reconciler/internal/domain/matcher"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the entire application configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Server        ServerConfig        `yaml:"server"`
	Matching      MatchingConfig      `yaml:"matching"`
	Run           RunConfig           `yaml:"run"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MatchingConfig overrides matcher defaults. Zero values keep the default.
type MatchingConfig struct {
	AmountTolerance       string  `yaml:"amount_tolerance"` // decimal, e.g. "0.01"
	FuzzyTolerancePercent float64 `yaml:"fuzzy_tolerance_percent"`
	DateWindows           []int   `yaml:"date_windows"`
	FuzzyWindowDays       int     `yaml:"fuzzy_window_days"`
	ExtendedWindowDays    int     `yaml:"extended_window_days"`
	SettlementWindowDays  int     `yaml:"settlement_window_days"`
	SettlementTolerance   string  `yaml:"settlement_tolerance"`
	Threshold             float64 `yaml:"threshold"`
	AmbiguityMargin       float64 `yaml:"ambiguity_margin"`
	MinReferenceLength    int     `yaml:"min_reference_length"`
	SubsetPoolSize        int     `yaml:"subset_pool_size"`
}

// RunConfig holds defaults for reconciliation runs
type RunConfig struct {
	Sources                []string `yaml:"sources"`
	LookbackDays           int      `yaml:"lookback_days"`
	Currency               string   `yaml:"currency"`
	PreserveReconciliation *bool    `yaml:"preserve_reconciliation"` // nil means true
	MarkNeedsReview        bool     `yaml:"mark_needs_review"`
	SampleSize             int      `yaml:"sample_size"`
	PageSize               int      `yaml:"page_size"`
}

// Preserve reports whether reconciled records are left alone
func (r RunConfig) Preserve() bool {
	return r.PreserveReconciliation == nil || *r.PreserveReconciliation
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console, json or text
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${RECONCILE_DB_PATH})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			DatabasePath: getEnv("RECONCILE_DB_PATH", "reconcile.db"),
		},
		Server: ServerConfig{
			Port:           getEnvInt("RECONCILE_PORT", 8085),
			AllowedOrigins: getEnvList("RECONCILE_ALLOWED_ORIGINS"),
		},
		Matching: MatchingConfig{
			Threshold: getEnvFloat("RECONCILE_THRESHOLD", 0),
		},
		Run: RunConfig{
			LookbackDays:    getEnvInt("RECONCILE_LOOKBACK_DAYS", 30),
			Currency:        getEnv("RECONCILE_CURRENCY", ""),
			MarkNeedsReview: getEnvBool("RECONCILE_MARK_NEEDS_REVIEW", false),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "console"),
			},
			Metrics: MetricsConfig{
				Enabled: getEnvBool("RECONCILE_METRICS_ENABLED", true),
				Path:    getEnv("RECONCILE_METRICS_PATH", "/metrics"),
			},
		},
	}
	if v := os.Getenv("RECONCILE_PRESERVE_RECONCILIATION"); v != "" {
		preserve := getEnvBool("RECONCILE_PRESERVE_RECONCILIATION", true)
		cfg.Run.PreserveReconciliation = &preserve
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnvFrom("config.yaml")
}

// LoadOrEnvFrom tries to load from specified path, falls back to environment variables
func LoadOrEnvFrom(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

func (c *Config) applyDefaults() {
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "reconcile.db"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8085
	}
	if c.Run.LookbackDays == 0 {
		c.Run.LookbackDays = 30
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "console"
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
}

// MatcherConfig builds the matcher configuration on top of its defaults
func (m MatchingConfig) MatcherConfig() (matcher.Config, error) {
	cfg := matcher.DefaultConfig()

	if m.AmountTolerance != "" {
		tol, err := decimal.NewFromString(m.AmountTolerance)
		if err != nil {
			return cfg, fmt.Errorf("failed to parse amount_tolerance %q: %w", m.AmountTolerance, err)
		}
		cfg.Tolerance.Absolute = tol
		cfg.FuzzyTolerance.Absolute = tol
	}
	if m.SettlementTolerance != "" {
		tol, err := decimal.NewFromString(m.SettlementTolerance)
		if err != nil {
			return cfg, fmt.Errorf("failed to parse settlement_tolerance %q: %w", m.SettlementTolerance, err)
		}
		cfg.SettlementTolerance = tol
	}
	if m.FuzzyTolerancePercent > 0 {
		cfg.FuzzyTolerance.Percent = decimal.NewFromFloat(m.FuzzyTolerancePercent)
	}
	if len(m.DateWindows) > 0 {
		for i := 1; i < len(m.DateWindows); i++ {
			if m.DateWindows[i] < m.DateWindows[i-1] {
				return cfg, fmt.Errorf("date_windows must be ascending, got %v", m.DateWindows)
			}
		}
		cfg.DateWindows = m.DateWindows
	}
	if m.FuzzyWindowDays > 0 {
		cfg.FuzzyWindowDays = m.FuzzyWindowDays
	}
	if m.ExtendedWindowDays > 0 {
		cfg.Subset.ExtendedWindowDays = m.ExtendedWindowDays
	}
	if m.SettlementWindowDays > 0 {
		cfg.SettlementWindowDays = m.SettlementWindowDays
	}
	if m.Threshold > 0 {
		if m.Threshold > 100 {
			return cfg, fmt.Errorf("threshold must be at most 100, got %v", m.Threshold)
		}
		cfg.Threshold = m.Threshold
	}
	if m.AmbiguityMargin > 0 {
		cfg.AmbiguityMargin = m.AmbiguityMargin
	}
	if m.MinReferenceLength > 0 {
		cfg.MinReferenceLength = m.MinReferenceLength
	}
	if m.SubsetPoolSize > 0 {
		cfg.Subset.PoolSize = m.SubsetPoolSize
	}

	return cfg, nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return result
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if result, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvList splits a comma separated variable
func getEnvList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
