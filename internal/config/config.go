package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Veraticus/fintrack/internal/classification"
	"github.com/Veraticus/fintrack/internal/common"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. FINTRACK_DATA_DIR.
const EnvPrefix = "FINTRACK"

// Config holds every tunable of the tracker.
type Config struct {
	Categories CategoriesConfig `mapstructure:"categories"`
	DataDir    string           `mapstructure:"data_dir"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics"`
	Limits     LimitsConfig     `mapstructure:"limits"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Session    SessionConfig    `mapstructure:"session"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	DBPath        string `mapstructure:"db_path"`
	KeepSnapshots int    `mapstructure:"keep_snapshots"`
}

// LimitsConfig holds ledger and import limits.
type LimitsConfig struct {
	DailySpendCap    int64 `mapstructure:"daily_spend_cap"`
	LargeTransaction int64 `mapstructure:"large_transaction"`
	CSVMaxBytes      int64 `mapstructure:"csv_max_bytes"`
	DescriptionMax   int   `mapstructure:"description_max"`
}

// SessionConfig controls session expiry.
type SessionConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig controls password hashing and lockout.
type AuthConfig struct {
	LockoutWindow    time.Duration `mapstructure:"lockout_window"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	PBKDF2Iterations int           `mapstructure:"pbkdf2_iterations"`
}

// AnalyticsConfig tunes anomaly detection and forecasting.
type AnalyticsConfig struct {
	AnomalyThreshold float64 `mapstructure:"anomaly_threshold"`
	ForecastMonths   int     `mapstructure:"forecast_months"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CategoriesConfig holds user keyword rules, checked before the built-in table.
type CategoriesConfig struct {
	Rules classification.Table `mapstructure:"rules"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("storage.backend", "json")
	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.keep_snapshots", 0)
	v.SetDefault("limits.daily_spend_cap", 100000)
	v.SetDefault("limits.description_max", 200)
	v.SetDefault("limits.large_transaction", 50000)
	v.SetDefault("limits.csv_max_bytes", 1<<20)
	v.SetDefault("session.timeout", 30*time.Minute)
	v.SetDefault("auth.max_attempts", 3)
	v.SetDefault("auth.lockout_window", 5*time.Minute)
	v.SetDefault("auth.pbkdf2_iterations", 100000)
	v.SetDefault("analytics.anomaly_threshold", 2.5)
	v.SetDefault("analytics.forecast_months", 3)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads v into a Config, expanding paths and validating the result.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}

	cfg.DataDir = ExpandPath(cfg.DataDir)
	cfg.Storage.DBPath = ExpandPath(cfg.Storage.DBPath)
	if cfg.Storage.Backend == "sqlite" && cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = filepath.Join(cfg.DataDir, "fintrack.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{common.ErrInvalidConfig}, args...)...))
	}

	if c.DataDir == "" {
		bad("data_dir must be set")
	}
	switch c.Storage.Backend {
	case "json", "sqlite":
	default:
		bad("storage.backend must be json or sqlite, got %q", c.Storage.Backend)
	}
	if c.Storage.KeepSnapshots < 0 {
		bad("storage.keep_snapshots cannot be negative")
	}
	if c.Limits.DailySpendCap <= 0 {
		bad("limits.daily_spend_cap must be positive")
	}
	if c.Limits.DescriptionMax <= 0 {
		bad("limits.description_max must be positive")
	}
	if c.Limits.LargeTransaction <= 0 {
		bad("limits.large_transaction must be positive")
	}
	if c.Limits.CSVMaxBytes <= 0 {
		bad("limits.csv_max_bytes must be positive")
	}
	if c.Session.Timeout <= 0 {
		bad("session.timeout must be positive")
	}
	if c.Auth.MaxAttempts <= 0 {
		bad("auth.max_attempts must be positive")
	}
	if c.Auth.LockoutWindow <= 0 {
		bad("auth.lockout_window must be positive")
	}
	if c.Auth.PBKDF2Iterations < 1000 {
		bad("auth.pbkdf2_iterations must be at least 1000")
	}
	if c.Analytics.AnomalyThreshold <= 0 {
		bad("analytics.anomaly_threshold must be positive")
	}
	if c.Analytics.ForecastMonths < 1 {
		bad("analytics.forecast_months must be at least 1")
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		bad("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if len(c.Categories.Rules) > 0 {
		if err := c.Categories.Rules.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// CategoryTable returns the configured rules followed by the built-in table.
func (c *Config) CategoryTable() classification.Table {
	return classification.DefaultTable().Merge(c.Categories.Rules)
}
