package domain

import (
	"fmt"
	"time"
)

// DerivationConfig is the immutable rule configuration threaded through every
// derivation component. It is passed by value so no component can mutate the
// rules mid-run; two runs with equal configs and inputs produce byte-identical
// output.
type DerivationConfig struct {
	RECISTVersion  RECISTVersion  `json:"recist_version" mapstructure:"recist_version"`
	BaselineMethod BaselineMethod `json:"baseline_method" mapstructure:"baseline_method"`

	// NadirExcludeBaseline removes the baseline timepoint from nadir
	// eligibility; the nadir then accumulates from the second timepoint on.
	NadirExcludeBaseline bool `json:"nadir_exclude_baseline" mapstructure:"nadir_exclude_baseline"`

	// ApplyEnaworuRule enables the alternate 25mm absolute-sum floor for the
	// percent-increase PD branch, allowing progression calls from small
	// nadirs that cannot produce a 5mm absolute increase.
	ApplyEnaworuRule bool `json:"apply_enaworu_rule" mapstructure:"apply_enaworu_rule"`

	ConfirmationWindowDays int `json:"confirmation_window_days" mapstructure:"confirmation_window_days"`
	SDMinDurationDays      int `json:"sd_min_duration_days" mapstructure:"sd_min_duration_days"`
}

// DefaultDerivationConfig returns the protocol defaults: RECIST 1.1,
// pre-treatment baseline, baseline included in the nadir, 28-day confirmation
// window and 6-week minimum SD duration.
func DefaultDerivationConfig() DerivationConfig {
	return DerivationConfig{
		RECISTVersion:          RECIST11,
		BaselineMethod:         PRETREAT,
		NadirExcludeBaseline:   false,
		ApplyEnaworuRule:       false,
		ConfirmationWindowDays: 28,
		SDMinDurationDays:      42,
	}
}

// Validate ensures the derivation configuration is usable.
func (c DerivationConfig) Validate() error {
	if !c.RECISTVersion.IsValid() {
		return fmt.Errorf("derivation config validation: %w: %q", ErrInvalidRECISTVersion, c.RECISTVersion)
	}

	if !c.BaselineMethod.IsValid() {
		return fmt.Errorf("derivation config validation: %w: %q", ErrInvalidBaselineMethod, c.BaselineMethod)
	}

	if c.ConfirmationWindowDays < 0 {
		return fmt.Errorf("derivation config validation: confirmation window must be >= 0, got %d", c.ConfirmationWindowDays)
	}

	if c.SDMinDurationDays < 0 {
		return fmt.Errorf("derivation config validation: SD minimum duration must be >= 0, got %d", c.SDMinDurationDays)
	}

	return nil
}

// Config represents the main application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Derivation DerivationConfig `mapstructure:"derivation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Workers    WorkerConfig     `mapstructure:"workers"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	RateBurst    int           `mapstructure:"rate_burst"`
}

// DatabaseConfig represents database connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// WorkerConfig bounds the parallel per-subject fan-out.
type WorkerConfig struct {
	MaxConcurrentSubjects int `mapstructure:"max_concurrent_subjects"`
}

// ConfigManager defines access to application configuration.
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	GetDerivationConfig() DerivationConfig
	Validate() error
}
