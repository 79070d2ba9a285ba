// Package config provides configuration management for the derivation server.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/recist-derivation-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no Postgres instance and persists results to a local SQLite
// file instead.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for data files

	// Derivation rule settings
	Derivation domain.DerivationConfig

	// Worker settings
	MaxConcurrentSubjects int

	// HTTP settings
	HTTPPort    int
	RequestWait time.Duration // How long a derivation request may run

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".recist-derivation")

	return &LiteConfig{
		DataDir:               dataDir,
		Derivation:            domain.DefaultDerivationConfig(),
		MaxConcurrentSubjects: 8,
		HTTPPort:              8080,
		RequestWait:           5 * time.Minute,
		LogLevel:              "info",
		LogFormat:             "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	// Data directory
	if v := os.Getenv("RECIST_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Rule settings
	if v := os.Getenv("RECIST_VERSION"); v != "" {
		cfg.Derivation.RECISTVersion = domain.RECISTVersion(v)
	}
	if v := os.Getenv("RECIST_BASELINE_METHOD"); v != "" {
		cfg.Derivation.BaselineMethod = domain.BaselineMethod(v)
	}
	if v := os.Getenv("RECIST_NADIR_EXCLUDE_BASELINE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Derivation.NadirExcludeBaseline = b
		}
	}
	if v := os.Getenv("RECIST_APPLY_ENAWORU_RULE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Derivation.ApplyEnaworuRule = b
		}
	}
	if v := os.Getenv("RECIST_CONFIRMATION_WINDOW_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Derivation.ConfirmationWindowDays = n
		}
	}
	if v := os.Getenv("RECIST_SD_MIN_DURATION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Derivation.SDMinDurationDays = n
		}
	}

	// Workers
	if v := os.Getenv("RECIST_MAX_CONCURRENT_SUBJECTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConcurrentSubjects = n
		}
	}

	// HTTP
	if v := os.Getenv("RECIST_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}
	if v := os.Getenv("RECIST_REQUEST_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestWait = d
		}
	}

	// Logging
	if v := os.Getenv("RECIST_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("RECIST_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// LiteManager adapts a LiteConfig to the domain.ConfigManager interface so
// the HTTP server can run without the full Viper configuration.
type LiteManager struct {
	config *domain.Config
}

// NewLiteManager builds a config manager from a lite configuration.
func NewLiteManager(c *LiteConfig) *LiteManager {
	return &LiteManager{config: &domain.Config{
		Server: domain.ServerConfig{
			Host:         "0.0.0.0",
			Port:         c.HTTPPort,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: c.RequestWait,
			IdleTimeout:  120 * time.Second,
		},
		Derivation: c.Derivation,
		Logging: domain.LoggingConfig{
			Level:  c.LogLevel,
			Format: c.LogFormat,
			Output: "stdout",
		},
		Workers: domain.WorkerConfig{
			MaxConcurrentSubjects: c.MaxConcurrentSubjects,
		},
	}}
}

// GetConfig returns the complete configuration
func (m *LiteManager) GetConfig() *domain.Config { return m.config }

// GetServerConfig returns server configuration
func (m *LiteManager) GetServerConfig() *domain.ServerConfig { return &m.config.Server }

// GetDatabaseConfig returns database configuration; empty in lite mode
func (m *LiteManager) GetDatabaseConfig() *domain.DatabaseConfig { return &m.config.Database }

// GetDerivationConfig returns the default rule configuration
func (m *LiteManager) GetDerivationConfig() domain.DerivationConfig { return m.config.Derivation }

// Validate validates the lite configuration
func (m *LiteManager) Validate() error {
	if m.config.Server.Port <= 0 || m.config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", m.config.Server.Port)
	}
	if m.config.Workers.MaxConcurrentSubjects <= 0 {
		return fmt.Errorf("workers must be positive, got %d", m.config.Workers.MaxConcurrentSubjects)
	}
	return m.config.Derivation.Validate()
}

// ResultsDBPath returns the path to the results SQLite database.
func (c *LiteConfig) ResultsDBPath() string {
	return filepath.Join(c.DataDir, "results.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}
