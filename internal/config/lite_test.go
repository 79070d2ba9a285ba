package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/recist-derivation-server/internal/domain"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	if cfg.Derivation.RECISTVersion != domain.RECIST11 {
		t.Errorf("expected RECIST 1.1 default, got %s", cfg.Derivation.RECISTVersion)
	}
	if cfg.Derivation.ConfirmationWindowDays != 28 {
		t.Errorf("expected 28-day confirmation window, got %d", cfg.Derivation.ConfirmationWindowDays)
	}
	if cfg.MaxConcurrentSubjects != 8 {
		t.Errorf("expected 8 concurrent subjects, got %d", cfg.MaxConcurrentSubjects)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.HTTPPort)
	}
	if err := cfg.Derivation.Validate(); err != nil {
		t.Errorf("default rule config should validate: %v", err)
	}
}

func TestLoadLiteConfigFromEnv(t *testing.T) {
	t.Setenv("RECIST_DATA_DIR", "/tmp/recist-test")
	t.Setenv("RECIST_VERSION", "1.0")
	t.Setenv("RECIST_BASELINE_METHOD", "FIRST")
	t.Setenv("RECIST_APPLY_ENAWORU_RULE", "true")
	t.Setenv("RECIST_CONFIRMATION_WINDOW_DAYS", "21")
	t.Setenv("RECIST_MAX_CONCURRENT_SUBJECTS", "4")
	t.Setenv("RECIST_HTTP_PORT", "9090")
	t.Setenv("RECIST_REQUEST_WAIT", "90s")
	t.Setenv("RECIST_LOG_LEVEL", "debug")

	cfg := LoadLiteConfig()

	if cfg.DataDir != "/tmp/recist-test" {
		t.Errorf("expected data dir override, got %s", cfg.DataDir)
	}
	if cfg.Derivation.RECISTVersion != domain.RECIST10 {
		t.Errorf("expected RECIST 1.0, got %s", cfg.Derivation.RECISTVersion)
	}
	if cfg.Derivation.BaselineMethod != domain.FIRST {
		t.Errorf("expected FIRST baseline method, got %s", cfg.Derivation.BaselineMethod)
	}
	if !cfg.Derivation.ApplyEnaworuRule {
		t.Error("expected the alternate PD floor to be enabled")
	}
	if cfg.Derivation.ConfirmationWindowDays != 21 {
		t.Errorf("expected 21-day window, got %d", cfg.Derivation.ConfirmationWindowDays)
	}
	if cfg.MaxConcurrentSubjects != 4 {
		t.Errorf("expected 4 concurrent subjects, got %d", cfg.MaxConcurrentSubjects)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTPPort)
	}
	if cfg.RequestWait != 90*time.Second {
		t.Errorf("expected 90s request wait, got %s", cfg.RequestWait)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug log level, got %s", cfg.LogLevel)
	}
}

func TestLoadLiteConfigIgnoresInvalidValues(t *testing.T) {
	t.Setenv("RECIST_CONFIRMATION_WINDOW_DAYS", "minus-one")
	t.Setenv("RECIST_MAX_CONCURRENT_SUBJECTS", "0")
	t.Setenv("RECIST_HTTP_PORT", "not-a-port")

	cfg := LoadLiteConfig()

	if cfg.Derivation.ConfirmationWindowDays != 28 {
		t.Errorf("invalid window should keep default, got %d", cfg.Derivation.ConfirmationWindowDays)
	}
	if cfg.MaxConcurrentSubjects != 8 {
		t.Errorf("non-positive worker count should keep default, got %d", cfg.MaxConcurrentSubjects)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("invalid port should keep default, got %d", cfg.HTTPPort)
	}
}

func TestLiteConfigPaths(t *testing.T) {
	cfg := DefaultLiteConfig()
	cfg.DataDir = "/data/recist"

	if got := cfg.ResultsDBPath(); got != filepath.Join("/data/recist", "results.db") {
		t.Errorf("unexpected results db path: %s", got)
	}
	if got := cfg.ExportDir(); got != filepath.Join("/data/recist", "exports") {
		t.Errorf("unexpected export dir: %s", got)
	}
}
