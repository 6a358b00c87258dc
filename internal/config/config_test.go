package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen != ":9560" {
		t.Errorf("Listen = %q, want :9560", cfg.Listen)
	}
	if cfg.HTTPListen != ":9561" {
		t.Errorf("HTTPListen = %q, want :9561", cfg.HTTPListen)
	}
	if cfg.DatabasePath != "license-inventory.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if !cfg.EnableSwagger || !cfg.EnableMetrics {
		t.Errorf("swagger/metrics should default to enabled")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := "listen: \":7000\"\ndatabase: /var/lib/inv.db\napi_secret: s3cret\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LICINV_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen != ":7000" {
		t.Errorf("Listen = %q, want :7000", cfg.Listen)
	}
	if cfg.DatabasePath != "/var/lib/inv.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.ApiSecret != "s3cret" {
		t.Errorf("ApiSecret = %q", cfg.ApiSecret)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug from env", cfg.LogLevel)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Errorf("Load of a missing explicit file should fail")
	}
}
