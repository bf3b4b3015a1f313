package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_WritesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 4719 || cfg.UploadTask != 10 || cfg.DownloadTask != 5 || cfg.UploadRetry != 10 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config should be written: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again != cfg {
		t.Fatalf("reloaded config differs: %+v vs %+v", again, cfg)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	os.WriteFile(path, []byte("port: 8080\ncustom_url: https://up.example.com\nrequest_timeout: 30s\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 || cfg.CustomURL != "https://up.example.com" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Fatalf("expected 30s timeout, got %v", cfg.RequestTimeout)
	}
	if cfg.Host != "0.0.0.0" || cfg.DownloadTask != 5 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MIXFILE_PORT", "9999")
	t.Setenv("MIXFILE_PASSWORD", "s3cret")
	t.Setenv("MIXFILE_DATA_DIR", "/var/lib/mixfile")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9999 || cfg.Password != "s3cret" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.StatsPath() != filepath.Join("/var/lib/mixfile", "stats.db") {
		t.Fatalf("unexpected stats path %s", cfg.StatsPath())
	}

	t.Setenv("MIXFILE_PORT", "abc")
	if _, err := Load(filepath.Join(t.TempDir(), "config.yml")); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.UploadTask = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero upload_task")
	}
	cfg = Default()
	cfg.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out of range port")
	}
}
