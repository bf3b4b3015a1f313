// Package config loads config.yml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the server and CLI.
type Config struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Uploader       string        `yaml:"uploader"`
	UploadTask     int           `yaml:"upload_task"`
	DownloadTask   int           `yaml:"download_task"`
	UploadRetry    int           `yaml:"upload_retry"`
	ChunkSize      int64         `yaml:"chunk_size"`
	CustomURL      string        `yaml:"custom_url"`
	CustomReferer  string        `yaml:"custom_referer"`
	Password       string        `yaml:"password"`
	DataDir        string        `yaml:"data_dir"`
	Proxy          string        `yaml:"proxy"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	HistoryLimit   int           `yaml:"history_limit"`
}

func Default() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           4719,
		Uploader:       "custom",
		UploadTask:     10,
		DownloadTask:   5,
		UploadRetry:    10,
		ChunkSize:      1 << 20,
		DataDir:        "data",
		RequestTimeout: 120 * time.Second,
		HistoryLimit:   1000,
	}
}

// Load reads path, writing a default file first if none exists. Fields
// missing from the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := Write(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Write stores cfg at path as YAML.
func Write(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("MIXFILE_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("MIXFILE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MIXFILE_PORT: %w", err)
		}
		c.Port = port
	}
	if v := os.Getenv("MIXFILE_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("MIXFILE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("MIXFILE_PROXY"); v != "" {
		c.Proxy = v
	}
	return nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.UploadTask < 1 || c.DownloadTask < 1 {
		return fmt.Errorf("upload_task and download_task must be positive")
	}
	if c.UploadRetry < 1 {
		return fmt.Errorf("upload_retry must be positive")
	}
	if c.ChunkSize < 0 {
		return fmt.Errorf("chunk_size must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Paths of the files kept under DataDir.
func (c *Config) WebDAVPath() string  { return filepath.Join(c.DataDir, "webdav.mix_dav") }
func (c *Config) HistoryPath() string { return filepath.Join(c.DataDir, "history.mix_list") }
func (c *Config) StatsPath() string   { return filepath.Join(c.DataDir, "stats.db") }
func (c *Config) CachePath() string   { return filepath.Join(c.DataDir, "index_cache.db") }
