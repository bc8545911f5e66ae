package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/eventquery/internal/datekey"
)

// Load reads the YAML config at path and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	// Apply defaults.
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Bus.TimeoutSeconds == 0 {
		cfg.Bus.TimeoutSeconds = 60
	}
	if cfg.Bus.CacheDays == 0 {
		cfg.Bus.CacheDays = 32
	}
	if cfg.Query.EarliestDate == "" {
		cfg.Query.EarliestDate = "2017-02-17"
	}
	if cfg.Uploader.Workers == 0 {
		cfg.Uploader.Workers = 10
	}
	if cfg.Uploader.QueueDepth == 0 {
		cfg.Uploader.QueueDepth = 1024
	}
	return &cfg, nil
}

// Validate checks the fields that have no workable default.
func Validate(cfg *Config) error {
	if cfg.Server.ServiceBase == "" {
		return fmt.Errorf("server.service_base is required")
	}
	if cfg.Bus.Base == "" {
		return fmt.Errorf("bus.base is required")
	}
	if cfg.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	if _, err := datekey.Parse(cfg.Query.EarliestDate); err != nil {
		return fmt.Errorf("query.earliest_date: %w", err)
	}
	if cfg.Allowlist.URL == "" && cfg.Allowlist.File == "" {
		return fmt.Errorf("allowlist.url or allowlist.file is required")
	}
	return nil
}
