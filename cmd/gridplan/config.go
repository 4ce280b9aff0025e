package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config holds gridplan CLI configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	LogLevel     string        `json:"log_level"`
	LogFormat    string        `json:"log_format"` // text | json
	PollInterval time.Duration `json:"-"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:     "info",
		LogFormat:    "text",
		PollInterval: 60 * time.Second,
	}
}

func gridplanDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gridplan"
	}
	return filepath.Join(home, ".gridplan")
}

func settingsPath() string {
	return filepath.Join(gridplanDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("GRIDPLAN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GRIDPLAN_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("GRIDPLAN_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = d
		}
	}

	return cfg
}
