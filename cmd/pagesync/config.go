package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all pagesync configuration.
type Config struct {
	Listen     string           `yaml:"listen"`
	SettingsDB string           `yaml:"settings_db"`
	LogLevel   string           `yaml:"log_level"`
	Observe    ObserveConfig    `yaml:"observe"`
	Translator TranslatorConfig `yaml:"translator"`
	Browser    BrowserConfig    `yaml:"browser"`
	MCP        bool             `yaml:"mcp"`
	// Pages to open at startup, each in its own tab.
	Pages []string `yaml:"pages"`
}

// ObserveConfig tunes observation and highlight timing.
type ObserveConfig struct {
	DebounceWindow time.Duration `yaml:"debounce_window"`
	HoverDebounce  time.Duration `yaml:"hover_debounce"`
	FlashDuration  time.Duration `yaml:"flash_duration"`
}

// TranslatorConfig points at the translation backend.
type TranslatorConfig struct {
	Endpoint  string `yaml:"endpoint"`
	BatchSize int    `yaml:"batch_size"`
}

// BrowserConfig controls headless escalation when loading pages.
type BrowserConfig struct {
	Enabled   bool   `yaml:"enabled"`
	RemoteURL string `yaml:"remote_url"`
}

func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = ":8090"
	}
	if c.SettingsDB == "" {
		c.SettingsDB = "pagesync.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Observe.DebounceWindow <= 0 {
		c.Observe.DebounceWindow = 250 * time.Millisecond
	}
	if c.Observe.HoverDebounce <= 0 {
		c.Observe.HoverDebounce = 300 * time.Millisecond
	}
	if c.Observe.FlashDuration <= 0 {
		c.Observe.FlashDuration = time.Second
	}
	if c.Translator.BatchSize <= 0 {
		c.Translator.BatchSize = 16
	}
}

// loadConfig reads a YAML config file. A missing path yields defaults.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.defaults()
	return cfg, nil
}
