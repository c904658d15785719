// Package config loads pane-toggler configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (PANE_TOGGLER_*)
//  2. Config file
//  3. Built-in defaults
//
// Config file search order:
//  1. .pane-toggler.yaml in current directory
//  2. ~/.config/pane-toggler/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// Config holds all pane-toggler configuration.
type Config struct {
	// Host
	Mux           string `yaml:"mux"`            // "tmux", "zellij" or empty to auto-detect
	Split         string `yaml:"split"`          // "vertical" (default) or "horizontal"
	Target        string `yaml:"target"`         // tmux target pane/window for new splits
	WatchInterval string `yaml:"watch_interval"` // Go duration string, e.g. "1s"; "off" disables exit polling

	// Pipe
	Socket          string `yaml:"socket"`
	PipePrefix      string `yaml:"pipe_prefix"`
	MaxMessageBytes int    `yaml:"max_message_bytes"`

	// History journal
	HistoryDB  string `yaml:"history_db"`  // SQLite path; empty disables the journal
	HistoryTTL string `yaml:"history_ttl"` // Go duration string, e.g. "168h"

	// Logging
	LogLevel string `yaml:"log_level"` // debug, info, warn, error
	LogFile  string `yaml:"log_file"`

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs, e.g. "Authorization=Basic abc123"

	// Parsed values (not from YAML, set after loading)
	WatchIntervalDuration time.Duration `yaml:"-"`
	HistoryTTLDuration    time.Duration `yaml:"-"`
	Level                 log.Level     `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Split:           "vertical",
		WatchInterval:   "1s",
		PipePrefix:      "toggler::",
		MaxMessageBytes: 64 * 1024,
		HistoryTTL:      "168h",
		LogLevel:        "info",
	}
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	cfg := Defaults()

	if path, data, err := findConfigFile(); err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, &fileCfg)
	}

	if err := mergeEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish validates cfg and fills in the parsed fields.
func (cfg *Config) finish() error {
	var err error
	cfg.WatchIntervalDuration, err = parseDurationOrDisable(cfg.WatchInterval, time.Second)
	if err != nil {
		return fmt.Errorf("invalid watch interval %q: %w", cfg.WatchInterval, err)
	}
	cfg.HistoryTTLDuration, err = parseDurationOrDisable(cfg.HistoryTTL, 7*24*time.Hour)
	if err != nil {
		return fmt.Errorf("invalid history TTL %q: %w", cfg.HistoryTTL, err)
	}
	cfg.Level, err = log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	switch cfg.Split {
	case "vertical", "horizontal":
	default:
		return fmt.Errorf("invalid split %q: want vertical or horizontal", cfg.Split)
	}
	if cfg.MaxMessageBytes <= 0 {
		return fmt.Errorf("invalid max_message_bytes %d: must be positive", cfg.MaxMessageBytes)
	}
	cfg.HistoryDB = expandHome(cfg.HistoryDB)
	cfg.LogFile = expandHome(cfg.LogFile)
	cfg.Socket = expandHome(cfg.Socket)
	return nil
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	if data, err := os.ReadFile(".pane-toggler.yaml"); err == nil {
		return ".pane-toggler.yaml", data, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "pane-toggler", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.Mux != "" {
		cfg.Mux = file.Mux
	}
	if file.Split != "" {
		cfg.Split = file.Split
	}
	if file.Target != "" {
		cfg.Target = file.Target
	}
	if file.WatchInterval != "" {
		cfg.WatchInterval = file.WatchInterval
	}
	if file.Socket != "" {
		cfg.Socket = file.Socket
	}
	if file.PipePrefix != "" {
		cfg.PipePrefix = file.PipePrefix
	}
	if file.MaxMessageBytes > 0 {
		cfg.MaxMessageBytes = file.MaxMessageBytes
	}
	if file.HistoryDB != "" {
		cfg.HistoryDB = file.HistoryDB
	}
	if file.HistoryTTL != "" {
		cfg.HistoryTTL = file.HistoryTTL
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.LogFile != "" {
		cfg.LogFile = file.LogFile
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) error {
	if v := os.Getenv("PANE_TOGGLER_MUX"); v != "" {
		cfg.Mux = v
	}
	if v := os.Getenv("PANE_TOGGLER_SPLIT"); v != "" {
		cfg.Split = v
	}
	if v := os.Getenv("PANE_TOGGLER_TARGET"); v != "" {
		cfg.Target = v
	}
	if v := os.Getenv("PANE_TOGGLER_WATCH_INTERVAL"); v != "" {
		cfg.WatchInterval = v
	}
	if v := os.Getenv("PANE_TOGGLER_SOCKET"); v != "" {
		cfg.Socket = v
	}
	if v := os.Getenv("PANE_TOGGLER_PIPE_PREFIX"); v != "" {
		cfg.PipePrefix = v
	}
	if v := os.Getenv("PANE_TOGGLER_MAX_MESSAGE_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PANE_TOGGLER_MAX_MESSAGE_BYTES %q: %w", v, err)
		}
		cfg.MaxMessageBytes = n
	}
	if v := os.Getenv("PANE_TOGGLER_HISTORY_DB"); v != "" {
		cfg.HistoryDB = v
	}
	if v := os.Getenv("PANE_TOGGLER_HISTORY_TTL"); v != "" {
		cfg.HistoryTTL = v
	}
	if v := os.Getenv("PANE_TOGGLER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("PANE_TOGGLER_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}
	return nil
}

// parseDurationOrDisable parses a duration string. "0", "off", "disable" return 0.
// Empty string returns the fallback value.
func parseDurationOrDisable(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	if s == "0" || s == "off" || s == "disable" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
