package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// isolate points HOME and the working directory at empty temp dirs and
// clears every variable Load reads.
func isolate(t *testing.T) (home string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())
	for _, k := range []string{
		"PANE_TOGGLER_MUX", "PANE_TOGGLER_SPLIT", "PANE_TOGGLER_TARGET",
		"PANE_TOGGLER_WATCH_INTERVAL", "PANE_TOGGLER_SOCKET", "PANE_TOGGLER_PIPE_PREFIX",
		"PANE_TOGGLER_MAX_MESSAGE_BYTES", "PANE_TOGGLER_HISTORY_DB", "PANE_TOGGLER_HISTORY_TTL",
		"PANE_TOGGLER_LOG_LEVEL", "PANE_TOGGLER_LOG_FILE",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_HEADERS",
	} {
		t.Setenv(k, "")
	}
	return home
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Split != "vertical" {
		t.Errorf("Split: got %q, want %q", cfg.Split, "vertical")
	}
	if cfg.PipePrefix != "toggler::" {
		t.Errorf("PipePrefix: got %q, want %q", cfg.PipePrefix, "toggler::")
	}
	if cfg.MaxMessageBytes != 64*1024 {
		t.Errorf("MaxMessageBytes: got %d, want %d", cfg.MaxMessageBytes, 64*1024)
	}
	if cfg.WatchInterval != "1s" {
		t.Errorf("WatchInterval: got %q, want %q", cfg.WatchInterval, "1s")
	}
	if cfg.HistoryDB != "" {
		t.Errorf("HistoryDB: got %q, want journal disabled by default", cfg.HistoryDB)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConfigFile != "" {
		t.Errorf("ConfigFile: got %q, want empty", cfg.ConfigFile)
	}
	if cfg.WatchIntervalDuration != time.Second {
		t.Errorf("WatchIntervalDuration: got %s, want 1s", cfg.WatchIntervalDuration)
	}
	if cfg.HistoryTTLDuration != 168*time.Hour {
		t.Errorf("HistoryTTLDuration: got %s, want 168h", cfg.HistoryTTLDuration)
	}
	if cfg.Level != log.InfoLevel {
		t.Errorf("Level: got %s, want info", cfg.Level)
	}
}

func TestLoad_FileFromCurrentDirectory(t *testing.T) {
	isolate(t)
	data := []byte(`
mux: tmux
split: horizontal
target: "work:1"
watch_interval: 250ms
pipe_prefix: "pt::"
max_message_bytes: 1024
history_db: history.db
log_level: debug
otel_endpoint: http://collector:4318
`)
	if err := os.WriteFile(".pane-toggler.yaml", data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConfigFile != ".pane-toggler.yaml" {
		t.Errorf("ConfigFile: got %q", cfg.ConfigFile)
	}
	if cfg.Mux != "tmux" || cfg.Split != "horizontal" || cfg.Target != "work:1" {
		t.Errorf("host settings: %+v", cfg)
	}
	if cfg.WatchIntervalDuration != 250*time.Millisecond {
		t.Errorf("WatchIntervalDuration: got %s", cfg.WatchIntervalDuration)
	}
	if cfg.PipePrefix != "pt::" || cfg.MaxMessageBytes != 1024 {
		t.Errorf("pipe settings: prefix=%q max=%d", cfg.PipePrefix, cfg.MaxMessageBytes)
	}
	if cfg.HistoryDB != "history.db" {
		t.Errorf("HistoryDB: got %q", cfg.HistoryDB)
	}
	if cfg.Level != log.DebugLevel {
		t.Errorf("Level: got %s", cfg.Level)
	}
	if cfg.OTELEndpoint != "http://collector:4318" {
		t.Errorf("OTELEndpoint: got %q", cfg.OTELEndpoint)
	}
	// Unset keys keep their defaults.
	if cfg.HistoryTTL != "168h" {
		t.Errorf("HistoryTTL: got %q", cfg.HistoryTTL)
	}
}

func TestLoad_FileFromHomeConfig(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".config", "pane-toggler")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("history_db: ~/state/history.db\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ConfigFile != filepath.Join(dir, "config.yaml") {
		t.Errorf("ConfigFile: got %q", cfg.ConfigFile)
	}
	if want := filepath.Join(home, "state", "history.db"); cfg.HistoryDB != want {
		t.Errorf("HistoryDB: got %q, want %q", cfg.HistoryDB, want)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	if err := os.WriteFile(".pane-toggler.yaml", []byte("mux: zellij\nlog_level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PANE_TOGGLER_MUX", "tmux")
	t.Setenv("PANE_TOGGLER_WATCH_INTERVAL", "off")
	t.Setenv("PANE_TOGGLER_MAX_MESSAGE_BYTES", "2048")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "Authorization=Basic abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mux != "tmux" {
		t.Errorf("Mux: got %q, want env value", cfg.Mux)
	}
	if cfg.Level != log.DebugLevel {
		t.Errorf("Level: got %s, want file value", cfg.Level)
	}
	if cfg.WatchIntervalDuration != 0 {
		t.Errorf("WatchIntervalDuration: got %s, want disabled", cfg.WatchIntervalDuration)
	}
	if cfg.MaxMessageBytes != 2048 {
		t.Errorf("MaxMessageBytes: got %d", cfg.MaxMessageBytes)
	}
	if cfg.OTELHeaders != "Authorization=Basic abc" {
		t.Errorf("OTELHeaders: got %q", cfg.OTELHeaders)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "bad yaml", file: "mux: [unterminated\n"},
		{name: "bad watch interval", file: "watch_interval: soon\n"},
		{name: "bad history ttl", env: map[string]string{"PANE_TOGGLER_HISTORY_TTL": "forever"}},
		{name: "bad log level", file: "log_level: chatty\n"},
		{name: "bad split", env: map[string]string{"PANE_TOGGLER_SPLIT": "diagonal"}},
		{name: "bad max message bytes", env: map[string]string{"PANE_TOGGLER_MAX_MESSAGE_BYTES": "lots"}},
		{name: "negative max message bytes", env: map[string]string{"PANE_TOGGLER_MAX_MESSAGE_BYTES": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			if tt.file != "" {
				if err := os.WriteFile(".pane-toggler.yaml", []byte(tt.file), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseDurationOrDisable(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 5 * time.Second},
		{"0", 0},
		{"off", 0},
		{"disable", 0},
		{"2m", 2 * time.Minute},
	}
	for _, tt := range tests {
		got, err := parseDurationOrDisable(tt.in, 5*time.Second)
		if err != nil {
			t.Errorf("parseDurationOrDisable(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDurationOrDisable(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	tests := map[string]string{
		"":              "",
		"~":             "/home/tester",
		"~/x/y.db":      "/home/tester/x/y.db",
		"/abs/path":     "/abs/path",
		"relative/path": "relative/path",
		"~other/path":   "~other/path",
	}
	for in, want := range tests {
		if got := expandHome(in); got != want {
			t.Errorf("expandHome(%q) = %q, want %q", in, got, want)
		}
	}
}
