package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/timvw/pane-toggler/internal/config"
	"github.com/timvw/pane-toggler/internal/mux"
	"github.com/timvw/pane-toggler/internal/pipe"
)

var (
	// Global flags.
	flagMux      string
	flagSocket   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "pane-toggler",
	Short: "Open, close and toggle terminal panes by name",
	Long: `pane-toggler keeps a registry of named command panes inside a terminal
multiplexer session.

Clients send open, close and toggle messages over a local pipe, naming the
pane with an identifier of their choosing. pane-toggler creates or closes the
native pane and answers once the multiplexer has confirmed the change.

Run "pane-toggler serve" inside the session, then drive it with
"pane-toggler toggle <pane_id> -- <cmd> [args...]" or any client that speaks
the pipe protocol.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagMux, "mux", envOrDefault("PANE_TOGGLER_MUX", ""), "terminal multiplexer: tmux, zellij (default: auto-detect)")
	rootCmd.PersistentFlags().StringVar(&flagSocket, "socket", "", "pipe socket path (default: $XDG_RUNTIME_DIR/pane-toggler/pipe.sock)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
}

// loadConfig loads defaults, file and env, then applies global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if flagMux != "" {
		cfg.Mux = flagMux
	}
	if flagSocket != "" {
		cfg.Socket = flagSocket
	}
	if cfg.Socket == "" {
		cfg.Socket = pipe.DefaultSocketPath()
	}
	if flagLogLevel != "" {
		level, err := log.ParseLevel(flagLogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid --log-level %q: %w", flagLogLevel, err)
		}
		cfg.LogLevel = flagLogLevel
		cfg.Level = level
	}
	return cfg, nil
}

// getMultiplexer returns the configured or auto-detected multiplexer.
func getMultiplexer(cfg *config.Config, logger *log.Logger) (mux.Multiplexer, error) {
	return mux.FromName(cfg.Mux, mux.TmuxOptions{
		Split:         cfg.Split,
		Target:        cfg.Target,
		WatchInterval: cfg.WatchIntervalDuration,
		Logger:        logger,
	})
}

// newLogger builds the process logger. With quiet set (the dashboard owns
// the terminal) output goes to cfg.LogFile, or nowhere when that is unset.
// The returned close func releases the log file.
func newLogger(cfg *config.Config, quiet bool) (*log.Logger, func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}

	switch {
	case cfg.LogFile != "":
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o700); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	case quiet:
		w = io.Discard
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "pane-toggler",
		Level:           cfg.Level,
	})
	return logger, closeFn, nil
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
