package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/timvw/pane-toggler/internal/dashboard"
	"github.com/timvw/pane-toggler/internal/events"
	telem "github.com/timvw/pane-toggler/internal/otel"
	"github.com/timvw/pane-toggler/internal/pipe"
	"github.com/timvw/pane-toggler/internal/registry"
	"github.com/timvw/pane-toggler/internal/toggler"
)

var (
	flagDashboard bool
	flagTheme     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pane registry and listen for pipe messages",
	Long: `Run pane-toggler inside a multiplexer session.

serve listens on the pipe socket for open, close and toggle messages and
keeps the registry of named panes for as long as it runs. With --dashboard
it also shows the tracked panes and recent transitions in a terminal UI;
logs then go to log_file, or are dropped when it is not set.

Configuration is loaded from .pane-toggler.yaml or environment variables.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&flagDashboard, "dashboard", false, "show the interactive dashboard")
	serveCmd.Flags().StringVar(&flagTheme, "theme", "dark", "dashboard color theme: dark, light")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger, closeLog, err := newLogger(cfg, flagDashboard)
	if err != nil {
		return err
	}
	defer closeLog()

	if cfg.ConfigFile != "" {
		logger.Info("config loaded", "file", cfg.ConfigFile)
	}

	// Wire build version into OTEL service metadata
	telem.Version = Version

	// Initialize OTEL (no-op if no endpoint configured)
	tel, err := telem.Init(ctx, telem.OTELConfig{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
	})
	if err != nil {
		logger.Warn("otel init failed", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown", "error", err)
		}
	}()
	var metrics *telem.Metrics
	if tel != nil {
		metrics = tel.Metrics
	}

	m, err := getMultiplexer(cfg, logger.WithPrefix("mux"))
	if err != nil {
		return fmt.Errorf("no supported terminal multiplexer found: %w", err)
	}
	if err := m.Start(ctx); err != nil {
		return fmt.Errorf("start %s: %w", m.Name(), err)
	}

	store := events.NewStore(30*time.Minute, 0)
	sinks := []events.Sink{store}
	if cfg.HistoryDB != "" {
		journal, err := events.OpenJournal(ctx, cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer journal.Close()
		sinks = append(sinks, journal)
		if cfg.HistoryTTLDuration > 0 {
			go pruneJournal(ctx, journal, cfg.HistoryTTLDuration, logger)
		}
		logger.Info("history journal", "path", cfg.HistoryDB)
	}

	h := toggler.NewHandler(registry.New(), m, toggler.Options{
		Prefix:  cfg.PipePrefix,
		Logger:  logger.WithPrefix("toggler"),
		Metrics: metrics,
		Sinks:   sinks,
	})
	loop := toggler.NewLoop(h)
	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(ctx) }()

	srv := pipe.NewServer(loop, cfg.Socket, logger.WithPrefix("pipe"))
	srv.MaxMessageBytes = cfg.MaxMessageBytes
	if err := srv.Start(ctx); err != nil {
		cancel()
		<-loopErr
		return fmt.Errorf("pipe server: %w", err)
	}
	logger.Info("serving", "mux", m.Name(), "socket", srv.SocketPath(), "version", Version)

	dashErr := make(chan error, 1)
	if flagDashboard {
		d := &dashboard.Dashboard{
			Source:          loop,
			Events:          store,
			Prefix:          cfg.PipePrefix,
			RefreshInterval: time.Second,
			Theme:           flagTheme,
		}
		go func() { dashErr <- d.Run(ctx) }()
	}

	var runErr error
	dashDone := !flagDashboard
	select {
	case <-ctx.Done():
	case runErr = <-dashErr:
		dashDone = true
	case err := <-loopErr:
		if !errors.Is(err, context.Canceled) {
			runErr = err
		}
		loopErr <- err
	}

	cancel()
	if !dashDone {
		if err := <-dashErr; err != nil && runErr == nil {
			runErr = err
		}
	}
	<-loopErr
	srv.Wait()
	logger.Info("stopped")
	return runErr
}

// pruneJournal drops history older than ttl now and then hourly.
func pruneJournal(ctx context.Context, j *events.Journal, ttl time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		n, err := j.Prune(ctx, time.Now().Add(-ttl))
		if err != nil && ctx.Err() == nil {
			logger.Warn("prune history", "error", err)
		} else if n > 0 {
			logger.Debug("pruned history", "rows", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
