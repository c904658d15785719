package mux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/timvw/pane-toggler/internal/model"
)

// tagOption is the pane-scoped tmux user option holding the client pane id.
const tagOption = "@pane_toggler_id"

// TmuxOptions configures where and how tmux panes are created.
type TmuxOptions struct {
	// Split is "vertical" (default, new pane below) or "horizontal" (new pane right).
	Split string
	// Target is the pane or window to split. Empty means the current one.
	Target string
	// WatchInterval is how often pane liveness is polled to notice commands
	// that exited on their own. Zero disables polling.
	WatchInterval time.Duration
	// Logger receives diagnostics. Nil discards them.
	Logger *log.Logger
}

type runFunc func(ctx context.Context, args ...string) (string, error)

// Tmux implements the Multiplexer interface for tmux.
type Tmux struct {
	opts   TmuxOptions
	log    *log.Logger
	run    runFunc
	events *eventQueue

	mu      sync.Mutex
	tracked map[string]string // handle -> tag
}

// NewTmux creates a new tmux multiplexer.
func NewTmux(opts TmuxOptions) *Tmux {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Tmux{
		opts:    opts,
		log:     logger,
		run:     execTmux,
		events:  newEventQueue(),
		tracked: make(map[string]string),
	}
}

// Name returns "tmux".
func (t *Tmux) Name() string {
	return "tmux"
}

// Events returns the host notification stream.
func (t *Tmux) Events() <-chan Event {
	return t.events.out
}

// Start begins event delivery and, if configured, exit polling.
func (t *Tmux) Start(ctx context.Context) error {
	go t.events.run(ctx)
	if t.opts.WatchInterval > 0 {
		go t.watch(ctx, t.opts.WatchInterval)
	}
	return nil
}

// OpenCommandPane splits a new detached pane running spec.
// split-window -P prints the new pane id, so the handle is known as soon as
// the command returns; the opened event is still delivered asynchronously.
func (t *Tmux) OpenCommandPane(ctx context.Context, spec model.SpawnSpec, tag string) error {
	if spec.Cmd == "" {
		return fmt.Errorf("tmux split-window: empty command")
	}

	args := []string{"split-window", "-d", "-P", "-F", "#{pane_id}"}
	if strings.EqualFold(t.opts.Split, "horizontal") {
		args = append(args, "-h")
	} else {
		args = append(args, "-v")
	}
	if t.opts.Target != "" {
		args = append(args, "-t", t.opts.Target)
	}
	if spec.Cwd != "" {
		args = append(args, "-c", spec.Cwd)
	}
	args = append(args, spec.Cmd)
	args = append(args, spec.Args...)

	out, err := t.run(ctx, args...)
	if err != nil {
		return fmt.Errorf("tmux split-window: %w", err)
	}
	handle := strings.TrimSpace(out)
	if handle == "" {
		return fmt.Errorf("tmux split-window: no pane id returned")
	}

	// The tag lets `list` show which panes are ours; losing it is harmless.
	if _, err := t.run(ctx, "set-option", "-p", "-t", handle, tagOption, tag); err != nil {
		t.log.Debug("could not tag pane", "handle", handle, "pane_id", tag, "error", err)
	}

	t.mu.Lock()
	t.tracked[handle] = tag
	t.mu.Unlock()

	t.events.push(Event{Kind: EventPaneOpened, Handle: handle, Tag: tag})
	return nil
}

// ClosePane kills the pane. A pane that is already gone counts as closed.
func (t *Tmux) ClosePane(ctx context.Context, handle string) error {
	if _, err := t.run(ctx, "kill-pane", "-t", handle); err != nil && !isPaneMissing(err) {
		return fmt.Errorf("tmux kill-pane -t %s: %w", handle, err)
	}
	if t.untrack(handle) {
		t.events.push(Event{Kind: EventPaneClosed, Handle: handle})
	}
	return nil
}

// ListPanes returns all tmux panes, optionally filtered by session name pattern.
func (t *Tmux) ListPanes(ctx context.Context, filter string) ([]model.Pane, error) {
	// Format: pane_id\tsession:window.pane\tpane_pid\tcurrent_command\ttag
	format := "#{pane_id}\t#{session_name}:#{window_index}.#{pane_index}\t#{pane_pid}\t#{pane_current_command}\t#{" + tagOption + "}"
	out, err := t.run(ctx, "list-panes", "-a", "-F", format)
	if err != nil {
		return nil, fmt.Errorf("tmux list-panes: %w", err)
	}

	var re *regexp.Regexp
	if filter != "" {
		re, err = regexp.Compile(filter)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}

	var panes []model.Pane
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 5)
		if len(parts) < 4 {
			continue
		}

		pane, err := parseTarget(parts[1])
		if err != nil {
			continue
		}
		pane.Handle = parts[0]
		pane.PID, _ = strconv.Atoi(parts[2])
		pane.Command = parts[3]
		if len(parts) == 5 {
			pane.Tag = parts[4]
		}

		if re != nil && !re.MatchString(pane.Session) {
			continue
		}
		panes = append(panes, pane)
	}

	return panes, nil
}

// watch polls tmux for tracked panes that no longer exist.
func (t *Tmux) watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.reapExited(ctx)
		}
	}
}

// reapExited emits closed events for tracked panes tmux no longer lists.
func (t *Tmux) reapExited(ctx context.Context) {
	// Only panes tracked before the listing was taken can be judged by it.
	t.mu.Lock()
	before := make([]string, 0, len(t.tracked))
	for handle := range t.tracked {
		before = append(before, handle)
	}
	t.mu.Unlock()
	if len(before) == 0 {
		return
	}

	live := map[string]bool{}
	out, err := t.run(ctx, "list-panes", "-a", "-F", "#{pane_id}")
	if err != nil {
		if !isServerGone(err) {
			t.log.Warn("pane liveness check failed", "error", err)
			return
		}
		// No server means no panes: everything we tracked is gone.
	} else {
		for _, line := range strings.Split(out, "\n") {
			if h := strings.TrimSpace(line); h != "" {
				live[h] = true
			}
		}
	}

	var gone []string
	t.mu.Lock()
	for _, handle := range before {
		if live[handle] {
			continue
		}
		if _, ok := t.tracked[handle]; !ok {
			continue
		}
		gone = append(gone, handle)
		delete(t.tracked, handle)
	}
	t.mu.Unlock()

	for _, handle := range gone {
		t.log.Debug("pane exited", "handle", handle)
		t.events.push(Event{Kind: EventPaneClosed, Handle: handle, Exited: true})
	}
}

func (t *Tmux) untrack(handle string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.tracked[handle]; !ok {
		return false
	}
	delete(t.tracked, handle)
	return true
}

// execTmux executes a tmux command and returns its stdout.
func execTmux(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}

func isPaneMissing(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "can't find pane") || isServerGone(err)
}

func isServerGone(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no server running") || strings.Contains(msg, "error connecting to")
}

// parseTarget parses a tmux target string "session:window.pane" into a Pane.
func parseTarget(target string) (model.Pane, error) {
	colonIdx := strings.LastIndex(target, ":")
	if colonIdx < 0 {
		return model.Pane{}, fmt.Errorf("invalid target %q: missing ':'", target)
	}

	session := target[:colonIdx]
	rest := target[colonIdx+1:]

	dotIdx := strings.LastIndex(rest, ".")
	if dotIdx < 0 {
		return model.Pane{}, fmt.Errorf("invalid target %q: missing '.'", target)
	}

	window, err := strconv.Atoi(rest[:dotIdx])
	if err != nil {
		return model.Pane{}, fmt.Errorf("invalid window index in %q: %w", target, err)
	}

	pane, err := strconv.Atoi(rest[dotIdx+1:])
	if err != nil {
		return model.Pane{}, fmt.Errorf("invalid pane index in %q: %w", target, err)
	}

	return model.Pane{
		Target:  target,
		Session: session,
		Window:  window,
		Pane:    pane,
	}, nil
}
