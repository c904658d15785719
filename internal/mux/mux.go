// Package mux provides an abstraction over terminal multiplexers (tmux, zellij).
//
// A Multiplexer creates and destroys command panes on request and reports,
// asynchronously, when the host has actually done so. Handles are whatever
// the host uses to address a pane; callers treat them as opaque strings.
package mux

import (
	"context"

	"github.com/timvw/pane-toggler/internal/model"
)

// EventKind identifies a host notification.
type EventKind int

const (
	// EventPaneOpened reports that a pane requested with OpenCommandPane exists.
	EventPaneOpened EventKind = iota + 1
	// EventPaneClosed reports that a native pane is gone.
	EventPaneClosed
)

func (k EventKind) String() string {
	switch k {
	case EventPaneOpened:
		return "pane_opened"
	case EventPaneClosed:
		return "pane_closed"
	default:
		return "unknown"
	}
}

// Event is a host notification about a native pane.
type Event struct {
	Kind EventKind
	// Handle is the native pane identifier.
	Handle string
	// Tag is the value passed to OpenCommandPane. Only set on EventPaneOpened.
	Tag string
	// Exited is true when the pane went away without a ClosePane call.
	Exited bool
}

// Multiplexer abstracts the host operations pane-toggler depends on.
type Multiplexer interface {
	// Name returns the multiplexer name (e.g., "tmux", "zellij").
	Name() string

	// Start launches background work (event delivery, exit polling).
	// It returns once the multiplexer is ready to accept requests.
	Start(ctx context.Context) error

	// Events delivers host notifications in the order they happened.
	Events() <-chan Event

	// OpenCommandPane asks the host to spawn spec in a new pane. Success
	// means the request was accepted; EventPaneOpened carrying tag follows.
	OpenCommandPane(ctx context.Context, spec model.SpawnSpec, tag string) error

	// ClosePane asks the host to close the pane with the given handle.
	// EventPaneClosed follows once the pane is gone.
	ClosePane(ctx context.Context, handle string) error

	// ListPanes returns all panes, optionally filtered by a session name regex pattern.
	ListPanes(ctx context.Context, filter string) ([]model.Pane, error)
}
