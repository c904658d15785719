package events

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Lifecycle event kinds.
const (
	KindOpenRequested  = "open_requested"
	KindOpened         = "opened"
	KindOpenFailed     = "open_failed"
	KindCloseRequested = "close_requested"
	KindClosed         = "closed"
	KindCloseFailed    = "close_failed"
	KindExited         = "exited"
)

// Event records one lifecycle transition of a tracked pane.
type Event struct {
	Kind    string    `json:"kind"`
	PaneID  string    `json:"pane_id"`
	Handle  string    `json:"handle,omitempty"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	PipeID  string    `json:"pipe_id,omitempty"`
	Command string    `json:"command,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	TS      time.Time `json:"ts"`
}

func (e Event) Validate() error {
	if !isValidKind(e.Kind) {
		return fmt.Errorf("invalid kind %q", e.Kind)
	}
	if strings.TrimSpace(e.PaneID) == "" {
		return fmt.Errorf("pane_id is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}

// IsFailure reports whether the event records a host refusal.
func IsFailure(kind string) bool {
	return kind == KindOpenFailed || kind == KindCloseFailed
}

func isValidKind(kind string) bool {
	switch kind {
	case KindOpenRequested, KindOpened, KindOpenFailed,
		KindCloseRequested, KindClosed, KindCloseFailed, KindExited:
		return true
	default:
		return false
	}
}

// Sink receives lifecycle events.
type Sink interface {
	Record(ctx context.Context, e Event) error
}
