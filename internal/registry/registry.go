// Package registry tracks client pane identifiers and the native panes they
// map to.
//
// The registry is plain data: it performs no I/O and is not safe for
// concurrent use. The owner (toggler.Loop) serialises access.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/timvw/pane-toggler/internal/model"
)

// State is the lifecycle state of a tracked pane.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Busy reports whether the state is a transition in flight.
func (s State) Busy() bool {
	return s == StateOpening || s == StateClosing
}

var (
	// ErrNotFound is returned when no live entry exists for a pane id.
	ErrNotFound = errors.New("pane not found")
	// ErrInvalidTransition is returned when an event does not match the
	// entry's current state.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// BusyError rejects an operation on an entry that is mid-transition.
type BusyError struct {
	PaneID string
	State  State
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("pane is %s", e.State)
}

// AlreadyOpenError rejects an open for an entry that is already open.
type AlreadyOpenError struct {
	PaneID string
}

func (e *AlreadyOpenError) Error() string {
	return "pane is already opened"
}

// Entry is one tracked pane.
type Entry struct {
	PaneID string
	// Handle is the native pane identifier. Set while Open and Closing.
	Handle    string
	State     State
	Spec      model.SpawnSpec
	UpdatedAt time.Time
}

// Registry maps client pane ids to entries. Closed entries are kept as
// tombstones and may be reopened.
type Registry struct {
	entries map[string]*Entry
	now     func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// Get returns a copy of the entry for paneID.
func (r *Registry) Get(paneID string) (Entry, bool) {
	e, ok := r.entries[paneID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// StateOf returns the state of paneID. Absent entries report StateClosed
// with ok=false.
func (r *Registry) StateOf(paneID string) (State, bool) {
	e, ok := r.entries[paneID]
	if !ok {
		return StateClosed, false
	}
	return e.State, true
}

// BeginOpen records that a native pane is being created for paneID.
// Only absent or Closed entries may be opened.
func (r *Registry) BeginOpen(paneID string, spec model.SpawnSpec) error {
	if e, ok := r.entries[paneID]; ok {
		switch {
		case e.State.Busy():
			return &BusyError{PaneID: paneID, State: e.State}
		case e.State == StateOpen:
			return &AlreadyOpenError{PaneID: paneID}
		}
	}
	r.entries[paneID] = &Entry{
		PaneID:    paneID,
		State:     StateOpening,
		Spec:      spec,
		UpdatedAt: r.now(),
	}
	return nil
}

// ConfirmOpen records the native handle the host assigned to paneID.
func (r *Registry) ConfirmOpen(paneID, handle string) error {
	e, ok := r.entries[paneID]
	if !ok {
		return ErrNotFound
	}
	if e.State != StateOpening {
		return fmt.Errorf("%w: confirm open while %s", ErrInvalidTransition, e.State)
	}
	e.State = StateOpen
	e.Handle = handle
	e.UpdatedAt = r.now()
	return nil
}

// AbortOpen reverts an Opening entry to a Closed tombstone after the host
// refused to create the pane.
func (r *Registry) AbortOpen(paneID string) error {
	e, ok := r.entries[paneID]
	if !ok {
		return ErrNotFound
	}
	if e.State != StateOpening {
		return fmt.Errorf("%w: abort open while %s", ErrInvalidTransition, e.State)
	}
	e.State = StateClosed
	e.Handle = ""
	e.UpdatedAt = r.now()
	return nil
}

// BeginClose moves an Open entry to Closing and returns the handle to close.
func (r *Registry) BeginClose(paneID string) (string, error) {
	e, ok := r.entries[paneID]
	if !ok || e.State == StateClosed {
		return "", ErrNotFound
	}
	if e.State.Busy() {
		return "", &BusyError{PaneID: paneID, State: e.State}
	}
	e.State = StateClosing
	e.UpdatedAt = r.now()
	return e.Handle, nil
}

// AbortClose reverts a Closing entry to Open after the host refused to
// close the pane.
func (r *Registry) AbortClose(paneID string) error {
	e, ok := r.entries[paneID]
	if !ok {
		return ErrNotFound
	}
	if e.State != StateClosing {
		return fmt.Errorf("%w: abort close while %s", ErrInvalidTransition, e.State)
	}
	e.State = StateOpen
	e.UpdatedAt = r.now()
	return nil
}

// ConfirmClosed records that the native pane for paneID is gone. It accepts
// Closing entries (requested close) and Open entries (the command exited on
// its own) and returns the state the entry was in.
func (r *Registry) ConfirmClosed(paneID string) (State, error) {
	e, ok := r.entries[paneID]
	if !ok {
		return StateClosed, ErrNotFound
	}
	prev := e.State
	if prev != StateClosing && prev != StateOpen {
		return prev, fmt.Errorf("%w: confirm closed while %s", ErrInvalidTransition, prev)
	}
	e.State = StateClosed
	e.Handle = ""
	e.UpdatedAt = r.now()
	return prev, nil
}

// FindByHandle returns the pane id owning a native handle. Only entries that
// hold a handle (Open, Closing) can match.
func (r *Registry) FindByHandle(handle string) (string, bool) {
	if handle == "" {
		return "", false
	}
	for id, e := range r.entries {
		if e.Handle == handle && (e.State == StateOpen || e.State == StateClosing) {
			return id, true
		}
	}
	return "", false
}

// Len returns the number of entries, tombstones included.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Snapshot returns copies of all entries sorted by pane id.
func (r *Registry) Snapshot() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaneID < out[j].PaneID })
	return out
}
