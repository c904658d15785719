package toggler

import (
	"context"
	"fmt"
	"sync"

	"github.com/timvw/pane-toggler/internal/model"
	"github.com/timvw/pane-toggler/internal/mux"
)

// fakeHost records side effects. With autoConfirm it reports opens and
// closes on its event channel the way tmux does; otherwise tests deliver
// confirmations through Handler.HandleEvent.
type fakeHost struct {
	mu          sync.Mutex
	autoConfirm bool
	openErr     error
	closeErr    error
	opened      []model.SpawnSpec
	closed      []string
	handles     map[string]string // tag -> last handle
	next        int
	events      chan mux.Event
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		handles: make(map[string]string),
		events:  make(chan mux.Event, 64),
	}
}

func (f *fakeHost) Name() string                    { return "fake" }
func (f *fakeHost) Start(ctx context.Context) error { return nil }
func (f *fakeHost) Events() <-chan mux.Event        { return f.events }

func (f *fakeHost) OpenCommandPane(_ context.Context, spec model.SpawnSpec, tag string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.next++
	handle := fmt.Sprintf("%%%d", f.next)
	f.opened = append(f.opened, spec)
	f.handles[tag] = handle
	if f.autoConfirm {
		f.events <- mux.Event{Kind: mux.EventPaneOpened, Handle: handle, Tag: tag}
	}
	return nil
}

func (f *fakeHost) ClosePane(_ context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closeErr != nil {
		return f.closeErr
	}
	f.closed = append(f.closed, handle)
	if f.autoConfirm {
		f.events <- mux.Event{Kind: mux.EventPaneClosed, Handle: handle}
	}
	return nil
}

func (f *fakeHost) ListPanes(context.Context, string) ([]model.Pane, error) {
	return nil, nil
}

func (f *fakeHost) handleFor(tag string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handles[tag]
}

func (f *fakeHost) counts() (opens, closes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened), len(f.closed)
}
