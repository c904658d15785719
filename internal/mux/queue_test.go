package mux

import (
	"context"
	"testing"
	"time"
)

func TestEventQueue_PreservesOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := newEventQueue()
	// Push before the pump runs: push must never block.
	for _, h := range []string{"%1", "%2", "%3"} {
		q.push(Event{Kind: EventPaneOpened, Handle: h})
	}
	go q.run(ctx)

	for _, want := range []string{"%1", "%2", "%3"} {
		select {
		case ev := <-q.out:
			if ev.Handle != want {
				t.Fatalf("got %s, want %s", ev.Handle, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestEventQueue_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := newEventQueue()
	done := make(chan struct{})
	go func() {
		q.run(ctx)
		close(done)
	}()

	q.push(Event{Kind: EventPaneClosed, Handle: "%1"})
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestEventKindString(t *testing.T) {
	if EventPaneOpened.String() != "pane_opened" || EventPaneClosed.String() != "pane_closed" {
		t.Errorf("unexpected names: %s %s", EventPaneOpened, EventPaneClosed)
	}
	if EventKind(0).String() != "unknown" {
		t.Errorf("zero kind = %s", EventKind(0))
	}
}
