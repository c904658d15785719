package toggler

import (
	"context"
	"errors"

	"github.com/timvw/pane-toggler/internal/mux"
	"github.com/timvw/pane-toggler/internal/protocol"
	"github.com/timvw/pane-toggler/internal/registry"
)

// ErrStopped is returned by Submit and Snapshot once the loop has exited.
var ErrStopped = errors.New("toggler loop stopped")

type submission struct {
	ctx   context.Context
	msg   protocol.Message
	reply Reply
}

// Loop runs a Handler on a single goroutine.
type Loop struct {
	h         *Handler
	events    <-chan mux.Event
	requests  chan submission
	snapshots chan chan []registry.Entry
	done      chan struct{}
}

// NewLoop wraps h. Host events are read from h's multiplexer.
func NewLoop(h *Handler) *Loop {
	return &Loop{
		h:         h,
		events:    h.host.Events(),
		requests:  make(chan submission),
		snapshots: make(chan chan []registry.Entry),
		done:      make(chan struct{}),
	}
}

// Run processes messages and host events until ctx is done. Requests still
// waiting on the host are failed on the way out.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			l.h.Abandon(context.WithoutCancel(ctx), "pane-toggler is shutting down")
			return ctx.Err()
		case s := <-l.requests:
			// Host calls must outlive a client that hangs up mid-request.
			l.h.Handle(context.WithoutCancel(s.ctx), s.msg, s.reply)
		case ev, ok := <-l.events:
			if !ok {
				l.h.Abandon(ctx, "multiplexer event stream closed")
				return errors.New("multiplexer event stream closed")
			}
			l.h.HandleEvent(ctx, ev)
		case ch := <-l.snapshots:
			ch <- l.h.Snapshot()
		}
	}
}

// Submit hands msg to the loop and waits for its response. A cancelled ctx
// stops the wait but not the transition already started.
func (l *Loop) Submit(ctx context.Context, msg protocol.Message) (protocol.Response, error) {
	resp := make(chan protocol.Response, 1)
	s := submission{
		ctx:   ctx,
		msg:   msg,
		reply: func(r protocol.Response) { resp <- r },
	}

	select {
	case l.requests <- s:
	case <-l.done:
		return protocol.Response{}, ErrStopped
	case <-ctx.Done():
		return protocol.Response{}, ctx.Err()
	}

	select {
	case r := <-resp:
		return r, nil
	case <-l.done:
		select {
		case r := <-resp:
			return r, nil
		default:
			return protocol.Response{}, ErrStopped
		}
	case <-ctx.Done():
		return protocol.Response{}, ctx.Err()
	}
}

// Snapshot returns the registry contents as seen by the loop.
func (l *Loop) Snapshot(ctx context.Context) ([]registry.Entry, error) {
	ch := make(chan []registry.Entry, 1)
	select {
	case l.snapshots <- ch:
	case <-l.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case entries := <-ch:
		return entries, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
