package mux

import (
	"context"
	"sync"
)

// eventQueue is an unbounded FIFO in front of an unbuffered channel.
// push never blocks, so hosts can report events from inside calls made by
// the goroutine that consumes them.
type eventQueue struct {
	mu     sync.Mutex
	items  []Event
	notify chan struct{}
	out    chan Event
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		notify: make(chan struct{}, 1),
		out:    make(chan Event),
	}
}

func (q *eventQueue) push(ev Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Event{}, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}

// run forwards queued events to out until ctx is done.
func (q *eventQueue) run(ctx context.Context) {
	for {
		ev, ok := q.pop()
		if !ok {
			select {
			case <-q.notify:
				continue
			case <-ctx.Done():
				return
			}
		}
		select {
		case q.out <- ev:
		case <-ctx.Done():
			return
		}
	}
}
