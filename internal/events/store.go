package events

import (
	"context"
	"sync"
	"time"
)

const defaultStoreCapacity = 200

// Store keeps the most recent lifecycle events in memory for the dashboard.
type Store struct {
	mu       sync.RWMutex
	ttl      time.Duration
	capacity int
	data     []Event
}

// NewStore returns a store that drops events older than ttl (0 keeps them)
// and never holds more than capacity events (<= 0 uses the default).
func NewStore(ttl time.Duration, capacity int) *Store {
	if capacity <= 0 {
		capacity = defaultStoreCapacity
	}
	return &Store{ttl: ttl, capacity: capacity}
}

// Record appends e, evicting the oldest event when full.
func (s *Store) Record(_ context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, e)
	if over := len(s.data) - s.capacity; over > 0 {
		s.data = append(s.data[:0:0], s.data[over:]...)
	}
	return nil
}

// Recent returns up to limit unexpired events, newest first.
// A limit <= 0 returns all of them.
func (s *Store) Recent(now time.Time, limit int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ttl > 0 {
		keep := s.data[:0]
		for _, e := range s.data {
			if now.Sub(e.TS) <= s.ttl {
				keep = append(keep, e)
			}
		}
		s.data = keep
	}

	n := len(s.data)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]Event, 0, n)
	for i := len(s.data) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, s.data[i])
	}
	return result
}

// Len returns the number of buffered events, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
