package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps timestamps in process memory. State is lost on restart.
type MemoryStore struct {
	mu    sync.Mutex
	times map[string][]time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{times: make(map[string][]time.Time)}
}

// Count prunes timestamps older than since and returns what is left.
func (s *MemoryStore) Count(_ context.Context, identity string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.times[identity][:0]
	for _, t := range s.times[identity] {
		if !t.Before(since) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(s.times, identity)
		return 0, nil
	}
	s.times[identity] = kept
	return len(kept), nil
}

func (s *MemoryStore) Add(_ context.Context, identity string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.times[identity] = append(s.times[identity], at)
	return nil
}
