package sequence

import (
	"context"
	"sync"
	"time"
)

type counterKey struct {
	scopeKey   string
	dateBucket string
}

// InMemoryStore is the mutex-guarded counter for tests and dev mode.
type InMemoryStore struct {
	mu       sync.Mutex
	counters map[counterKey]int64
	updated  map[counterKey]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		counters: make(map[counterKey]int64),
		updated:  make(map[counterKey]time.Time),
	}
}

func (s *InMemoryStore) Next(_ context.Context, scopeKey, dateBucket string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := counterKey{scopeKey: scopeKey, dateBucket: dateBucket}
	s.counters[key]++
	s.updated[key] = time.Now()
	return s.counters[key], nil
}

// Current returns the high-water mark without incrementing, for assertions.
func (s *InMemoryStore) Current(scopeKey, dateBucket string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[counterKey{scopeKey: scopeKey, dateBucket: dateBucket}]
}
