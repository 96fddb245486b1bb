package identity

import (
	"context"
	"errors"
	"sync"
)

// MemoryCounterStore is the in-memory CounterStore used by tests and the
// development store. A single mutex serializes increments across years.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[int]int64
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: make(map[int]int64)}
}

// Add implements CounterStore.
func (s *MemoryCounterStore) Add(_ context.Context, year int, offset int64) (int64, error) {
	if offset < 1 {
		return 0, errors.New("bad offset")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[year] += offset
	return s.counters[year], nil
}

// Seed sets the current counter for a year. Tests use it to exercise
// sequence-width growth without generating thousands of tickets.
func (s *MemoryCounterStore) Seed(year int, value int64) {
	s.mu.Lock()
	s.counters[year] = value
	s.mu.Unlock()
}
