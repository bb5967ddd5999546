package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type memoryEntry struct {
	record    *Record // nil while in flight
	expiresAt time.Time
}

// InMemoryStore implements Store for a single API instance.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   clock.Clock
}

// NewInMemoryStore creates an in-memory store. clk may be nil.
func NewInMemoryStore(clk clock.Clock) *InMemoryStore {
	if clk == nil {
		clk = clock.New()
	}
	return &InMemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   clk,
	}
}

func (s *InMemoryStore) live(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !s.clock.Now().Before(e.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

// Get implements Store.
func (s *InMemoryStore) Get(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	if e.record == nil {
		return nil, ErrInFlight
	}
	rec := *e.record
	rec.Body = append([]byte(nil), e.record.Body...)
	return &rec, nil
}

// Reserve implements Store.
func (s *InMemoryStore) Reserve(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(key); ok {
		return ErrKeyExists
	}
	s.entries[key] = memoryEntry{expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

// Complete implements Store.
func (s *InMemoryStore) Complete(_ context.Context, rec *Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	stored := *rec
	stored.Body = append([]byte(nil), rec.Body...)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	s.entries[rec.Key] = memoryEntry{record: &stored, expiresAt: now.Add(ttl)}
	return nil
}

// Release implements Store.
func (s *InMemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && e.record == nil {
		delete(s.entries, key)
	}
	return nil
}

// Cleanup removes expired entries and returns how many were dropped.
func (s *InMemoryStore) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	n := 0
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
			n++
		}
	}
	return n
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *InMemoryStore) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := s.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

// Len returns the number of stored entries, expired or not.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
