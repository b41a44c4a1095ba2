package memory

import (
	"context"
	"sync"
	"time"

	"exam-prep-service/internal/domain"
)

// HandoffStore is an in-memory handoff.Store. Expired entries are dropped on access.
type HandoffStore struct {
	clock func() time.Time

	mu      sync.Mutex
	entries map[string]handoffEntry
}

type handoffEntry struct {
	payload   []byte
	expiresAt time.Time
}

func NewHandoffStore() *HandoffStore {
	return &HandoffStore{
		clock:   time.Now,
		entries: make(map[string]handoffEntry),
	}
}

func (s *HandoffStore) Put(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = handoffEntry{
		payload:   append([]byte(nil), payload...),
		expiresAt: s.clock().Add(ttl),
	}
	return nil
}

func (s *HandoffStore) Take(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil, domain.ErrHandoffEmpty
	}
	delete(s.entries, key)
	if !entry.expiresAt.After(s.clock()) {
		return nil, domain.ErrHandoffEmpty
	}
	return entry.payload, nil
}
