package store

import (
	"context"
	"sync"
	"time"

	"user-auth-service/internal/verification/domain"
)

// MemoryStore is an in-process Store for development and tests. Codes are not
// durable and markers expire against the injected time source.
type MemoryStore struct {
	mu       sync.Mutex
	codes    map[string]*domain.Code
	verified map[string]time.Time
	nowF     func() time.Time
}

// NewMemoryStore returns an empty in-memory store. now may be nil, in which
// case time.Now is used.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		codes:    map[string]*domain.Code{},
		verified: map[string]time.Time{},
		nowF:     now,
	}
}

func (s *MemoryStore) Put(_ context.Context, c *domain.Code) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.codes[c.Identity] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, identity string) (*domain.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[identity]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) IncrementAttempt(_ context.Context, identity string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.codes[identity]
	if !ok {
		return 0, nil
	}
	c.AttemptCount++
	return c.AttemptCount, nil
}

func (s *MemoryStore) Delete(_ context.Context, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[identity]; !ok {
		return false, nil
	}
	delete(s.codes, identity)
	return true, nil
}

func (s *MemoryStore) MarkVerified(_ context.Context, identity string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified[identity] = s.nowF().Add(ttl)
	return nil
}

func (s *MemoryStore) IsVerified(_ context.Context, identity string, consume bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.verified[identity]
	if !ok {
		return false, nil
	}
	if !s.nowF().Before(until) {
		delete(s.verified, identity)
		return false, nil
	}
	if consume {
		delete(s.verified, identity)
	}
	return true, nil
}
