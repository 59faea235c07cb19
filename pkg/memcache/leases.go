package mem

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LeaseStore grants short-lived exclusive leases on string keys. A lease is
// released by its holder or expires after its ttl.
type LeaseStore interface {
	// Acquire returns the lease token and true when the key was free.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error)

	// Release drops the lease if token still holds it.
	Release(ctx context.Context, key, token string) error
}

type entry struct {
	token     string
	expiresAt time.Time
}

// MemoryLeases is a process-local LeaseStore for single-instance deployments.
type MemoryLeases struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

func NewMemoryLeases() *MemoryLeases {
	return &MemoryLeases{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

func (s *MemoryLeases) Acquire(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.data[key]; ok && now.Before(e.expiresAt) {
		return "", false, nil
	}
	s.sweep(now)

	token := uuid.NewString()
	s.data[key] = entry{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (s *MemoryLeases) Release(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.data[key]; ok && e.token == token {
		delete(s.data, key)
	}
	return nil
}

// sweep drops expired entries; caller holds mu.
func (s *MemoryLeases) sweep(now time.Time) {
	for k, e := range s.data {
		if !now.Before(e.expiresAt) {
			delete(s.data, k)
		}
	}
}
