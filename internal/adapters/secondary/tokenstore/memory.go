package tokenstore

import (
	"context"
	"sync"

	"github.com/lorrc/service-desk-realtime/internal/core/domain"
	"github.com/lorrc/service-desk-realtime/internal/core/ports"
)

// MemoryStore keeps the credential for the life of the process only.
type MemoryStore struct {
	mu   sync.RWMutex
	cred domain.Credential
}

var _ ports.TokenStore = (*MemoryStore)(nil)

// NewMemoryStore returns a store seeded with cred, which may be zero.
func NewMemoryStore(cred domain.Credential) *MemoryStore {
	return &MemoryStore{cred: cred}
}

func (s *MemoryStore) Load(_ context.Context) (domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred, nil
}

func (s *MemoryStore) Save(_ context.Context, cred domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = cred
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = domain.Credential{}
	return nil
}
