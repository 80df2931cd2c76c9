package identity

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/passshare/internal/client/models"
)

// MemoryStore keeps the identity for the lifetime of the process only.
type MemoryStore struct {
	mu  sync.Mutex
	id  models.Identity
	set bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(context.Context) (models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return models.Identity{}, ErrNoIdentity
	}
	return s.id, nil
}

func (s *MemoryStore) Save(_ context.Context, id models.Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id, s.set = id, true
	return nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id, s.set = models.Identity{}, false
	return nil
}
