package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/passshare/internal/server/models"
)

// MemoryRepository keeps everything in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	members  map[string]map[string]struct{}
	files    []models.File
	nextID   int64
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[string]models.Session),
		members:  make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.Passkey]; ok {
		return ErrDuplicatePasskey
	}
	s.CreatedAt = r.now()
	r.sessions[s.Passkey] = *s
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, passkey string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[passkey]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) AddMember(_ context.Context, passkey, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[passkey]; !ok {
		return ErrNotFound
	}
	if r.members[passkey] == nil {
		r.members[passkey] = make(map[string]struct{})
	}
	r.members[passkey][username] = struct{}{}
	return nil
}

func (r *MemoryRepository) AddFile(_ context.Context, f *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[f.Passkey]; !ok {
		return ErrNotFound
	}
	r.nextID++
	f.ID = r.nextID
	f.CreatedAt = r.now()
	r.files = append(r.files, *f)
	return nil
}

func (r *MemoryRepository) ListFiles(_ context.Context, passkey string) ([]*models.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []*models.File{}
	for i := range r.files {
		if r.files[i].Passkey == passkey {
			f := r.files[i]
			result = append(result, &f)
		}
	}
	return result, nil
}

func (r *MemoryRepository) GetFile(_ context.Context, id int64) (*models.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.files {
		if r.files[i].ID == id {
			f := r.files[i]
			return &f, nil
		}
	}
	return nil, ErrNotFound
}

// Members returns the usernames that joined passkey, in no particular order.
func (r *MemoryRepository) Members(passkey string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.members[passkey]))
	for u := range r.members[passkey] {
		out = append(out, u)
	}
	return out
}
