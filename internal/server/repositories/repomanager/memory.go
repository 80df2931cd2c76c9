package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/passshare/internal/dbx"
	"github.com/dmitrijs2005/passshare/internal/server/repositories/sessions"
)

// MemoryRepositoryManager hands out one shared in-memory repository
// regardless of the connection passed in.
type MemoryRepositoryManager struct {
	sessions *sessions.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{sessions: sessions.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) Sessions(dbx.DBTX) sessions.Repository {
	return m.sessions
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}
