package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/passshare/internal/dbx"
	"github.com/dmitrijs2005/passshare/internal/server/repositories/sessions"
)

// RepositoryManager vends repositories bound to a connection and migrates
// the schema behind them.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Sessions(db dbx.DBTX) sessions.Repository
}
