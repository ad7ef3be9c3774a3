package repomanager

import (
	"context"
	"database/sql"

	"github.com/tbsky/session/internal/dbx"
	"github.com/tbsky/session/internal/server/repositories/users"
)

// RepositoryManager vends repository instances bound to a database handle and
// exposes schema bootstrap.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}
