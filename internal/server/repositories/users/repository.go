// Package users provides the PostgreSQL-backed repository for identity
// records.
package users

import (
	"context"

	"github.com/tbsky/session/internal/server/models"
)

// Filters restricts a query by column values combined with logical AND.
// A slice value becomes an IN-list, nil becomes IS NULL, anything else an
// equality check. Soft-deleted rows are always excluded.
type Filters map[string]any

// Repository is the data-access contract for users.
type Repository interface {
	// Get returns every matching user.
	Get(ctx context.Context, filters Filters) ([]*models.User, error)
	// GetFirst returns the first match or nil when nothing matches.
	GetFirst(ctx context.Context, filters Filters) (*models.User, error)
	// GetOne returns the first match and fails with common.ErrorNotFound
	// when nothing matches.
	GetOne(ctx context.Context, filters Filters) (*models.User, error)
	// Create persists a user and fills server-generated fields.
	Create(ctx context.Context, user *models.User) (*models.User, error)
}
