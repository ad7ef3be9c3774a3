// Package blacklist provides the key-value repository for revoked tokens.
//
// Presence of a key in this store is definitive proof of revocation: a token
// found here must be rejected regardless of signature validity or unexpired
// status.
package blacklist

import (
	"context"

	"github.com/tbsky/session/internal/server/models"
)

// Repository is the data-access contract for blacklisted tokens.
type Repository interface {
	// Add writes a single blacklist entry under its access-token key.
	Add(ctx context.Context, entry *models.BlackListToken) error
	// AddAll writes all entries through one transactional pipeline;
	// either every write commits or none do.
	AddAll(ctx context.Context, entries ...*models.BlackListToken) error
	// Get bulk-looks-up entries by raw token strings. Absent keys are
	// skipped, never null-padded.
	Get(ctx context.Context, keys ...string) ([]*models.BlackListToken, error)
}
