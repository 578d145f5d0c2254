package pgsql

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	portsrepo "github.com/corebanking/ledgersvc/internal/core/ports/repositories"
)

// PgxBlocklistRepository persists the blocked owner set. Going through the
// same durable store as the ledger keeps multiple service instances
// consistent; there is no process-wide cache.
type PgxBlocklistRepository struct {
	BaseRepository
}

// NewBlocklistRepository creates a new repository for the blocklist.
func NewBlocklistRepository(pool *pgxpool.Pool) portsrepo.BlocklistRepository {
	return &PgxBlocklistRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.BlocklistRepository = (*PgxBlocklistRepository)(nil)

// AddToList inserts the owner id; reports whether it was newly added.
func (r *PgxBlocklistRepository) AddToList(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	cmdTag, err := r.Pool.Exec(ctx,
		`INSERT INTO blocked_users (owner_id) VALUES ($1) ON CONFLICT (owner_id) DO NOTHING;`, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to add owner %s to blocklist: %w", ownerID, err)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// RemoveFromList deletes the owner id; reports whether it was present.
func (r *PgxBlocklistRepository) RemoveFromList(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	cmdTag, err := r.Pool.Exec(ctx, `DELETE FROM blocked_users WHERE owner_id = $1;`, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to remove owner %s from blocklist: %w", ownerID, err)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// IsBlacklisted reports membership.
func (r *PgxBlocklistRepository) IsBlacklisted(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	var blocked bool
	err := r.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM blocked_users WHERE owner_id = $1);`, ownerID).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("failed to check blocklist for owner %s: %w", ownerID, err)
	}
	return blocked, nil
}
