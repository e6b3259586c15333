package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorkit/creatorkit/pkg/pg"
)

// PGDirectory resolves addresses from the users table.
type PGDirectory struct {
	pool *pgxpool.Pool
}

// NewPGDirectory creates a PGDirectory over pool.
func NewPGDirectory(pool *pgxpool.Pool) *PGDirectory {
	return &PGDirectory{pool: pool}
}

func (d *PGDirectory) EmailFor(ctx context.Context, userID uuid.UUID) (string, error) {
	var addr string
	err := pg.ExecutorFromContext(ctx, d.pool).
		QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).
		Scan(&addr)
	if err != nil {
		if pg.IsNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrUnknownRecipient, userID)
		}
		return "", fmt.Errorf("select user email: %w", err)
	}
	return addr, nil
}

var _ UserDirectory = (*PGDirectory)(nil)
