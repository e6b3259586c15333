package stats

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PGSource aggregates creator stats from the ledger and membership tables.
type PGSource struct {
	pool *pgxpool.Pool
}

// NewPGSource creates a PGSource over pool.
func NewPGSource(pool *pgxpool.Pool) *PGSource {
	return &PGSource{pool: pool}
}

func (s *PGSource) CollectCreatorStats(ctx context.Context, creatorID uuid.UUID) (*CreatorStats, error) {
	cs := &CreatorStats{CreatorID: creatorID, TotalEarned: decimal.Zero}

	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM memberships
		WHERE creator_id = $1 AND is_active = TRUE`, creatorID).Scan(&cs.ActiveMembers)
	if err != nil {
		return nil, fmt.Errorf("count active members: %w", err)
	}

	var totalStr string
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(sum(amount), 0)::text, COALESCE(max(currency), '')
		FROM payments
		WHERE creator_id = $1 AND status = 'captured'`, creatorID).Scan(&totalStr, &cs.Currency)
	if err != nil {
		return nil, fmt.Errorf("sum captured payments: %w", err)
	}
	if cs.TotalEarned, err = decimal.NewFromString(totalStr); err != nil {
		return nil, fmt.Errorf("parse earnings total %q: %w", totalStr, err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT count(*) FROM donations
		WHERE creator_id = $1 AND status = 'successful'`, creatorID).Scan(&cs.DonationCount)
	if err != nil {
		return nil, fmt.Errorf("count donations: %w", err)
	}
	return cs, nil
}

var _ Source = (*PGSource)(nil)
