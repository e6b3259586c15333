package webhook

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/creatorkit/creatorkit/pkg/pg"
)

// PGStore is the Postgres webhook message store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a PGStore over pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) db(ctx context.Context) pg.Executor {
	return pg.ExecutorFromContext(ctx, s.pool)
}

func (s *PGStore) CreateMessage(ctx context.Context, m *Message) error {
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO webhook_messages (id, external_id, event, payload, is_processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.ExternalID, m.Event, m.Payload, m.IsProcessed, m.CreatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKey(err) {
			return ErrDuplicateMessage
		}
		return fmt.Errorf("insert webhook message: %w", err)
	}
	return nil
}

func (s *PGStore) GetMessage(ctx context.Context, id uuid.UUID) (*Message, error) {
	row := s.db(ctx).QueryRow(ctx, `
		SELECT id, external_id, event, payload, is_processed, created_at, processed_at
		FROM webhook_messages WHERE id = $1`, id)

	var m Message
	err := row.Scan(&m.ID, &m.ExternalID, &m.Event, &m.Payload, &m.IsProcessed, &m.CreatedAt, &m.ProcessedAt)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("select webhook message: %w", err)
	}
	return &m, nil
}

func (s *PGStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db(ctx).Exec(ctx, `
		UPDATE webhook_messages SET is_processed = TRUE, processed_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update webhook message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

var _ Store = (*PGStore)(nil)
