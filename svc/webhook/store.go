package webhook

import (
	"context"

	"github.com/google/uuid"
)

// Transactor runs a function inside one database transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store persists webhook messages.
type Store interface {
	// CreateMessage stores a message; a duplicate gateway event id returns
	// ErrDuplicateMessage.
	CreateMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*Message, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
}
