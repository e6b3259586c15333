package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor is the query surface shared by pgxpool.Pool and pgx.Tx. Store
// methods run against whichever the context carries, so the same store code
// works inside and outside transactions.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// WithTx returns a context carrying the transaction.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// ExecutorFromContext returns the context's transaction if present, else the
// pool.
func ExecutorFromContext(ctx context.Context, pool *pgxpool.Pool) Executor {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// ContextDB is an Executor that resolves pool-or-transaction per call from
// the context. Components that hold a DB handle (the task queue storage) use
// it so their writes join whatever transaction the caller opened.
type ContextDB struct {
	pool *pgxpool.Pool
}

// NewContextDB creates a ContextDB over pool.
func NewContextDB(pool *pgxpool.Pool) *ContextDB {
	return &ContextDB{pool: pool}
}

func (d *ContextDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return ExecutorFromContext(ctx, d.pool).Exec(ctx, sql, args...)
}

func (d *ContextDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return ExecutorFromContext(ctx, d.pool).Query(ctx, sql, args...)
}

func (d *ContextDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return ExecutorFromContext(ctx, d.pool).QueryRow(ctx, sql, args...)
}

// Transactor runs functions inside a database transaction, propagating the
// transaction through the context so store calls join it.
type Transactor struct {
	pool *pgxpool.Pool
}

// NewTransactor creates a Transactor over pool.
func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

// WithinTx begins a transaction, runs fn with a context carrying it, and
// commits on nil. Nested calls join the outer transaction instead of opening
// a second one.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return RunInTx(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(WithTx(ctx, tx))
	})
}
