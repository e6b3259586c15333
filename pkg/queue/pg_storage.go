package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool and pgx.Tx the storage needs. Binding the
// storage to a transaction turns CreateTask into an outbox write that commits
// atomically with the caller's business rows.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStorage stores tasks in Postgres. Claiming relies on
// FOR UPDATE SKIP LOCKED, so multiple workers can drain the same queues
// without double-claiming.
type PGStorage struct {
	db DB
}

// NewPGStorage creates a PGStorage over db.
func NewPGStorage(db DB) (*PGStorage, error) {
	if db == nil {
		return nil, ErrStorageNil
	}
	return &PGStorage{db: db}, nil
}

// WithDB returns a copy bound to another executor, typically a transaction.
func (s *PGStorage) WithDB(db DB) *PGStorage {
	return &PGStorage{db: db}
}

const taskColumns = `id, queue, name, payload, status, retry_count, max_retries,
	scheduled_at, locked_until, locked_by, processed_at, last_error, created_at`

func (s *PGStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrPayloadNil
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO tasks (id, queue, name, payload, status, retry_count, max_retries, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		task.ID, task.Queue, task.Name, task.Payload, task.Status,
		task.RetryCount, task.MaxRetries, task.ScheduledAt, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// ClaimTask also reclaims processing tasks whose lock expired: a worker that
// crashed mid-task never completes or fails it, so its lock lapsing is the
// only way the task gets back into circulation.
func (s *PGStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE tasks SET
			status = 'processing',
			locked_until = now() + $3,
			locked_by = $2
		WHERE id = (
			SELECT id FROM tasks
			WHERE queue = ANY($1)
			  AND scheduled_at <= now()
			  AND (
			      status = 'pending'
			      OR (status = 'processing' AND locked_until < now())
			  )
			ORDER BY scheduled_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+taskColumns,
		queues, workerID, lockDuration,
	)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoTaskToClaim
		}
		return nil, fmt.Errorf("claim task: %w", err)
	}
	return task, nil
}

func (s *PGStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE tasks SET
			status = 'completed',
			processed_at = now(),
			locked_until = NULL,
			locked_by = NULL
		WHERE id = $1`,
		taskID,
	)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return nil
}

func (s *PGStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	// Remaining retries go back to pending with exponential backoff; the
	// final failure stays 'failed' until MoveToDeadLetter picks it up.
	tag, err := s.db.Exec(ctx, `
		UPDATE tasks SET
			retry_count = retry_count + 1,
			last_error = $2,
			locked_until = NULL,
			locked_by = NULL,
			status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
			scheduled_at = now() + interval '30 seconds' * power(2, retry_count)
		WHERE id = $1`,
		taskID, errorMsg,
	)
	if err != nil {
		return fmt.Errorf("fail task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return nil
}

func (s *PGStorage) MoveToDeadLetter(ctx context.Context, taskID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		WITH moved AS (
			DELETE FROM tasks WHERE id = $1
			RETURNING id, queue, name, payload, retry_count, last_error
		)
		INSERT INTO task_dead_letters (id, task_id, queue, name, payload, error, retry_count, failed_at)
		SELECT gen_random_uuid(), id, queue, name, payload, coalesce(last_error, ''), retry_count, now()
		FROM moved`,
		taskID,
	)
	if err != nil {
		return fmt.Errorf("move task to dead letter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return nil
}

func (s *PGStorage) SchedulePeriodicTask(ctx context.Context, name, queue string, runAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tasks (id, queue, name, status, retry_count, max_retries, scheduled_at, created_at)
		SELECT gen_random_uuid(), $2, $1, 'pending', 0, 1, $3, now()
		WHERE NOT EXISTS (
			SELECT 1 FROM tasks WHERE name = $1 AND status IN ('pending', 'processing')
		)`,
		name, queue, runAt,
	)
	if err != nil {
		return fmt.Errorf("schedule periodic task: %w", err)
	}
	return nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(
		&t.ID, &t.Queue, &t.Name, &t.Payload, &t.Status, &t.RetryCount, &t.MaxRetries,
		&t.ScheduledAt, &t.LockedUntil, &t.LockedBy, &t.ProcessedAt, &t.LastError, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var (
	_ EnqueuerStorage  = (*PGStorage)(nil)
	_ WorkerStorage    = (*PGStorage)(nil)
	_ SchedulerStorage = (*PGStorage)(nil)
)
