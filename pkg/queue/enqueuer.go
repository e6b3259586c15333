package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskEnqueuer schedules follow-up work. Services depend on this interface
// so the execution strategy (persisted outbox vs. inline) is a wiring choice.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) error
}

// EnqueuerStorage persists new tasks.
type EnqueuerStorage interface {
	CreateTask(ctx context.Context, task *Task) error
}

// EnqueueOption tunes a single Enqueue call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	queue      string
	maxRetries int
	delay      time.Duration
	runAt      time.Time
}

// WithQueue routes the task to a named queue.
func WithQueue(name string) EnqueueOption {
	return func(o *enqueueOptions) { o.queue = name }
}

// WithMaxRetries overrides the default retry budget.
func WithMaxRetries(n int) EnqueueOption {
	return func(o *enqueueOptions) { o.maxRetries = n }
}

// WithDelay defers execution by d from now.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) { o.delay = d }
}

// WithRunAt defers execution until a fixed time. Takes precedence over
// WithDelay.
func WithRunAt(t time.Time) EnqueueOption {
	return func(o *enqueueOptions) { o.runAt = t }
}

// Enqueuer is the persisted strategy: tasks are stored and picked up by a
// Worker. When the storage shares a transaction with the caller, the task
// becomes an outbox record that commits atomically with the business change.
type Enqueuer struct {
	storage      EnqueuerStorage
	defaultQueue string
	maxRetries   int
}

// NewEnqueuer creates an Enqueuer writing to storage.
func NewEnqueuer(storage EnqueuerStorage) (*Enqueuer, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	return &Enqueuer{storage: storage, defaultQueue: DefaultQueueName, maxRetries: 3}, nil
}

func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) error {
	task, err := buildTask(payload, e.defaultQueue, e.maxRetries, opts)
	if err != nil {
		return err
	}
	if err := e.storage.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("create task %q in queue %q: %w", task.Name, task.Queue, err)
	}
	return nil
}

func buildTask(payload any, defaultQueue string, defaultRetries int, opts []EnqueueOption) (*Task, error) {
	if payload == nil {
		return nil, ErrPayloadNil
	}

	options := &enqueueOptions{queue: defaultQueue, maxRetries: defaultRetries}
	for _, opt := range opts {
		opt(options)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload of type %T: %w", payload, err)
	}

	now := time.Now()
	scheduledAt := now
	if !options.runAt.IsZero() {
		scheduledAt = options.runAt
	} else if options.delay > 0 {
		scheduledAt = now.Add(options.delay)
	}

	return &Task{
		ID:          uuid.New(),
		Queue:       options.queue,
		Name:        taskNameFor(payload),
		Payload:     raw,
		Status:      TaskStatusPending,
		MaxRetries:  options.maxRetries,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
	}, nil
}

var _ TaskEnqueuer = (*Enqueuer)(nil)
