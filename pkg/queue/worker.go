package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WorkerStorage is the claim/ack side of task storage.
type WorkerStorage interface {
	// ClaimTask atomically claims the next due pending task from the given
	// queues, locking it for lockDuration. Returns ErrNoTaskToClaim when the
	// queues are drained.
	ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error)

	// CompleteTask marks a claimed task as completed.
	CompleteTask(ctx context.Context, taskID uuid.UUID) error

	// FailTask records the error, increments the retry count and returns the
	// task to pending with a backoff when retries remain.
	FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error

	// MoveToDeadLetter parks a task whose retries are exhausted.
	MoveToDeadLetter(ctx context.Context, taskID uuid.UUID) error
}

// WorkerOption tunes a Worker.
type WorkerOption func(*workerOptions)

type workerOptions struct {
	queues        []string
	pullInterval  time.Duration
	lockTimeout   time.Duration
	maxConcurrent int
	logger        *slog.Logger
}

// WithQueues sets the queues the worker drains, in the given order.
func WithQueues(queues ...string) WorkerOption {
	return func(o *workerOptions) {
		if len(queues) > 0 {
			o.queues = queues
		}
	}
}

// WithPullInterval sets how often the worker polls for due tasks.
func WithPullInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithLockTimeout bounds how long a claimed task stays invisible to other
// workers, and doubles as the handler execution timeout.
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithMaxConcurrentTasks caps in-flight handlers.
func WithMaxConcurrentTasks(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithWorkerLogger sets the worker's logger.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Worker drains task queues and dispatches to registered handlers.
type Worker struct {
	storage  WorkerStorage
	handlers map[string]Handler
	queues   []string
	workerID uuid.UUID

	pullInterval time.Duration
	lockTimeout  time.Duration
	sem          chan struct{}
	logger       *slog.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewWorker creates a Worker polling storage.
func NewWorker(storage WorkerStorage, opts ...WorkerOption) (*Worker, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}

	options := &workerOptions{
		queues:        []string{DefaultQueueName},
		pullInterval:  5 * time.Second,
		lockTimeout:   5 * time.Minute,
		maxConcurrent: 1,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		storage:      storage,
		handlers:     make(map[string]Handler),
		queues:       options.queues,
		workerID:     uuid.New(),
		pullInterval: options.pullInterval,
		lockTimeout:  options.lockTimeout,
		sem:          make(chan struct{}, options.maxConcurrent),
		logger:       options.logger,
	}, nil
}

// RegisterHandlers adds handlers before Start.
func (w *Worker) RegisterHandlers(handlers ...Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			w.handlers[h.Name()] = h
		}
	}
}

// Start begins polling in the background.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return fmt.Errorf("worker: %w", ErrAlreadyStarted)
	}
	if len(w.handlers) == 0 {
		return ErrNoHandlers
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.run(runCtx)

	w.logger.InfoContext(ctx, "worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("queues", w.queues),
		slog.Int("max_concurrent", cap(w.sem)))
	return nil
}

// Stop cancels polling and waits for in-flight handlers.
func (w *Worker) Stop() error {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return fmt.Errorf("worker: %w", ErrNotStarted)
	}
	cancel()
	w.wg.Wait()

	w.logger.Info("worker stopped", slog.String("worker_id", w.workerID.String()))
	return nil
}

// Run returns a function suitable for errgroup: starts the worker, blocks
// until ctx is done, then stops it.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return w.Stop()
	}
}

func (w *Worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				w.wg.Add(1)
				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()
					w.pullAndProcess(ctx)
				}()
			default:
				// All slots busy; try again next tick.
			}
		}
	}
}

func (w *Worker) pullAndProcess(ctx context.Context) {
	task, err := w.storage.ClaimTask(ctx, w.workerID, w.queues, w.lockTimeout)
	if err != nil {
		if !errors.Is(err, ErrNoTaskToClaim) && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "claim task",
				slog.String("worker_id", w.workerID.String()),
				slog.String("error", err.Error()))
		}
		return
	}

	w.processTask(ctx, task)
}

func (w *Worker) processTask(ctx context.Context, task *Task) {
	w.mu.Lock()
	handler, ok := w.handlers[task.Name]
	w.mu.Unlock()

	if !ok {
		// Retries cannot help a task nobody handles; park it for operators.
		w.logger.ErrorContext(ctx, "no handler for task",
			slog.String("task_id", task.ID.String()),
			slog.String("task_name", task.Name))
		if err := w.storage.FailTask(ctx, task.ID, "no handler registered for task: "+task.Name); err != nil {
			w.logger.ErrorContext(ctx, "fail task", slog.String("error", err.Error()))
			return
		}
		if err := w.storage.MoveToDeadLetter(ctx, task.ID); err != nil {
			w.logger.ErrorContext(ctx, "move task to dead letter", slog.String("error", err.Error()))
		}
		return
	}

	start := time.Now()

	// Detached from the worker context so graceful shutdown lets the handler
	// finish; bounded by the lock timeout so a stuck handler cannot outlive
	// its claim.
	handlerCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.lockTimeout)
	defer cancel()

	err := func() (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				retErr = fmt.Errorf("panic in handler: %v", r)
			}
		}()
		return handler.Handle(handlerCtx, task.Payload)
	}()

	if err != nil {
		w.handleFailure(ctx, task, err, time.Since(start))
		return
	}

	if err := w.storage.CompleteTask(ctx, task.ID); err != nil {
		w.logger.ErrorContext(ctx, "complete task",
			slog.String("task_id", task.ID.String()),
			slog.String("error", err.Error()))
		return
	}

	w.logger.InfoContext(ctx, "task completed",
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.Name),
		slog.Duration("duration", time.Since(start)))
}

func (w *Worker) handleFailure(ctx context.Context, task *Task, execErr error, duration time.Duration) {
	w.logger.ErrorContext(ctx, "task failed",
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.Name),
		slog.Int("retry_count", task.RetryCount),
		slog.Int("max_retries", task.MaxRetries),
		slog.Duration("duration", duration),
		slog.String("error", execErr.Error()))

	if err := w.storage.FailTask(ctx, task.ID, execErr.Error()); err != nil {
		w.logger.ErrorContext(ctx, "fail task", slog.String("error", err.Error()))
		return
	}

	if task.RetryCount >= task.MaxRetries {
		if err := w.storage.MoveToDeadLetter(ctx, task.ID); err != nil {
			w.logger.ErrorContext(ctx, "move task to dead letter", slog.String("error", err.Error()))
			return
		}
		w.logger.WarnContext(ctx, "task moved to dead letter queue",
			slog.String("task_id", task.ID.String()),
			slog.String("task_name", task.Name))
	}
}
