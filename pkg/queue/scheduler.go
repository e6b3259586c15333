package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SchedulerStorage plants periodic tasks.
type SchedulerStorage interface {
	// SchedulePeriodicTask inserts a pending task with the given name unless
	// one is already pending or processing, keeping exactly one upcoming run
	// per periodic task across scheduler replicas.
	SchedulePeriodicTask(ctx context.Context, name, queue string, runAt time.Time) error
}

// Scheduler plants periodic tasks (membership sweeps, stat refreshes) into
// the queue on their schedules. It only creates tasks; a Worker with a
// matching NewPeriodicTaskHandler executes them.
type Scheduler struct {
	storage SchedulerStorage
	logger  *slog.Logger

	mu      sync.Mutex
	entries []schedulerEntry
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type schedulerEntry struct {
	name     string
	queue    string
	schedule Schedule
}

// NewScheduler creates a Scheduler writing to storage.
func NewScheduler(storage SchedulerStorage, logger *slog.Logger) (*Scheduler, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{storage: storage, logger: logger}, nil
}

// Add registers a periodic task under name. Must be called before Start.
func (s *Scheduler) Add(name string, schedule Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, schedulerEntry{name: name, queue: DefaultQueueName, schedule: schedule})
}

// Start begins planting tasks in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.run(runCtx)
	return nil
}

// Stop halts planting.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return ErrNotStarted
	}
	cancel()
	s.wg.Wait()
	return nil
}

// Run returns a function suitable for errgroup.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return s.Stop()
	}
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	s.plant(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.plant(ctx)
		}
	}
}

func (s *Scheduler) plant(ctx context.Context) {
	s.mu.Lock()
	entries := make([]schedulerEntry, len(s.entries))
	copy(entries, s.entries)
	s.mu.Unlock()

	now := time.Now()
	for _, e := range entries {
		if err := s.storage.SchedulePeriodicTask(ctx, e.name, e.queue, e.schedule.Next(now)); err != nil {
			s.logger.ErrorContext(ctx, "schedule periodic task",
				slog.String("task_name", e.name),
				slog.String("error", err.Error()))
		}
	}
}
