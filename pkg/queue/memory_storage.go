package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory task store for tests and single-process
// setups. It implements EnqueuerStorage, WorkerStorage and SchedulerStorage.
type MemoryStorage struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*Task
	dead  []DeadTask
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{tasks: make(map[uuid.UUID]*Task)}
}

func (s *MemoryStorage) CreateTask(ctx context.Context, task *Task) error {
	if task == nil {
		return ErrPayloadNil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *task
	s.tasks[cp.ID] = &cp
	return nil
}

func (s *MemoryStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var candidates []*Task
	for _, t := range s.tasks {
		if t.ScheduledAt.After(now) || !containsQueue(queues, t.Queue) {
			continue
		}
		// Pending tasks, plus processing tasks whose lock expired — the
		// worker holding them crashed and will never complete or fail them.
		switch t.Status {
		case TaskStatusPending:
		case TaskStatusProcessing:
			if t.LockedUntil == nil || t.LockedUntil.After(now) {
				continue
			}
		default:
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return nil, ErrNoTaskToClaim
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ScheduledAt.Before(candidates[j].ScheduledAt)
	})

	t := candidates[0]
	until := now.Add(lockDuration)
	t.Status = TaskStatusProcessing
	t.LockedUntil = &until
	t.LockedBy = &workerID

	cp := *t
	return &cp, nil
}

func (s *MemoryStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	now := time.Now()
	t.Status = TaskStatusCompleted
	t.ProcessedAt = &now
	t.LockedUntil = nil
	t.LockedBy = nil
	return nil
}

func (s *MemoryStorage) FailTask(ctx context.Context, taskID uuid.UUID, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	t.RetryCount++
	t.LastError = &errorMsg
	t.LockedUntil = nil
	t.LockedBy = nil

	if t.RetryCount >= t.MaxRetries {
		t.Status = TaskStatusFailed
		return nil
	}

	// Exponential backoff: 30s, 60s, 120s, ...
	t.Status = TaskStatusPending
	t.ScheduledAt = time.Now().Add(30 * time.Second << (t.RetryCount - 1))
	return nil
}

func (s *MemoryStorage) MoveToDeadLetter(ctx context.Context, taskID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}

	errMsg := ""
	if t.LastError != nil {
		errMsg = *t.LastError
	}
	s.dead = append(s.dead, DeadTask{
		ID:         uuid.New(),
		TaskID:     t.ID,
		Queue:      t.Queue,
		Name:       t.Name,
		Payload:    t.Payload,
		Error:      errMsg,
		RetryCount: t.RetryCount,
		FailedAt:   time.Now(),
	})
	delete(s.tasks, taskID)
	return nil
}

func (s *MemoryStorage) SchedulePeriodicTask(ctx context.Context, name, queue string, runAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tasks {
		if t.Name == name && (t.Status == TaskStatusPending || t.Status == TaskStatusProcessing) {
			return nil
		}
	}

	now := time.Now()
	t := &Task{
		ID:          uuid.New(),
		Queue:       queue,
		Name:        name,
		Status:      TaskStatusPending,
		MaxRetries:  1,
		ScheduledAt: runAt,
		CreatedAt:   now,
	}
	s.tasks[t.ID] = t
	return nil
}

// Tasks returns a snapshot of all stored tasks, for assertions.
func (s *MemoryStorage) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// DeadTasks returns a snapshot of the dead-letter queue.
func (s *MemoryStorage) DeadTasks() []DeadTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DeadTask, len(s.dead))
	copy(out, s.dead)
	return out
}

func containsQueue(queues []string, queue string) bool {
	for _, q := range queues {
		if q == queue {
			return true
		}
	}
	return false
}

var (
	_ EnqueuerStorage  = (*MemoryStorage)(nil)
	_ WorkerStorage    = (*MemoryStorage)(nil)
	_ SchedulerStorage = (*MemoryStorage)(nil)
)
