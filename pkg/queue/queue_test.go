package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorkit/creatorkit/pkg/queue"
)

type welcomeEmail struct {
	UserID string `json:"user_id"`
}

func TestEnqueuerMemoryStorage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("enqueue and claim", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		enq, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)

		require.NoError(t, enq.Enqueue(ctx, welcomeEmail{UserID: "u1"}))

		task, err := storage.ClaimTask(ctx, uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "queue_test.welcomeEmail", task.Name)
		assert.Equal(t, queue.TaskStatusProcessing, task.Status)

		// Claimed tasks are invisible to other workers.
		_, err = storage.ClaimTask(ctx, uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)

		require.NoError(t, storage.CompleteTask(ctx, task.ID))
		tasks := storage.Tasks()
		require.Len(t, tasks, 1)
		assert.Equal(t, queue.TaskStatusCompleted, tasks[0].Status)
	})

	t.Run("delayed task is not claimable", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		enq, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)

		require.NoError(t, enq.Enqueue(ctx, welcomeEmail{UserID: "u1"}, queue.WithDelay(time.Hour)))

		_, err = storage.ClaimTask(ctx, uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoTaskToClaim)
	})

	t.Run("expired lock is reclaimed by another worker", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		enq, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)

		require.NoError(t, enq.Enqueue(ctx, welcomeEmail{UserID: "u1"}))

		// First worker claims with a short lock and dies before completing.
		crashed := uuid.New()
		task, err := storage.ClaimTask(ctx, crashed, []string{queue.DefaultQueueName}, 10*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(50 * time.Millisecond)

		survivor := uuid.New()
		reclaimed, err := storage.ClaimTask(ctx, survivor, []string{queue.DefaultQueueName}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, task.ID, reclaimed.ID)
		require.NotNil(t, reclaimed.LockedBy)
		assert.Equal(t, survivor, *reclaimed.LockedBy)
	})

	t.Run("exhausted retries land in dead letter queue", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		enq, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)

		require.NoError(t, enq.Enqueue(ctx, welcomeEmail{UserID: "u1"}, queue.WithMaxRetries(1)))

		task, err := storage.ClaimTask(ctx, uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		require.NoError(t, err)

		require.NoError(t, storage.FailTask(ctx, task.ID, "smtp down"))
		require.NoError(t, storage.MoveToDeadLetter(ctx, task.ID))

		assert.Empty(t, storage.Tasks())
		dead := storage.DeadTasks()
		require.Len(t, dead, 1)
		assert.Equal(t, task.ID, dead[0].TaskID)
		assert.Equal(t, "smtp down", dead[0].Error)
	})

	t.Run("nil payload rejected", func(t *testing.T) {
		t.Parallel()

		enq, err := queue.NewEnqueuer(queue.NewMemoryStorage())
		require.NoError(t, err)
		assert.ErrorIs(t, enq.Enqueue(ctx, nil), queue.ErrPayloadNil)
	})
}

func TestInline(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("dispatches synchronously", func(t *testing.T) {
		t.Parallel()

		var got welcomeEmail
		inline := queue.NewInline()
		inline.RegisterHandlers(queue.NewTaskHandler(func(ctx context.Context, p welcomeEmail) error {
			got = p
			return nil
		}))

		require.NoError(t, inline.Enqueue(ctx, welcomeEmail{UserID: "u42"}))
		assert.Equal(t, "u42", got.UserID)
	})

	t.Run("handler error propagates", func(t *testing.T) {
		t.Parallel()

		sentinel := errors.New("boom")
		inline := queue.NewInline()
		inline.RegisterHandlers(queue.NewTaskHandler(func(ctx context.Context, p welcomeEmail) error {
			return sentinel
		}))

		assert.ErrorIs(t, inline.Enqueue(ctx, welcomeEmail{}), sentinel)
	})

	t.Run("unknown payload type", func(t *testing.T) {
		t.Parallel()

		inline := queue.NewInline()
		assert.ErrorIs(t, inline.Enqueue(ctx, welcomeEmail{}), queue.ErrHandlerNotFound)
	})
}

func TestSchedules(t *testing.T) {
	t.Parallel()

	t.Run("interval", func(t *testing.T) {
		t.Parallel()

		after := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		assert.Equal(t, after.Add(15*time.Minute), queue.Every(15*time.Minute).Next(after))
	})

	t.Run("daily before wall clock", func(t *testing.T) {
		t.Parallel()

		after := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)
		next := queue.DailyAt(4, 30).Next(after)
		assert.Equal(t, time.Date(2024, 3, 1, 4, 30, 0, 0, time.UTC), next)
	})

	t.Run("daily after wall clock rolls to tomorrow", func(t *testing.T) {
		t.Parallel()

		after := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
		next := queue.DailyAt(4, 30).Next(after)
		assert.Equal(t, time.Date(2024, 3, 2, 4, 30, 0, 0, time.UTC), next)
	})
}

func TestSchedulePeriodicTaskDedupe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()

	runAt := time.Now().Add(-time.Minute)
	require.NoError(t, storage.SchedulePeriodicTask(ctx, "billing.refresh_memberships", queue.DefaultQueueName, runAt))
	require.NoError(t, storage.SchedulePeriodicTask(ctx, "billing.refresh_memberships", queue.DefaultQueueName, runAt.Add(time.Hour)))
	require.Len(t, storage.Tasks(), 1)

	// After completion a new run can be planted.
	task, err := storage.ClaimTask(ctx, uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
	require.NoError(t, err)
	require.NoError(t, storage.CompleteTask(ctx, task.ID))

	require.NoError(t, storage.SchedulePeriodicTask(ctx, "billing.refresh_memberships", queue.DefaultQueueName, runAt.Add(time.Hour)))
	assert.Len(t, storage.Tasks(), 2)
}

func TestWorkerProcessesTask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := queue.NewMemoryStorage()
	enq, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	done := make(chan welcomeEmail, 1)
	worker, err := queue.NewWorker(storage,
		queue.WithPullInterval(10*time.Millisecond),
		queue.WithMaxConcurrentTasks(2),
	)
	require.NoError(t, err)
	worker.RegisterHandlers(queue.NewTaskHandler(func(ctx context.Context, p welcomeEmail) error {
		done <- p
		return nil
	}))

	require.NoError(t, enq.Enqueue(ctx, welcomeEmail{UserID: "u7"}))
	require.NoError(t, worker.Start(ctx))
	t.Cleanup(func() { _ = worker.Stop() })

	select {
	case p := <-done:
		assert.Equal(t, "u7", p.UserID)
	case <-time.After(2 * time.Second):
		t.Fatal("task was not processed in time")
	}
}
