package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is used when the caller does not pick a queue.
const DefaultQueueName = "default"

// TaskStatus is the lifecycle state of a queued task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is a unit of deferred work. Name identifies the handler; for payload
// tasks it is derived from the payload's type so enqueuers and workers agree
// without a shared registry.
type Task struct {
	ID          uuid.UUID       `json:"id"`
	Queue       string          `json:"queue"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      TaskStatus      `json:"status"`
	RetryCount  int             `json:"retry_count"`
	MaxRetries  int             `json:"max_retries"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	LockedUntil *time.Time      `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID      `json:"locked_by,omitempty"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	LastError   *string         `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// DeadTask is a task that exhausted its retries, parked for manual
// inspection and requeueing.
type DeadTask struct {
	ID         uuid.UUID       `json:"id"`
	TaskID     uuid.UUID       `json:"task_id"`
	Queue      string          `json:"queue"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Error      string          `json:"error"`
	RetryCount int             `json:"retry_count"`
	FailedAt   time.Time       `json:"failed_at"`
}

// taskNameFor derives the handler name from a payload type, e.g.
// "membership.MemberJoinedEmail". Pointer and value payloads map to the
// same name.
func taskNameFor(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}
