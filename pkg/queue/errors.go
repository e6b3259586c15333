package queue

import "errors"

var (
	ErrStorageNil      = errors.New("queue storage is nil")
	ErrPayloadNil      = errors.New("task payload is nil")
	ErrNoTaskToClaim   = errors.New("no task to claim")
	ErrTaskNotFound    = errors.New("task not found")
	ErrHandlerNotFound = errors.New("no handler registered for task")
	ErrNoHandlers      = errors.New("worker has no registered handlers")
	ErrAlreadyStarted  = errors.New("already started")
	ErrNotStarted      = errors.New("not started")
)
