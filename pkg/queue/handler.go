package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

type (
	// Handler consumes tasks whose Name matches Name().
	Handler interface {
		Name() string
		Handle(ctx context.Context, payload json.RawMessage) error
	}

	TaskHandlerFunc[T any]  func(ctx context.Context, payload T) error
	PeriodicTaskHandlerFunc func(ctx context.Context) error
)

// NewTaskHandler wraps a typed function into a Handler. The handler name is
// derived from T, matching what Enqueue derives from the payload value.
func NewTaskHandler[T any](handler TaskHandlerFunc[T]) Handler {
	var zero T
	return &taskHandler[T]{name: taskNameFor(zero), handler: handler}
}

// NewPeriodicTaskHandler wraps a payload-less function under an explicit
// name, for tasks planted by the Scheduler.
func NewPeriodicTaskHandler(name string, handler PeriodicTaskHandlerFunc) Handler {
	return &periodicHandler{name: name, handler: handler}
}

type taskHandler[T any] struct {
	name    string
	handler TaskHandlerFunc[T]
}

func (h *taskHandler[T]) Name() string { return h.name }

func (h *taskHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", h.name, err)
	}
	return h.handler(ctx, t)
}

type periodicHandler struct {
	name    string
	handler PeriodicTaskHandlerFunc
}

func (h *periodicHandler) Name() string { return h.name }

func (h *periodicHandler) Handle(ctx context.Context, _ json.RawMessage) error {
	return h.handler(ctx)
}
