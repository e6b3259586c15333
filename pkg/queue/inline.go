package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Inline executes tasks synchronously in the caller's goroutine instead of
// persisting them. Scheduling options are ignored; delayed tasks run
// immediately. Handler errors propagate to the caller, which makes billing
// flows fully deterministic under test.
type Inline struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewInline creates an Inline enqueuer with no handlers registered.
func NewInline() *Inline {
	return &Inline{handlers: make(map[string]Handler)}
}

// RegisterHandlers adds handlers; later registrations under the same name
// win.
func (i *Inline) RegisterHandlers(handlers ...Handler) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			i.handlers[h.Name()] = h
		}
	}
}

func (i *Inline) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) error {
	if payload == nil {
		return ErrPayloadNil
	}

	name := taskNameFor(payload)

	i.mu.RLock()
	handler, ok := i.handlers[name]
	i.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrHandlerNotFound, name)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload of type %T: %w", payload, err)
	}
	return handler.Handle(ctx, raw)
}

var _ TaskEnqueuer = (*Inline)(nil)
