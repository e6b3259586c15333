package email

import (
	"context"
	"sync"
)

// Recorder captures sent messages for assertions in tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Message

	// Err, when set, is returned by Send to simulate delivery failures.
	Err error
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a snapshot of captured messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}

var (
	_ Sender = (*postmarkSender)(nil)
	_ Sender = (*DevSender)(nil)
	_ Sender = (*Recorder)(nil)
)
