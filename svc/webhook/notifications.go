package webhook

import "github.com/google/uuid"

// ProcessMessageTask asks the worker to reconcile one stored webhook message.
type ProcessMessageTask struct {
	MessageID uuid.UUID `json:"message_id"`
}
