package webhook

import "errors"

var (
	// ErrDuplicateMessage is returned when a message with the same gateway
	// event id was already stored.
	ErrDuplicateMessage = errors.New("webhook message already received")

	ErrMessageNotFound = errors.New("webhook message not found")
)
