package notification

import "errors"

var (
	// ErrUnknownRecipient means the user id has no deliverable address.
	ErrUnknownRecipient = errors.New("unknown recipient")
)
