package email

import "errors"

var (
	ErrInvalidConfig  = errors.New("email: invalid configuration")
	ErrInvalidMessage = errors.New("email: invalid message")
	ErrSendFailed     = errors.New("email: failed to send")
)
