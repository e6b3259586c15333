package gateway

import "errors"

var (
	ErrSignatureMismatch = errors.New("gateway signature mismatch")
	ErrMissingKeyID      = errors.New("gateway key id is required")
	ErrMissingKeySecret  = errors.New("gateway key secret is required")
	ErrNotFound          = errors.New("gateway object not found")
	ErrNoTransferCreated = errors.New("gateway returned no transfer items")
)
