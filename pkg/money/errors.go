package money

import "errors"

var (
	ErrUnknownCurrency = errors.New("unknown currency code")
)
