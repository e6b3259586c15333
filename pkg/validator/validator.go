package validator

import (
	"fmt"
	"strings"
)

// ValidationError is one failed rule.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors collects every failed rule from one Apply call.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(ve))
	for _, err := range ve {
		parts = append(parts, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether a rule failed for the field.
func (ve ValidationErrors) Has(field string) bool {
	for _, err := range ve {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Rule evaluates one field; nil means the field is valid.
type Rule func() *ValidationError

// Apply evaluates all rules and returns the collected failures, or nil when
// every rule passed.
func Apply(rules ...Rule) error {
	var ve ValidationErrors
	for _, rule := range rules {
		if err := rule(); err != nil {
			ve = append(ve, *err)
		}
	}
	if len(ve) > 0 {
		return ve
	}
	return nil
}

func fail(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
