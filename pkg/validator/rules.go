package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// RequiredString fails on empty or whitespace-only values.
func RequiredString(field, value string) Rule {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return fail(field, "is required")
		}
		return nil
	}
}

// MaxLenString fails when the value exceeds max runes.
func MaxLenString(field, value string, max int) Rule {
	return func() *ValidationError {
		if utf8.RuneCountInString(value) > max {
			return fail(field, fmt.Sprintf("must be at most %d characters", max))
		}
		return nil
	}
}

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// ValidCurrencyCode accepts ISO 4217 style three-letter codes.
func ValidCurrencyCode(field, value string) Rule {
	return func() *ValidationError {
		if !currencyCodeRe.MatchString(value) {
			return fail(field, "must be a three-letter currency code")
		}
		return nil
	}
}

var accountNumberRe = regexp.MustCompile(`^[0-9]{9,18}$`)

// ValidAccountNumber accepts 9 to 18 digit bank account numbers.
func ValidAccountNumber(field, value string) Rule {
	return func() *ValidationError {
		if !accountNumberRe.MatchString(value) {
			return fail(field, "must be 9 to 18 digits")
		}
		return nil
	}
}

var ifscRe = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)

// ValidIFSC accepts Indian bank branch codes: four letters, a zero, six
// alphanumerics.
func ValidIFSC(field, value string) Rule {
	return func() *ValidationError {
		if !ifscRe.MatchString(value) {
			return fail(field, "must be a valid IFSC code")
		}
		return nil
	}
}
