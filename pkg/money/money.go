package money

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Money is an exact monetary amount in a single currency.
// The zero value is "0 in no currency" and is only valid as a placeholder.
type Money struct {
	Amount   decimal.Decimal
	Currency string // ISO 4217 code
}

// New returns a Money from a decimal amount and an ISO 4217 currency code.
func New(amount decimal.Decimal, currencyCode string) Money {
	return Money{Amount: amount, Currency: currencyCode}
}

// MustParse parses a decimal string into Money and panics on malformed input.
// Intended for constants and tests, never for untrusted data.
func MustParse(amount, currencyCode string) Money {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		panic(fmt.Sprintf("money: invalid amount %q: %v", amount, err))
	}
	return Money{Amount: d, Currency: currencyCode}
}

// Zero returns a zero amount in the given currency.
func Zero(currencyCode string) Money {
	return Money{Amount: decimal.Zero, Currency: currencyCode}
}

// subUnitScale returns the number of minor-unit digits for a currency (2 for
// INR/USD, 0 for JPY). Unknown codes default to 2 rather than failing, since
// the gateway is the system of record for which currencies actually occur.
func subUnitScale(currencyCode string) int32 {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return int32(scale)
}

// SubUnit converts the amount to integer minor units (rupee to paise).
// The amount is rounded to the currency scale BEFORE scaling: 5.706 INR is
// displayed and persisted as 5.71 everywhere else in the system, so a naive
// truncating conversion to 570 would silently drop a paisa.
func (m Money) SubUnit() int64 {
	scale := subUnitScale(m.Currency)
	return m.Amount.Round(scale).Shift(scale).IntPart()
}

// FromSubUnit converts integer minor units back into a Money value.
func FromSubUnit(amount int64, currencyCode string) (Money, error) {
	if _, err := currency.ParseISO(currencyCode); err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, currencyCode)
	}
	scale := subUnitScale(currencyCode)
	return Money{
		Amount:   decimal.New(amount, 0).Shift(-scale),
		Currency: currencyCode,
	}, nil
}

// DeductPlatformFee returns the amount remaining after deducting the
// creator's platform fee percentage. The rate is per creator, so callers
// resolve it before calling in.
func DeductPlatformFee(m Money, feePercent decimal.Decimal) Money {
	factor := decimal.NewFromInt(1).Sub(feePercent.Div(decimal.NewFromInt(100)))
	return Money{
		Amount:   m.Amount.Mul(factor).Round(subUnitScale(m.Currency)),
		Currency: m.Currency,
	}
}

// PercentChange reports the relative change between two values.
// Equal values report 0; growth from zero reports 100. Used by reporting,
// never by billing.
func PercentChange(current, previous decimal.Decimal) decimal.Decimal {
	if current.Equal(previous) {
		return decimal.Zero
	}
	if previous.IsZero() {
		return decimal.NewFromInt(100)
	}
	return current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100))
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Equal reports whether two Money values have the same currency and amount.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(subUnitScale(m.Currency)), m.Currency)
}
