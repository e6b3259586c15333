// Package money provides exact decimal arithmetic over minor-unit currencies.
//
// All billing math in the platform goes through this package; float64 is never
// used for monetary values. Amounts cross the payment gateway boundary in the
// currency's smallest unit (paise for INR, cents for USD), so the package
// centralizes the two lossy-looking conversions:
//
//	m := money.MustParse("5.706", "INR")
//	m.SubUnit() // 571, the amount is rounded to 2 places before scaling
//
// and the inverse:
//
//	m, err := money.FromSubUnit(57100, "INR") // 571.00 INR
package money
