// Package validator checks request fields against declarative rules and
// collects every failure instead of stopping at the first one:
//
//	err := validator.Apply(
//	    validator.RequiredString("beneficiary", req.Beneficiary),
//	    validator.ValidAccountNumber("account_number", req.AccountNumber),
//	    validator.ValidIFSC("ifsc", req.IFSC),
//	)
//
// A non-nil error is always a ValidationErrors, so HTTP handlers can render
// per-field messages.
package validator
