// Package gateway defines the payment processor boundary.
//
// The Client interface is the narrow contract the billing core consumes:
// orders, plans, subscriptions, payment fetch/capture, transfers, and
// signature verification. Calls are synchronous HTTP with no built-in retry;
// callers key all record creation on gateway-assigned ids so a retried call
// never double-creates anything.
//
// RazorpayClient is the production implementation over the official SDK.
// Fake is a deterministic in-memory implementation for tests.
package gateway
