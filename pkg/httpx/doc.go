// Package httpx holds the JSON request/response conventions shared by the
// API handlers: a standard envelope, typed HTTP errors carrying stable
// machine-readable codes, and strict request decoding.
package httpx
