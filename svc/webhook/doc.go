// Package webhook receives and reconciles gateway events. The HTTP entry
// verifies the body signature and deduplicates on the gateway's event id; the
// processor dispatches each stored message to a handler inside one
// transaction, under the same row locks the synchronous confirmation path
// takes.
package webhook
