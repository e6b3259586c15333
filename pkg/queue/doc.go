// Package queue provides transactional background task processing.
//
// Tasks are written to the same Postgres database as the business rows they
// belong to, so a billing mutation and its follow-up work (emails, stat
// refreshes, membership sweeps) commit or roll back together. A Worker polls
// for due tasks, claims them with row locks, and dispatches to registered
// handlers; exhausted retries land in a dead-letter table.
//
// Two enqueueing strategies implement TaskEnqueuer: Enqueuer persists tasks
// for asynchronous execution, while Inline runs the handler immediately in
// the caller's goroutine. Inline is the strategy used by tests and small
// deployments where an extra worker process is not worth running.
package queue
