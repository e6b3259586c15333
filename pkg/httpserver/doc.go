// Package httpserver wraps net/http's server with context-driven graceful
// shutdown, so binaries can run it under an errgroup next to the worker and
// scheduler.
package httpserver
