// Package logger builds the application's slog.Logger.
//
// Production gets JSON output at info level for log aggregation; development
// gets text output at debug level. Context extractors inject request-scoped
// attributes (request id, creator id) into every record logged with a
// context-aware method.
package logger
