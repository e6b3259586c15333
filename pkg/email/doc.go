// Package email sends transactional mail. Production uses Postmark;
// development writes messages to disk and tests use the Recorder.
package email
