// Package notification turns membership and payment task payloads into
// outbound email and Discord role updates. It owns no state of its own: the
// worker registers its handlers, each handler loads the rows it mentions and
// delivers through the email sender and Discord syncer it was built with.
package notification
