// Package notifications delivers ntfy push notifications for recording
// lifecycle events.
//
// NewService returns an ntfy-backed implementation when a topic URL is
// configured and a no-op otherwise, so callers never need to check whether
// notifications are enabled. Delivery failures are returned to the caller,
// which logs them; they never affect a recording.
package notifications
