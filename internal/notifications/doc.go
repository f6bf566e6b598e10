// Package notifications pushes job lifecycle alerts to an ntfy topic.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers never need to nil-check. Delivery failures are returned to the
// caller, which logs them; they never fail a job.
package notifications
