package api

import (
	"lecturenotes/internal/history"
	"lecturenotes/internal/jobs"
	"lecturenotes/internal/preflight"
)

// JobAccepted is returned by POST /api/jobs.
type JobAccepted struct {
	JobID string `json:"job_id"`
}

// JobView is a job snapshot plus whether a goroutine still runs it.
type JobView struct {
	jobs.Snapshot
	Active bool `json:"active"`
}

// JobListResponse wraps GET /api/jobs.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// CancelResponse is returned by POST /api/jobs/:id/cancel.
type CancelResponse struct {
	JobID     string `json:"job_id"`
	Cancelled bool   `json:"cancelled"`
}

// HistoryListResponse wraps GET /api/history.
type HistoryListResponse struct {
	Records []history.Record `json:"records"`
}

// SearchResponse wraps GET /api/history/search.
type SearchResponse struct {
	Query string        `json:"query"`
	Hits  []history.Hit `json:"hits"`
}

// SessionStarted is returned by POST /api/realtime/start.
type SessionStarted struct {
	JobID string `json:"jobId"`
}

// HealthResponse wraps GET /api/health.
type HealthResponse struct {
	Ready  bool               `json:"ready"`
	Checks []preflight.Result `json:"checks"`
}

// PingResponse wraps GET /api/ping.
type PingResponse struct {
	PID           int   `json:"pid"`
	UptimeSeconds int64 `json:"uptime_seconds"`
	ActiveJobs    int   `json:"active_jobs"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Hint  string `json:"hint,omitempty"`
}
