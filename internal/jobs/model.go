package jobs

import "time"

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ProgressFailed is the progress value of a failed job.
const ProgressFailed = -1

// Progress is the pollable view of a job.
type Progress struct {
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// Snapshot is a point-in-time copy of a job.
type Snapshot struct {
	ID        string    `json:"job_id"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	Owner     string    `json:"owner,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// FinishedAt is zero until the job reaches a terminal state.
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Options annotate a job at creation.
type Options struct {
	Owner    string
	Filename string
}
