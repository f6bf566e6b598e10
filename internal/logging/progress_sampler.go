package logging

import (
	"strings"
	"sync"
)

// ProgressSampler thins per-job progress logging. A job emits when its stage
// changes or its percent enters a new bucket; anything else is dropped.
// Safe for concurrent use across jobs.
type ProgressSampler struct {
	bucketSize int
	mu         sync.Mutex
	jobs       map[string]sampleState
}

type sampleState struct {
	stage  string
	bucket int
}

// NewProgressSampler returns a sampler with the given bucket width in percent
// points. Non-positive widths fall back to 10.
func NewProgressSampler(bucketSize int) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, jobs: make(map[string]sampleState)}
}

// ShouldLog reports whether a progress event for jobID should be logged.
// Negative percents (failure) always emit.
func (s *ProgressSampler) ShouldLog(jobID string, percent int, stage string) bool {
	if s == nil {
		return true
	}
	if percent < 0 {
		return true
	}
	stage = strings.TrimSpace(stage)
	bucket := min(percent, 100) / s.bucketSize

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, seen := s.jobs[jobID]
	if !seen {
		s.jobs[jobID] = sampleState{stage: stage, bucket: bucket}
		return true
	}
	emit := false
	if stage != "" && stage != prev.stage {
		prev.stage = stage
		emit = true
	}
	if bucket > prev.bucket {
		prev.bucket = bucket
		emit = true
	}
	s.jobs[jobID] = prev
	return emit
}

// Forget drops sampler state for a finished job.
func (s *ProgressSampler) Forget(jobID string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.jobs, jobID)
	s.mu.Unlock()
}
