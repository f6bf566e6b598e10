package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lecturenotes/internal/logging"
	"lecturenotes/internal/notes"
	"lecturenotes/internal/results"
	"lecturenotes/internal/services"
)

// ErrNotFound is returned for unknown jobs and for results that are not
// ready yet; callers cannot tell the two apart.
var ErrNotFound = fmt.Errorf("%w: job not found or result not available", services.ErrNotFound)

type job struct {
	mu       sync.Mutex
	snapshot Snapshot
}

// Manager is the job registry. The registry map is guarded by an RWMutex;
// each job carries its own mutex so pollers of one job do not block updates
// to another. No lock is held while calling the results store.
type Manager struct {
	mu     sync.RWMutex
	jobs   map[string]*job
	store  results.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager constructs a Manager over store. A nil store uses memory.
func NewManager(store results.Store, logger *slog.Logger, opts ...Option) *Manager {
	if store == nil {
		store = results.NewMemory()
	}
	m := &Manager{
		jobs:   make(map[string]*job),
		store:  store,
		logger: logging.NewComponentLogger(logger, "jobs"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create registers a pending job and returns its id.
func (m *Manager) Create(opts Options) string {
	now := m.now().UTC()
	j := &job{snapshot: Snapshot{
		Status:    StatusPending,
		Progress:  0,
		Message:   "queued",
		Owner:     opts.Owner,
		Filename:  opts.Filename,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		id := uuid.NewString()
		if _, exists := m.jobs[id]; exists {
			continue
		}
		j.snapshot.ID = id
		m.jobs[id] = j
		return id
	}
}

func (m *Manager) lookup(id string) *job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// Update records progress. The first update moves a pending job to running;
// progress >= 100 completes it and -1 fails it. While running, a lower
// non-negative value keeps the current progress but still takes the message.
// Unknown ids and finished jobs are ignored.
func (m *Manager) Update(id string, progress int, message string) {
	j := m.lookup(id)
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	s := &j.snapshot
	if s.Status.Terminal() {
		return
	}
	now := m.now().UTC()
	s.Message = message
	s.UpdatedAt = now
	if s.Status == StatusPending {
		s.Status = StatusRunning
	}
	switch {
	case progress < 0:
		s.Status = StatusFailed
		s.Progress = ProgressFailed
		s.FinishedAt = now
	case progress >= 100:
		s.Status = StatusCompleted
		s.Progress = 100
		s.FinishedAt = now
	case progress > s.Progress:
		s.Progress = progress
	}
}

// Reject fails a job that has not started, for input errors found before any
// stage runs. Running or finished jobs are left alone.
func (m *Manager) Reject(id, message string) bool {
	j := m.lookup(id)
	if j == nil {
		return false
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.snapshot.Status != StatusPending {
		return false
	}
	now := m.now().UTC()
	j.snapshot.Status = StatusFailed
	j.snapshot.Progress = ProgressFailed
	j.snapshot.Message = message
	j.snapshot.UpdatedAt = now
	j.snapshot.FinishedAt = now
	return true
}

// SavePartial stores one slide note without touching progress. A job
// deleted while the write is in flight has its notes dropped again.
func (m *Manager) SavePartial(ctx context.Context, id, slideKey string, note notes.Note) error {
	j := m.lookup(id)
	if j == nil {
		return nil
	}
	if err := m.store.Put(ctx, id, slideKey, note); err != nil {
		return services.Wrap(services.ErrResource, "notes", "save partial", slideKey, err)
	}
	if m.lookup(id) != j {
		if err := m.store.Delete(ctx, id); err != nil {
			return services.Wrap(services.ErrResource, "notes", "drop partial", id, err)
		}
	}
	return nil
}

// Progress returns the pollable state of a job.
func (m *Manager) Progress(id string) (Progress, error) {
	snap, err := m.Snapshot(id)
	if err != nil {
		return Progress{}, err
	}
	return Progress{Progress: snap.Progress, Message: snap.Message}, nil
}

// Snapshot returns a copy of the job.
func (m *Manager) Snapshot(id string) (Snapshot, error) {
	j := m.lookup(id)
	if j == nil {
		return Snapshot{}, ErrNotFound
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshot, nil
}

// List returns every job, newest first.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	all := make([]*job, 0, len(m.jobs))
	for _, j := range m.jobs {
		all = append(all, j)
	}
	m.mu.RUnlock()

	out := make([]Snapshot, 0, len(all))
	for _, j := range all {
		j.mu.Lock()
		out = append(out, j.snapshot)
		j.mu.Unlock()
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.After(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	return out
}

// Result returns the sorted notes of a completed job.
func (m *Manager) Result(ctx context.Context, id string) (results.Notes, error) {
	snap, err := m.Snapshot(id)
	if err != nil || snap.Status != StatusCompleted {
		return nil, ErrNotFound
	}
	final, err := m.store.Finalize(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrResource, "results", "finalize", id, err)
	}
	return final, nil
}

// Partial returns the notes saved so far regardless of job status.
func (m *Manager) Partial(ctx context.Context, id string) (results.Notes, error) {
	if m.lookup(id) == nil {
		return nil, ErrNotFound
	}
	partial, err := m.store.Partial(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrResource, "results", "partial", id, err)
	}
	return partial, nil
}

// Delete evicts a job and its stored notes.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.jobs[id]
	delete(m.jobs, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return services.Wrap(services.ErrResource, "results", "delete", id, err)
	}
	return nil
}

// Sweep evicts finished jobs older than maxAge and returns how many were
// removed. A non-positive maxAge does nothing.
func (m *Manager) Sweep(ctx context.Context, maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}
	cutoff := m.now().UTC().Add(-maxAge)
	var stale []string
	for _, snap := range m.List() {
		if snap.Status.Terminal() && snap.FinishedAt.Before(cutoff) {
			stale = append(stale, snap.ID)
		}
	}
	removed := 0
	for _, id := range stale {
		if err := m.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			logging.WarnWithContext(m.logger, "job eviction failed", "job_sweep_failed",
				logging.String(logging.FieldJobID, id),
				logging.Error(err),
				logging.String(logging.FieldImpact, "stored notes may linger until the next sweep"),
			)
			continue
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("finished jobs evicted",
			logging.Int("count", removed),
			logging.Duration("max_age", maxAge),
			logging.String(logging.FieldEventType, "job_sweep"),
		)
	}
	return removed
}

// Close releases the results store.
func (m *Manager) Close() error {
	return m.store.Close()
}
