package results

import (
	"context"
	"sync"

	"lecturenotes/internal/notes"
)

type memoryBucket struct {
	mu    sync.RWMutex
	notes map[string]notes.Note
}

// Memory keeps notes in process. Each job has its own bucket lock so
// pollers of one job do not contend with writers of another.
type Memory struct {
	mu      sync.RWMutex
	buckets map[string]*memoryBucket
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]*memoryBucket)}
}

func (m *Memory) bucket(jobID string, create bool) *memoryBucket {
	m.mu.RLock()
	b := m.buckets[jobID]
	m.mu.RUnlock()
	if b != nil || !create {
		return b
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if b = m.buckets[jobID]; b == nil {
		b = &memoryBucket{notes: make(map[string]notes.Note)}
		m.buckets[jobID] = b
	}
	return b
}

func (m *Memory) Put(_ context.Context, jobID, slideKey string, note notes.Note) error {
	b := m.bucket(jobID, true)
	stored := note.Normalize().Clone()
	b.mu.Lock()
	b.notes[slideKey] = stored
	b.mu.Unlock()
	return nil
}

func (m *Memory) Partial(_ context.Context, jobID string) (Notes, error) {
	b := m.bucket(jobID, false)
	if b == nil {
		return Notes{}, nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot(), nil
}

func (m *Memory) Finalize(_ context.Context, jobID string) (Notes, error) {
	b := m.bucket(jobID, true)
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot(), nil
}

func (m *Memory) Delete(_ context.Context, jobID string) error {
	m.mu.Lock()
	delete(m.buckets, jobID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// snapshot copies notes so callers cannot mutate stored segments. Caller
// holds b.mu.
func (b *memoryBucket) snapshot() Notes {
	out := make(Notes, 0, len(b.notes))
	for k, v := range b.notes {
		out = append(out, Entry{Key: k, Note: v.Clone()})
	}
	out.sort()
	return out
}
