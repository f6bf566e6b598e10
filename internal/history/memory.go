package history

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"lecturenotes/internal/mapping"
)

type memoryEntry struct {
	record     Record
	embeddings []SlideEmbedding
}

// Memory keeps history in process memory.
type Memory struct {
	mu      sync.RWMutex
	nextID  int64
	entries []memoryEntry
	now     func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) Save(_ context.Context, rec Record, embeddings []SlideEmbedding) (Record, error) {
	if err := validateRecord(rec); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec.ID = m.nextID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.now().UTC()
	}
	rec.Notes = slices.Clone(rec.Notes)
	m.entries = append(m.entries, memoryEntry{record: rec, embeddings: slices.Clone(embeddings)})
	return rec, nil
}

func (m *Memory) List(_ context.Context, user string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, e := range m.entries {
		if e.record.UserEmail == user {
			out = append(out, e.record)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Get(ctx context.Context, user, filename string) (Record, error) {
	records, _ := m.List(ctx, user)
	for _, rec := range records {
		if rec.Filename == filename {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

func (m *Memory) Delete(_ context.Context, user, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	removed := 0
	for _, e := range m.entries {
		if e.record.UserEmail == user && e.record.Filename == filename {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Memory) Search(_ context.Context, user string, query []float32, limit int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var hits []Hit
	for _, e := range m.entries {
		if e.record.UserEmail != user {
			continue
		}
		for _, emb := range e.embeddings {
			score, err := mapping.Cosine(query, emb.Vector)
			if err != nil {
				continue
			}
			hits = append(hits, Hit{
				RecordID: e.record.ID,
				Filename: e.record.Filename,
				SlideKey: emb.SlideKey,
				Caption:  emb.Caption,
				Score:    mapping.Round4(score),
			})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if n := searchLimit(limit); len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}

func (m *Memory) Close() error { return nil }
