package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lecturenotes/internal/config"
	"lecturenotes/internal/results"
	"lecturenotes/internal/services"
)

// ErrNotFound is returned when no record matches the user and filename.
var ErrNotFound = services.Wrap(services.ErrNotFound, "history", "lookup", "history entry not found", nil)

// Record is one saved lecture.
type Record struct {
	ID        int64         `json:"id"`
	UserEmail string        `json:"user_email"`
	Filename  string        `json:"filename"`
	JobID     string        `json:"job_id,omitempty"`
	Notes     results.Notes `json:"notes_json"`
	CreatedAt time.Time     `json:"created_at"`
}

// SlideEmbedding is a caption vector saved alongside a record.
type SlideEmbedding struct {
	SlideKey string
	Caption  string
	Vector   []float32
}

// Hit is one search result.
type Hit struct {
	RecordID int64   `json:"record_id"`
	Filename string  `json:"filename"`
	SlideKey string  `json:"slide_key"`
	Caption  string  `json:"caption"`
	Score    float64 `json:"score"`
}

// Store persists history records.
type Store interface {
	Save(ctx context.Context, rec Record, embeddings []SlideEmbedding) (Record, error)
	// List returns the user's records, newest first.
	List(ctx context.Context, user string) ([]Record, error)
	// Get returns the newest record for filename.
	Get(ctx context.Context, user, filename string) (Record, error)
	// Delete removes every record for filename.
	Delete(ctx context.Context, user, filename string) error
	// Search ranks the user's stored slides by cosine similarity to query.
	Search(ctx context.Context, user string, query []float32, limit int) ([]Hit, error)
	Close() error
}

const defaultSearchLimit = 5

// Open builds the backend selected by cfg.History.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.History.Backend {
	case "", config.HistoryBackendMemory:
		return NewMemory(), nil
	case config.HistoryBackendPostgres:
		return OpenPostgres(ctx, cfg.History.DSN)
	default:
		return nil, fmt.Errorf("unsupported history backend %q", cfg.History.Backend)
	}
}

func validateRecord(rec Record) error {
	if strings.TrimSpace(rec.UserEmail) == "" {
		return services.Wrap(services.ErrInput, "history", "save", "user email required", nil)
	}
	if strings.TrimSpace(rec.Filename) == "" {
		return services.Wrap(services.ErrInput, "history", "save", "filename required", nil)
	}
	return nil
}

func searchLimit(limit int) int {
	if limit <= 0 {
		return defaultSearchLimit
	}
	return limit
}
