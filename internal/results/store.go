package results

import (
	"context"
	"fmt"

	"lecturenotes/internal/config"
	"lecturenotes/internal/notes"
)

// Store persists slide notes per job.
type Store interface {
	// Put stores note under slideKey, replacing any previous value.
	Put(ctx context.Context, jobID, slideKey string, note notes.Note) error
	// Partial returns whatever has been stored so far, sorted. Unknown jobs
	// yield an empty result.
	Partial(ctx context.Context, jobID string) (Notes, error)
	// Finalize marks the job's notes complete and returns them sorted.
	Finalize(ctx context.Context, jobID string) (Notes, error)
	// Delete drops every note for the job.
	Delete(ctx context.Context, jobID string) error
	Close() error
}

// Open builds the backend selected by cfg.Results.Backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Results.Backend {
	case "", config.ResultsBackendMemory:
		return NewMemory(), nil
	case config.ResultsBackendSQLite:
		return OpenSQLite(ctx, cfg.Results.SQLitePath)
	case config.ResultsBackendRedis:
		return OpenRedis(ctx, RedisOptions{
			Addr:      cfg.Results.RedisAddr,
			Password:  cfg.Results.RedisPassword,
			DB:        cfg.Results.RedisDB,
			KeyPrefix: cfg.Results.RedisKeyPrefix,
			TTL:       redisTTL(cfg.Results.RedisTTLHours),
		})
	default:
		return nil, fmt.Errorf("unsupported results backend %q", cfg.Results.Backend)
	}
}
