package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lecturenotes/internal/notes"
)

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL expires a job's hash after its last write. Zero keeps it until Delete.
	TTL time.Duration
}

// Redis stores each job as one hash: field = slide key, value = note JSON.
// HSET replaces a field atomically, which gives per-slide last-write-wins.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}
	return NewRedis(client, opts), nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, opts RedisOptions) *Redis {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "lecturenotes"
	}
	return &Redis{client: client, prefix: prefix, ttl: opts.TTL}
}

func redisTTL(hours int) time.Duration {
	if hours <= 0 {
		return 0
	}
	return time.Duration(hours) * time.Hour
}

func (r *Redis) notesKey(jobID string) string { return r.prefix + ":notes:" + jobID }

func (r *Redis) finalKey(jobID string) string { return r.prefix + ":final:" + jobID }

func (r *Redis) Put(ctx context.Context, jobID, slideKey string, note notes.Note) error {
	payload, err := json.Marshal(note.Normalize())
	if err != nil {
		return fmt.Errorf("encode note: %w", err)
	}
	key := r.notesKey(jobID)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, slideKey, payload)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store note %s/%s: %w", jobID, slideKey, err)
	}
	return nil
}

func (r *Redis) Partial(ctx context.Context, jobID string) (Notes, error) {
	fields, err := r.client.HGetAll(ctx, r.notesKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load notes %s: %w", jobID, err)
	}
	out := make(Notes, 0, len(fields))
	for key, payload := range fields {
		var note notes.Note
		if err := json.Unmarshal([]byte(payload), &note); err != nil {
			return nil, fmt.Errorf("decode note %s: %w", key, err)
		}
		out = append(out, Entry{Key: key, Note: note.Normalize()})
	}
	out.sort()
	return out, nil
}

func (r *Redis) Finalize(ctx context.Context, jobID string) (Notes, error) {
	if err := r.client.Set(ctx, r.finalKey(jobID), time.Now().UTC().Format(time.RFC3339), r.ttl).Err(); err != nil {
		return nil, fmt.Errorf("mark final %s: %w", jobID, err)
	}
	return r.Partial(ctx, jobID)
}

func (r *Redis) Delete(ctx context.Context, jobID string) error {
	if err := r.client.Del(ctx, r.notesKey(jobID), r.finalKey(jobID)).Err(); err != nil {
		return fmt.Errorf("delete notes %s: %w", jobID, err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
