package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"lecturenotes/internal/mapping"
	"lecturenotes/internal/services"
)

var postgresSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS lecture_history (
		id BIGSERIAL PRIMARY KEY,
		user_email TEXT NOT NULL,
		filename TEXT NOT NULL,
		job_id TEXT,
		notes_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lecture_history_user ON lecture_history(user_email, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS slide_embeddings (
		history_id BIGINT NOT NULL REFERENCES lecture_history(id) ON DELETE CASCADE,
		slide_key TEXT NOT NULL,
		caption TEXT NOT NULL,
		embedding vector NOT NULL,
		PRIMARY KEY (history_id, slide_key)
	)`,
}

// Postgres stores history in PostgreSQL with pgvector embeddings.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, pings and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "history", "open", "postgres dsn required", nil)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := &Postgres{pool: pool}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure history schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, rec Record, embeddings []SlideEmbedding) (Record, error) {
	if err := validateRecord(rec); err != nil {
		return Record{}, err
	}
	payload, err := json.Marshal(rec.Notes)
	if err != nil {
		return Record{}, fmt.Errorf("encode notes: %w", err)
	}
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("begin history tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO lecture_history (user_email, filename, job_id, notes_json)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, rec.UserEmail, rec.Filename, rec.JobID, payload).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("insert history: %w", err)
	}

	batch := &pgx.Batch{}
	for _, emb := range embeddings {
		if len(emb.Vector) == 0 {
			continue
		}
		batch.Queue(`
			INSERT INTO slide_embeddings (history_id, slide_key, caption, embedding)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (history_id, slide_key)
			DO UPDATE SET caption = EXCLUDED.caption, embedding = EXCLUDED.embedding
		`, rec.ID, emb.SlideKey, emb.Caption, pgvector.NewVector(emb.Vector))
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return Record{}, fmt.Errorf("insert slide embeddings: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Record{}, fmt.Errorf("commit history: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func (p *Postgres) List(ctx context.Context, user string) ([]Record, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, user_email, filename, COALESCE(job_id, ''), notes_json, created_at
		FROM lecture_history
		WHERE user_email = $1
		ORDER BY created_at DESC, id DESC
	`, user)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) Get(ctx context.Context, user, filename string) (Record, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, user_email, filename, COALESCE(job_id, ''), notes_json, created_at
		FROM lecture_history
		WHERE user_email = $1 AND filename = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, user, filename)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (p *Postgres) Delete(ctx context.Context, user, filename string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM lecture_history WHERE user_email = $1 AND filename = $2`, user, filename)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Search(ctx context.Context, user string, query []float32, limit int) ([]Hit, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT h.id, h.filename, e.slide_key, e.caption,
			   1 - (e.embedding <=> $1) AS similarity
		FROM slide_embeddings e
		JOIN lecture_history h ON h.id = e.history_id
		WHERE h.user_email = $2 AND vector_dims(e.embedding) = $3
		ORDER BY e.embedding <=> $1
		LIMIT $4
	`, pgvector.NewVector(query), user, len(query), searchLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var hit Hit
		if err := rows.Scan(&hit.RecordID, &hit.Filename, &hit.SlideKey, &hit.Caption, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hit.Score = mapping.Round4(hit.Score)
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec     Record
		payload []byte
	)
	if err := row.Scan(&rec.ID, &rec.UserEmail, &rec.Filename, &rec.JobID, &payload, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan history: %w", err)
	}
	if err := json.Unmarshal(payload, &rec.Notes); err != nil {
		return Record{}, fmt.Errorf("decode history notes: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}
