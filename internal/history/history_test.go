package history

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"lecturenotes/internal/notes"
	"lecturenotes/internal/results"
	"lecturenotes/internal/services"
)

func sampleNotes() results.Notes {
	return results.Sorted(map[string]notes.Note{
		"slide1": notes.Empty(),
		"slide2": notes.Empty(),
	})
}

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Save(ctx, Record{Filename: "os.pdf"}, nil); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error for missing user, got %v", err)
	}

	first, err := store.Save(ctx, Record{UserEmail: "a@example.com", Filename: "os.pdf", JobID: "job-1", Notes: sampleNotes()}, []SlideEmbedding{
		{SlideKey: "slide1", Caption: "process scheduling", Vector: []float32{1, 0, 0}},
		{SlideKey: "slide2", Caption: "virtual memory", Vector: []float32{0, 1, 0}},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first.ID == 0 || first.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp, got %+v", first)
	}
	if _, err := store.Save(ctx, Record{UserEmail: "b@example.com", Filename: "db.pdf", Notes: sampleNotes()}, []SlideEmbedding{
		{SlideKey: "slide1", Caption: "indexes", Vector: []float32{1, 0, 0}},
	}); err != nil {
		t.Fatalf("Save other user: %v", err)
	}

	list, err := store.List(ctx, "a@example.com")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Filename != "os.pdf" {
		t.Fatalf("unexpected list %+v", list)
	}
	if got := list[0].Notes.Keys(); len(got) != 2 || got[0] != "slide1" || got[1] != "slide2" {
		t.Fatalf("unexpected note keys %v", got)
	}

	got, err := store.Get(ctx, "a@example.com", "os.pdf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.JobID != "job-1" {
		t.Fatalf("unexpected record %+v", got)
	}
	if _, err := store.Get(ctx, "a@example.com", "db.pdf"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found across users, got %v", err)
	}

	hits, err := store.Search(ctx, "a@example.com", []float32{0.1, 0.9, 0}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].SlideKey != "slide2" || hits[0].Caption != "virtual memory" {
		t.Fatalf("unexpected hits %+v", hits)
	}
	if hits[0].Score <= 0.9 || hits[0].Score > 1 {
		t.Fatalf("unexpected score %v", hits[0].Score)
	}

	if err := store.Delete(ctx, "a@example.com", "os.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "a@example.com", "os.pdf"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	hits, err = store.Search(ctx, "a@example.com", []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search after delete: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits after delete, got %+v", hits)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryGetReturnsNewest(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	base := time.Date(2025, 5, 16, 12, 0, 0, 0, time.UTC)
	older, _ := store.Save(ctx, Record{UserEmail: "a@example.com", Filename: "os.pdf", JobID: "old", CreatedAt: base}, nil)
	newer, _ := store.Save(ctx, Record{UserEmail: "a@example.com", Filename: "os.pdf", JobID: "new", CreatedAt: base.Add(time.Hour)}, nil)

	got, err := store.Get(ctx, "a@example.com", "os.pdf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != newer.ID {
		t.Fatalf("expected newest record %d, got %d (older %d)", newer.ID, got.ID, older.ID)
	}
}

func TestMemorySearchSkipsMismatchedDimensions(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	_, _ = store.Save(ctx, Record{UserEmail: "a@example.com", Filename: "x.pdf"}, []SlideEmbedding{
		{SlideKey: "slide1", Vector: []float32{1, 0}},
	})
	hits, err := store.Search(ctx, "a@example.com", []float32{1, 0, 0}, 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %+v", hits)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("LECTURENOTES_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LECTURENOTES_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer store.Close()
	_, _ = store.pool.Exec(ctx, `DELETE FROM lecture_history WHERE user_email IN ('a@example.com', 'b@example.com')`)
	exerciseStore(t, store)
}

func TestOpenPostgresRequiresDSN(t *testing.T) {
	if _, err := OpenPostgres(context.Background(), " "); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
