package notes_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"lecturenotes/internal/notes"
)

func TestParseSectionsWellFormed(t *testing.T) {
	text := `1. Concise Summary Notes
Cats are mammals.

2. Bullet Point Notes
- purr
- nap

3. Keyword Notes
cat: a mammal

4. Chart/Table Summary
Omitted`
	got := notes.ParseSections(text)
	if got.ConciseSummary != "Cats are mammals." {
		t.Fatalf("summary = %q", got.ConciseSummary)
	}
	if got.BulletPoints != "- purr\n- nap" {
		t.Fatalf("bullets = %q", got.BulletPoints)
	}
	if got.Keywords != "cat: a mammal" {
		t.Fatalf("keywords = %q", got.Keywords)
	}
	if got.ChartTable != notes.Omitted {
		t.Fatalf("chart = %q", got.ChartTable)
	}
}

func TestParseSectionsDecoratedHeaders(t *testing.T) {
	text := "## **1. Concise Summary Notes:**\nsummary\n### 2. bullet point notes\n* one\n**3. Keyword Notes** kw inline\n"
	got := notes.ParseSections(text)
	if got.ConciseSummary != "summary" {
		t.Fatalf("summary = %q", got.ConciseSummary)
	}
	if got.BulletPoints != "* one" {
		t.Fatalf("bullets = %q", got.BulletPoints)
	}
	if got.Keywords != "kw inline" {
		t.Fatalf("keywords = %q", got.Keywords)
	}
	if got.ChartTable != notes.Omitted {
		t.Fatalf("missing section should be Omitted, got %q", got.ChartTable)
	}
}

func TestParseSectionsOutOfOrderHeaderIsBody(t *testing.T) {
	text := "2. Bullet Point Notes\n- a\n1. Concise Summary Notes\nlate"
	got := notes.ParseSections(text)
	if got.ConciseSummary != notes.Omitted {
		t.Fatalf("summary after bullets must not be parsed, got %q", got.ConciseSummary)
	}
	if got.BulletPoints != "- a\n1. Concise Summary Notes\nlate" {
		t.Fatalf("bullets = %q", got.BulletPoints)
	}
}

func TestParseSectionsGarbage(t *testing.T) {
	got := notes.ParseSections("I cannot help with that.")
	for _, v := range []string{got.ConciseSummary, got.BulletPoints, got.Keywords, got.ChartTable} {
		if v != notes.Omitted {
			t.Fatalf("expected all Omitted, got %+v", got)
		}
	}
}

type stubGenerator struct {
	text     string
	err      error
	caption  string
	segments []string
}

func (g *stubGenerator) GenerateNote(_ context.Context, caption string, segments []string) (string, error) {
	g.caption = caption
	g.segments = segments
	return g.text, g.err
}

func TestAssembleAttachesSegments(t *testing.T) {
	gen := &stubGenerator{text: "1. Concise Summary Notes\nsum\n2. Bullet Point Notes\n- b"}
	note, err := notes.NewAssembler(gen).Assemble(context.Background(), "caption", []notes.Contribution{
		{Index: 3, Text: "third"},
		{Index: 7, Text: "seventh", Important: true, Reason: " key definition "},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if gen.caption != "caption" || len(gen.segments) != 2 || gen.segments[1] != "seventh" {
		t.Fatalf("generator inputs: %q %q", gen.caption, gen.segments)
	}
	if note.Keywords != notes.Omitted || note.ChartTable != notes.Omitted {
		t.Fatalf("missing sections should be Omitted: %+v", note)
	}
	seg, ok := note.Segments["segment7"]
	if !ok || seg.IsImportant != "true" || seg.Reason != "key definition" {
		t.Fatalf("segment7 = %+v", seg)
	}
	if s3 := note.Segments["segment3"]; s3.IsImportant != "false" || s3.Reason != "" || s3.LinkedConcept != "" || s3.PageNumber != "" {
		t.Fatalf("segment3 = %+v", s3)
	}
	if err := note.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestAssembleNoSegmentsHasEmptyMap(t *testing.T) {
	note, err := notes.NewAssembler(&stubGenerator{}).Assemble(context.Background(), "caption", nil)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	data, err := json.Marshal(note)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range notes.RequiredKeys {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("missing key %q in %s", key, data)
		}
	}
	if string(decoded[notes.KeySegments]) != "{}" {
		t.Fatalf("Segments should serialize as {}, got %s", decoded[notes.KeySegments])
	}
}

func TestAssembleGeneratorError(t *testing.T) {
	boom := errors.New("boom")
	_, err := notes.NewAssembler(&stubGenerator{err: boom}).Assemble(context.Background(), "c", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped generator error, got %v", err)
	}
}

func TestKeys(t *testing.T) {
	if notes.SlideKey(0) != "slide1" || notes.SegmentKey(0) != "segment0" {
		t.Fatal("unexpected key format")
	}
	if n, ok := notes.KeyNumber("slide12", "slide"); !ok || n != 12 {
		t.Fatalf("KeyNumber = %d, %v", n, ok)
	}
	if _, ok := notes.KeyNumber("slideX", "slide"); ok {
		t.Fatal("expected failure for non-numeric suffix")
	}
}
