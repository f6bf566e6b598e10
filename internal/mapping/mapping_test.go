package mapping_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"lecturenotes/internal/mapping"
	"lecturenotes/internal/services"
)

// keywordEmbedder maps text onto fixed axes by keyword presence.
type keywordEmbedder struct {
	axes  []string
	calls int
}

func (e *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(e.axes))
		lower := strings.ToLower(text)
		for j, axis := range e.axes {
			vec[j] = float32(strings.Count(lower, axis))
		}
		out[i] = vec
	}
	return out, nil
}

func TestMapCatsAndDogs(t *testing.T) {
	emb := &keywordEmbedder{axes: []string{"cat", "dog"}}
	m := mapping.New(emb)
	results, err := m.Map(context.Background(),
		[]string{"cats purr and cats nap", "dogs bark loudly", "nothing relevant"},
		[]string{"All about cats", "All about dogs"},
	)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected one result per segment, got %d", len(results))
	}
	if results[0].MatchedSlideIndex != 0 || results[0].SimilarityScore != 1 {
		t.Fatalf("segment 0: %+v", results[0])
	}
	if results[1].MatchedSlideIndex != 1 || results[1].SimilarityScore != 1 {
		t.Fatalf("segment 1: %+v", results[1])
	}
	// zero vector scores 0 everywhere; tie goes to slide 0
	if results[2].MatchedSlideIndex != 0 || results[2].SimilarityScore != 0 {
		t.Fatalf("segment 2: %+v", results[2])
	}
	for i, r := range results {
		if r.SegmentIndex != i {
			t.Fatalf("result %d has segment index %d", i, r.SegmentIndex)
		}
	}
}

func TestTiesPickLowestIndex(t *testing.T) {
	emb := &keywordEmbedder{axes: []string{"cat", "dog"}}
	idx, err := mapping.New(emb).Index(context.Background(), []string{"cat dog", "dog cat", "cat"})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	r, err := idx.Match(context.Background(), 4, "cat and dog")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if r.MatchedSlideIndex != 0 || r.SegmentIndex != 4 {
		t.Fatalf("expected slide 0 for segment 4, got %+v", r)
	}
}

func TestIndexEmbedsCaptionsOnce(t *testing.T) {
	emb := &keywordEmbedder{axes: []string{"cat"}}
	idx, err := mapping.New(emb).Index(context.Background(), []string{"cat"})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := idx.Match(context.Background(), i, "cat"); err != nil {
			t.Fatalf("Match: %v", err)
		}
	}
	if emb.calls != 4 {
		t.Fatalf("expected 1 caption call + 3 segment calls, got %d", emb.calls)
	}
	if idx.Len() != 1 || len(idx.Vectors()) != 1 {
		t.Fatalf("unexpected index size %d", idx.Len())
	}
}

func TestZeroSlidesIsInputError(t *testing.T) {
	_, err := mapping.New(&keywordEmbedder{}).Map(context.Background(), []string{"x"}, nil)
	if !errors.Is(err, mapping.ErrNoSlides) {
		t.Fatalf("expected ErrNoSlides, got %v", err)
	}
	if !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "no slides to map against") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestCosine(t *testing.T) {
	if _, err := mapping.Cosine([]float32{1}, []float32{1, 2}); !errors.Is(err, mapping.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
	got, err := mapping.Cosine([]float32{0, 0}, []float32{1, 1})
	if err != nil || got != 0 {
		t.Fatalf("zero vector: got %v, %v", got, err)
	}
	got, _ = mapping.Cosine([]float32{1, 0}, []float32{-1, 0})
	if got != -1 {
		t.Fatalf("opposite vectors: got %v", got)
	}
	got, _ = mapping.Cosine([]float32{1, 2}, []float32{2, 1})
	if math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("expected 0.8, got %v", got)
	}
}

func TestRound4(t *testing.T) {
	if got := mapping.Round4(0.123456); got != 0.1235 {
		t.Fatalf("Round4 = %v", got)
	}
}

func TestGroupBySlide(t *testing.T) {
	groups := mapping.GroupBySlide([]mapping.Result{
		{SegmentIndex: 0, MatchedSlideIndex: 1},
		{SegmentIndex: 1, MatchedSlideIndex: 1},
		{SegmentIndex: 2, MatchedSlideIndex: 0},
	}, 3)
	if len(groups) != 3 || len(groups[2]) != 0 || groups[2] == nil {
		t.Fatalf("unexpected groups %v", groups)
	}
	if len(groups[1]) != 2 || groups[1][0] != 0 || groups[1][1] != 1 {
		t.Fatalf("slide 1 group %v", groups[1])
	}
}

// nanEmbedder returns well-formed caption vectors and NaN segment vectors.
type nanEmbedder struct {
	calls int
}

func (e *nanEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		if e.calls == 1 {
			out[i] = []float32{1, float32(i)}
			continue
		}
		nan := float32(math.NaN())
		out[i] = []float32{nan, nan}
	}
	return out, nil
}

func TestNonFiniteEmbeddingFailsMapping(t *testing.T) {
	m := mapping.New(&nanEmbedder{})
	results, err := m.Map(context.Background(), []string{"seg"}, []string{"slide one", "slide two"})
	if err == nil {
		t.Fatalf("expected error, got results %+v", results)
	}
	if !errors.Is(err, mapping.ErrNonFinite) || !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected wrapped non-finite external error, got %v", err)
	}
}

func TestCosineRejectsInf(t *testing.T) {
	inf := float32(math.Inf(1))
	if _, err := mapping.Cosine([]float32{inf, 0}, []float32{1, 0}); !errors.Is(err, mapping.ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
}

func TestIndexMatchSingleSegment(t *testing.T) {
	emb := &keywordEmbedder{axes: []string{"cat", "dog"}}
	idx, err := mapping.New(emb).Index(context.Background(), []string{"All about cats", "All about dogs"})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	r, err := idx.Match(context.Background(), 4, "the dog barked")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if r.SegmentIndex != 4 || r.MatchedSlideIndex != 1 || r.SimilarityScore != 1 {
		t.Fatalf("unexpected match %+v", r)
	}
}
