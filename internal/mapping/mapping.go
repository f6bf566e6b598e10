package mapping

import (
	"context"
	"errors"
	"fmt"
	"math"

	"lecturenotes/internal/services"
)

// ErrNoSlides is returned when mapping is attempted with zero captions.
var ErrNoSlides = services.Wrap(services.ErrInput, "map", "index captions", "no slides to map against", nil)

// Embedder produces one vector per input text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Result records the slide chosen for one segment.
type Result struct {
	SegmentIndex      int     `json:"segment_index"`
	MatchedSlideIndex int     `json:"matched_slide_index"`
	SimilarityScore   float64 `json:"similarity_score"`
}

// Mapper builds caption indexes and maps segments onto them.
type Mapper struct {
	embedder Embedder
}

// New constructs a Mapper backed by embedder.
func New(embedder Embedder) *Mapper {
	return &Mapper{embedder: embedder}
}

// Index holds caption embeddings for repeated matching.
type Index struct {
	embedder Embedder
	vectors  [][]float32
}

// Index embeds captions once. Zero captions returns ErrNoSlides.
func (m *Mapper) Index(ctx context.Context, captions []string) (*Index, error) {
	if len(captions) == 0 {
		return nil, ErrNoSlides
	}
	if m == nil || m.embedder == nil {
		return nil, services.Wrap(services.ErrConfiguration, "map", "index captions", "no embedder configured", nil)
	}
	vectors, err := m.embedder.Embed(ctx, captions)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "map", "embed captions", "caption embedding failed", err)
	}
	if len(vectors) != len(captions) {
		return nil, services.Wrap(services.ErrExternalService, "map", "embed captions",
			fmt.Sprintf("embedder returned %d vectors for %d captions", len(vectors), len(captions)), nil)
	}
	return &Index{embedder: m.embedder, vectors: vectors}, nil
}

// Map embeds every segment and assigns each to its most similar slide.
func (m *Mapper) Map(ctx context.Context, segments, captions []string) ([]Result, error) {
	idx, err := m.Index(ctx, captions)
	if err != nil {
		return nil, err
	}
	return idx.MatchAll(ctx, segments)
}

// MatchAll embeds segments in one call and matches each against the index.
func (x *Index) MatchAll(ctx context.Context, segments []string) ([]Result, error) {
	if len(segments) == 0 {
		return []Result{}, nil
	}
	vectors, err := x.embedder.Embed(ctx, segments)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "map", "embed segments", "segment embedding failed", err)
	}
	if len(vectors) != len(segments) {
		return nil, services.Wrap(services.ErrExternalService, "map", "embed segments",
			fmt.Sprintf("embedder returned %d vectors for %d segments", len(vectors), len(segments)), nil)
	}
	results := make([]Result, len(segments))
	for i, vec := range vectors {
		r, err := x.matchVector(i, vec)
		if err != nil {
			return nil, err
		}
		results[i] = r
	}
	return results, nil
}

// Len reports the number of slides in the index.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.vectors)
}

// Vectors returns the caption embeddings in slide order. Callers must not
// modify them.
func (x *Index) Vectors() [][]float32 {
	if x == nil {
		return nil
	}
	return x.vectors
}

// Match embeds a single segment and returns its best slide. Realtime
// sessions use it for chunks that arrive without slide dwell metadata.
func (x *Index) Match(ctx context.Context, segmentIndex int, text string) (Result, error) {
	vectors, err := x.embedder.Embed(ctx, []string{text})
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalService, "map", "embed segment", "segment embedding failed", err)
	}
	if len(vectors) != 1 {
		return Result{}, services.Wrap(services.ErrExternalService, "map", "embed segment",
			fmt.Sprintf("embedder returned %d vectors for 1 segment", len(vectors)), nil)
	}
	return x.matchVector(segmentIndex, vectors[0])
}

func (x *Index) matchVector(segmentIndex int, vec []float32) (Result, error) {
	best := -1
	bestScore := math.Inf(-1)
	for i, slide := range x.vectors {
		score, err := Cosine(vec, slide)
		if err != nil {
			return Result{}, services.Wrap(services.ErrExternalService, "map", "score segment",
				fmt.Sprintf("segment %d vs slide %d", segmentIndex, i), err)
		}
		// strict > keeps the lowest index on ties
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return Result{
		SegmentIndex:      segmentIndex,
		MatchedSlideIndex: best,
		SimilarityScore:   Round4(bestScore),
	}, nil
}

// ErrDimensionMismatch reports vectors of different lengths.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ErrNonFinite reports a NaN or infinite embedding component.
var ErrNonFinite = errors.New("embedding has non-finite component")

// Cosine returns the cosine similarity of a and b. A zero-norm vector scores 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		if !finite(x) || !finite(y) {
			return 0, fmt.Errorf("%w at dimension %d", ErrNonFinite, i)
		}
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	score := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if !finite(score) {
		return 0, fmt.Errorf("%w: score overflow", ErrNonFinite)
	}
	return math.Max(-1, math.Min(1, score)), nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Round4 rounds to four decimal places.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// GroupBySlide buckets segment indexes by their matched slide. Every slide in
// [0, slides) gets an entry, possibly empty; segment order is preserved.
func GroupBySlide(results []Result, slides int) [][]int {
	groups := make([][]int, slides)
	for i := range groups {
		groups[i] = []int{}
	}
	for _, r := range results {
		if r.MatchedSlideIndex >= 0 && r.MatchedSlideIndex < slides {
			groups[r.MatchedSlideIndex] = append(groups[r.MatchedSlideIndex], r.SegmentIndex)
		}
	}
	return groups
}
