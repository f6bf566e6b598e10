package notes

import (
	"fmt"
	"strconv"
	"strings"
)

// Omitted marks a section the generator did not produce.
const Omitted = "Omitted"

// JSON keys of a Note.
const (
	KeyConciseSummary = "Concise Summary Notes"
	KeyBulletPoints   = "Bullet Point Notes"
	KeyKeywords       = "Keyword Notes"
	KeyChartTable     = "Chart/Table Summary"
	KeySegments       = "Segments"
)

// RequiredKeys lists every key a serialized Note must contain.
var RequiredKeys = []string{KeyConciseSummary, KeyBulletPoints, KeyKeywords, KeyChartTable, KeySegments}

// SegmentEntry is a transcript segment attached to a slide note.
// IsImportant is the string "true" or "false".
type SegmentEntry struct {
	Text          string `json:"text"`
	IsImportant   string `json:"isImportant"`
	Reason        string `json:"reason"`
	LinkedConcept string `json:"linkedConcept"`
	PageNumber    string `json:"pageNumber"`
}

// Note is the generated content for one slide.
type Note struct {
	ConciseSummary string                  `json:"Concise Summary Notes"`
	BulletPoints   string                  `json:"Bullet Point Notes"`
	Keywords       string                  `json:"Keyword Notes"`
	ChartTable     string                  `json:"Chart/Table Summary"`
	Segments       map[string]SegmentEntry `json:"Segments"`
}

// Empty returns a Note with every section Omitted and no segments.
func Empty() Note {
	return Note{
		ConciseSummary: Omitted,
		BulletPoints:   Omitted,
		Keywords:       Omitted,
		ChartTable:     Omitted,
		Segments:       map[string]SegmentEntry{},
	}
}

// Normalize fills blank sections with Omitted and a nil Segments map with an
// empty one.
func (n Note) Normalize() Note {
	for _, field := range []*string{&n.ConciseSummary, &n.BulletPoints, &n.Keywords, &n.ChartTable} {
		if strings.TrimSpace(*field) == "" {
			*field = Omitted
		}
	}
	if n.Segments == nil {
		n.Segments = map[string]SegmentEntry{}
	}
	return n
}

// Clone returns a deep copy.
func (n Note) Clone() Note {
	out := n
	out.Segments = make(map[string]SegmentEntry, len(n.Segments))
	for k, v := range n.Segments {
		out.Segments[k] = v
	}
	return out
}

// Validate reports the first required section left blank.
func (n Note) Validate() error {
	sections := []struct {
		key   string
		value string
	}{
		{KeyConciseSummary, n.ConciseSummary},
		{KeyBulletPoints, n.BulletPoints},
		{KeyKeywords, n.Keywords},
		{KeyChartTable, n.ChartTable},
	}
	for _, s := range sections {
		if strings.TrimSpace(s.value) == "" {
			return fmt.Errorf("note section %q is empty", s.key)
		}
	}
	if n.Segments == nil {
		return fmt.Errorf("note %q is nil", KeySegments)
	}
	return nil
}

// SlideKey returns "slide{n}" for a 0-based slide index.
func SlideKey(index int) string {
	return "slide" + strconv.Itoa(index+1)
}

// SegmentKey returns "segment{i}" for a 0-based segment index.
func SegmentKey(index int) string {
	return "segment" + strconv.Itoa(index)
}

// KeyNumber extracts the numeric suffix of keys like "slide12".
func KeyNumber(key, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
