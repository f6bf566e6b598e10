package segment

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxSentences is the segment size used when callers pass k <= 0.
const DefaultMaxSentences = 10

// Segment is a contiguous run of transcript sentences.
type Segment struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Split groups sentences into ceil(N/k) segments. Segment i holds sentences
// [i*k, min(N, (i+1)*k)) joined by one space. Empty input yields nil.
func Split(sentences []string, maxSentences int) []Segment {
	if len(sentences) == 0 {
		return nil
	}
	k := maxSentences
	if k <= 0 {
		k = DefaultMaxSentences
	}
	count := (len(sentences) + k - 1) / k
	out := make([]Segment, 0, count)
	for i := 0; i < count; i++ {
		start := i * k
		end := min(len(sentences), start+k)
		out = append(out, Segment{Index: i, Text: strings.Join(sentences[start:end], " ")})
	}
	return out
}

// Sentences NFC-normalizes text and splits it after '.', '!', '?' (and their
// full-width forms) or at line breaks. Terminators stay attached to their
// sentence; blank sentences are dropped.
func Sentences(text string) []string {
	text = norm.NFC.String(text)
	var (
		out     []string
		current strings.Builder
	)
	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			out = append(out, strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " "))
		}
		current.Reset()
	}
	runes := []rune(text)
	for i, r := range runes {
		switch {
		case r == '\n' || r == '\r':
			flush()
		case isTerminator(r):
			current.WriteRune(r)
			// keep runs like "?!" or "..." together
			if i+1 < len(runes) && isTerminator(runes[i+1]) {
				continue
			}
			if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) && !isFullWidth(r) {
				// "3.14" or "e.g" is not a boundary
				continue
			}
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return out
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

func isFullWidth(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}

// Segmenter splits transcripts with a fixed segment size.
type Segmenter struct {
	MaxSentences int
}

// Segment splits text into sentences and groups them.
func (s Segmenter) Segment(text string) []Segment {
	return Split(Sentences(text), s.MaxSentences)
}

// Texts returns the segment texts in order.
func Texts(segments []Segment) []string {
	out := make([]string, len(segments))
	for i, seg := range segments {
		out[i] = seg.Text
	}
	return out
}
