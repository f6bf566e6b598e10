package segment_test

import (
	"fmt"
	"strings"
	"testing"

	"lecturenotes/internal/segment"
)

func TestSplitCountsAndRejoins(t *testing.T) {
	for _, tc := range []struct{ n, k, want int }{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{7, 3, 3},
		{5, 0, 1},
	} {
		sentences := make([]string, tc.n)
		for i := range sentences {
			sentences[i] = fmt.Sprintf("s%d.", i)
		}
		got := segment.Split(sentences, tc.k)
		if len(got) != tc.want {
			t.Fatalf("Split(n=%d,k=%d) produced %d segments, want %d", tc.n, tc.k, len(got), tc.want)
		}
		joined := strings.Join(segment.Texts(got), " ")
		if joined != strings.Join(sentences, " ") {
			t.Fatalf("rejoin mismatch for n=%d k=%d: %q", tc.n, tc.k, joined)
		}
		for i, seg := range got {
			if seg.Index != i {
				t.Fatalf("segment %d has index %d", i, seg.Index)
			}
		}
	}
}

func TestSplitBoundaries(t *testing.T) {
	got := segment.Split([]string{"a", "b", "c", "d", "e"}, 2)
	want := []string{"a b", "c d", "e"}
	for i, seg := range got {
		if seg.Text != want[i] {
			t.Fatalf("segment %d = %q, want %q", i, seg.Text, want[i])
		}
	}
}

func TestSentences(t *testing.T) {
	text := "Hello world.  Pi is 3.14 roughly!\nNew line without stop\nWhy?! 다음 문장입니다。끝"
	got := segment.Sentences(text)
	want := []string{"Hello world.", "Pi is 3.14 roughly!", "New line without stop", "Why?!", "다음 문장입니다。", "끝"}
	if len(got) != len(want) {
		t.Fatalf("got %d sentences %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sentence %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSentencesNormalizesNFC(t *testing.T) {
	decomposed := "Cafe\u0301 time."
	got := segment.Sentences(decomposed)
	if len(got) != 1 || got[0] != "Caf\u00e9 time." {
		t.Fatalf("expected NFC form, got %q", got)
	}
}

func TestSegmenterEmptyTranscript(t *testing.T) {
	if got := (segment.Segmenter{}).Segment("   \n "); len(got) != 0 {
		t.Fatalf("expected zero segments, got %v", got)
	}
}
