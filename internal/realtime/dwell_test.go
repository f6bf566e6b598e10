package realtime

import (
	"errors"
	"math"
	"testing"

	"lecturenotes/internal/services"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"00:05.236", 5.236},
		{"01:30.000", 90},
		{"1:02:03.5", 3723.5},
	}
	for _, tc := range tests {
		got, err := ParseClock(tc.in)
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", tc.in, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("ParseClock(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	for _, bad := range []string{"", "5.2", "aa:10", "00:xx", "1:2:3:4"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("ParseClock(%q) should fail", bad)
		}
	}
}

func TestLongestDwellObjectForm(t *testing.T) {
	entries, err := ParseMeta([]byte(`{"slides":[
		{"slide_id": 1, "start_time": "00:00.000", "end_time": "00:04.000"},
		{"slide_id": 2, "start_time": "00:04.000", "end_time": "00:20.500"},
		{"pageNumber": "3", "duration": 9}
	]}`))
	if err != nil {
		t.Fatalf("ParseMeta: %v", err)
	}
	slide, ok, err := LongestDwell(entries)
	if err != nil || !ok || slide != 2 {
		t.Fatalf("LongestDwell = %d, %v, %v; want 2", slide, ok, err)
	}
}

func TestLongestDwellArrayFormAndFallbacks(t *testing.T) {
	entries, err := ParseMeta([]byte(`[
		{"slide_id": 0, "pageNumber": 4, "duration": 3},
		{"pageNumber": "7", "duration": 3},
		{"duration": 50}
	]`))
	if err != nil {
		t.Fatalf("ParseMeta: %v", err)
	}
	slide, ok, err := LongestDwell(entries)
	if err != nil || !ok {
		t.Fatalf("LongestDwell: %v %v", ok, err)
	}
	if slide != 4 {
		t.Fatalf("tie should keep the first entry, got slide %d", slide)
	}
}

func TestLongestDwellNothingUsable(t *testing.T) {
	entries, _ := ParseMeta([]byte(`{"slides":[{"slide_id": 2, "duration": 0}]}`))
	if _, ok, err := LongestDwell(entries); ok || err != nil {
		t.Fatalf("expected no slide, got ok=%v err=%v", ok, err)
	}
}

func TestLongestDwellBadClock(t *testing.T) {
	entries, _ := ParseMeta([]byte(`[{"slide_id": 1, "start_time": "bad", "end_time": "00:01.000"}]`))
	if _, _, err := LongestDwell(entries); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestParseMetaInvalid(t *testing.T) {
	if _, err := ParseMeta([]byte(`{"slides":`)); !errors.Is(err, services.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}
