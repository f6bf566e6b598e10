package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"lecturenotes/internal/services"
)

// SlideDwell is one entry of a chunk's slide metadata. Start and End use
// "MM:SS.mmm"; Duration (seconds) is used when either is missing.
type SlideDwell struct {
	SlideID    json.RawMessage `json:"slide_id,omitempty"`
	PageNumber json.RawMessage `json:"pageNumber,omitempty"`
	StartTime  string          `json:"start_time,omitempty"`
	EndTime    string          `json:"end_time,omitempty"`
	Duration   float64         `json:"duration,omitempty"`
}

// ParseMeta accepts either a bare array of dwell entries or an object with
// a "slides" array.
func ParseMeta(data []byte) ([]SlideDwell, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var entries []SlideDwell
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, services.Wrap(services.ErrInput, "realtime", "parse meta", "invalid meta_json", err)
		}
		return entries, nil
	}
	var wrapper struct {
		Slides []SlideDwell `json:"slides"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, services.Wrap(services.ErrInput, "realtime", "parse meta", "invalid meta_json", err)
	}
	return wrapper.Slides, nil
}

// LongestDwell returns the 1-based slide number with the greatest dwell
// time. Ties keep the earliest entry; entries with no positive dwell or no
// usable slide number are ignored.
func LongestDwell(entries []SlideDwell) (int, bool, error) {
	best, bestDur := 0, 0.0
	for i, entry := range entries {
		dur, err := entry.seconds()
		if err != nil {
			return 0, false, services.Wrap(services.ErrInput, "realtime", "parse meta",
				fmt.Sprintf("slides[%d]", i), err)
		}
		if dur <= bestDur {
			continue
		}
		slide, ok := entry.slideNumber()
		if !ok {
			continue
		}
		best, bestDur = slide, dur
	}
	return best, best > 0, nil
}

func (d SlideDwell) seconds() (float64, error) {
	if d.StartTime == "" || d.EndTime == "" {
		return d.Duration, nil
	}
	start, err := ParseClock(d.StartTime)
	if err != nil {
		return 0, err
	}
	end, err := ParseClock(d.EndTime)
	if err != nil {
		return 0, err
	}
	return end - start, nil
}

// slideNumber prefers slide_id and falls back to pageNumber when slide_id is
// absent or zero.
func (d SlideDwell) slideNumber() (int, bool) {
	if n, ok := positiveNumber(d.SlideID); ok {
		return n, true
	}
	return positiveNumber(d.PageNumber)
}

func positiveNumber(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		n = json.Number(strings.TrimSpace(s))
	}
	v, err := strconv.Atoi(n.String())
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// ParseClock converts "MM:SS.mmm" (or "HH:MM:SS.mmm") into seconds.
func ParseClock(value string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("time %q: want MM:SS.mmm", value)
	}
	seconds, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("time %q: bad seconds", value)
	}
	total := seconds
	scale := 60.0
	for i := len(parts) - 2; i >= 0; i-- {
		v, err := strconv.Atoi(parts[i])
		if err != nil || v < 0 {
			return 0, fmt.Errorf("time %q: bad field %q", value, parts[i])
		}
		total += float64(v) * scale
		scale *= 60
	}
	return total, nil
}
