package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"lecturenotes/internal/notes"
)

// Entry pairs a slide key with its note.
type Entry struct {
	Key  string
	Note notes.Note
}

// Notes is a slide-ordered list of notes.
type Notes []Entry

// Sorted converts a map into Notes ordered by slide number.
func Sorted(m map[string]notes.Note) Notes {
	out := make(Notes, 0, len(m))
	for k, v := range m {
		out = append(out, Entry{Key: k, Note: v})
	}
	out.sort()
	return out
}

// sort orders by numeric suffix; keys without one sort after, lexically.
func (n Notes) sort() {
	sort.SliceStable(n, func(i, j int) bool {
		a, aok := notes.KeyNumber(n[i].Key, "slide")
		b, bok := notes.KeyNumber(n[j].Key, "slide")
		switch {
		case aok && bok:
			if a != b {
				return a < b
			}
			return n[i].Key < n[j].Key
		case aok:
			return true
		case bok:
			return false
		default:
			return n[i].Key < n[j].Key
		}
	})
}

// Keys returns slide keys in order.
func (n Notes) Keys() []string {
	out := make([]string, len(n))
	for i, e := range n {
		out[i] = e.Key
	}
	return out
}

// Get looks up a slide.
func (n Notes) Get(key string) (notes.Note, bool) {
	for _, e := range n {
		if e.Key == key {
			return e.Note, true
		}
	}
	return notes.Note{}, false
}

// Map converts back to an unordered map.
func (n Notes) Map() map[string]notes.Note {
	out := make(map[string]notes.Note, len(n))
	for _, e := range n {
		out[e.Key] = e.Note
	}
	return out
}

// MarshalJSON encodes Notes as an object whose keys keep slide order.
func (n Notes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range n {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Note.Normalize())
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", e.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of notes and sorts it.
func (n *Notes) UnmarshalJSON(data []byte) error {
	var m map[string]notes.Note
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*n = Sorted(m)
	return nil
}
