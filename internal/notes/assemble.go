package notes

import (
	"context"
	"strings"

	"lecturenotes/internal/services"
)

// Generator writes note text for one slide.
type Generator interface {
	GenerateNote(ctx context.Context, caption string, segments []string) (string, error)
}

// Contribution is a transcript segment mapped onto a slide.
type Contribution struct {
	Index     int
	Text      string
	Important bool
	Reason    string
}

// Assembler turns a caption and its contributions into a Note.
type Assembler struct {
	generator Generator
}

// NewAssembler constructs an Assembler around generator.
func NewAssembler(generator Generator) *Assembler {
	return &Assembler{generator: generator}
}

// Assemble generates and parses the note sections, then attaches the
// contributing segments keyed by their global index.
func (a *Assembler) Assemble(ctx context.Context, caption string, mapped []Contribution) (Note, error) {
	texts := make([]string, len(mapped))
	for i, c := range mapped {
		texts[i] = c.Text
	}
	raw, err := a.generator.GenerateNote(ctx, caption, texts)
	if err != nil {
		return Note{}, services.Wrap(services.ErrExternalService, "notes", "generate note", "note generation failed", err)
	}
	note := ParseSections(raw).Apply(Note{})
	note.Segments = SegmentEntries(mapped)
	return note.Normalize(), nil
}

// SegmentEntries builds the Segments map for a slide.
func SegmentEntries(mapped []Contribution) map[string]SegmentEntry {
	out := make(map[string]SegmentEntry, len(mapped))
	for _, c := range mapped {
		entry := SegmentEntry{Text: c.Text, IsImportant: "false"}
		if c.Important {
			entry.IsImportant = "true"
			entry.Reason = strings.TrimSpace(c.Reason)
		}
		out[SegmentKey(c.Index)] = entry
	}
	return out
}
