package notes

import (
	"strings"
)

// Sections holds the four generated note sections.
type Sections struct {
	ConciseSummary string
	BulletPoints   string
	Keywords       string
	ChartTable     string
}

var sectionHeaders = []struct {
	number string
	title  string
}{
	{"1", KeyConciseSummary},
	{"2", KeyBulletPoints},
	{"3", KeyKeywords},
	{"4", KeyChartTable},
}

// ParseSections splits generator output into the four sections.
//
// A header is a line reading "<n>. <title>", optionally decorated with
// leading '#' or '*' and a trailing ':' or '*'. Headers must appear in
// ascending order; a header seen out of order is treated as body text. The
// header line itself is not part of the section. A section that never
// appears or has an empty body is Omitted.
func ParseSections(text string) Sections {
	bodies := make([][]string, len(sectionHeaders))
	found := make([]bool, len(sectionHeaders))
	current := -1

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if idx, rest, ok := matchHeader(line); ok && idx > current {
			current = idx
			found[idx] = true
			if rest != "" {
				bodies[idx] = append(bodies[idx], rest)
			}
			continue
		}
		if current >= 0 {
			bodies[current] = append(bodies[current], line)
		}
	}

	values := make([]string, len(sectionHeaders))
	for i := range sectionHeaders {
		body := strings.TrimSpace(strings.Join(bodies[i], "\n"))
		if !found[i] || body == "" {
			body = Omitted
		}
		values[i] = body
	}
	return Sections{
		ConciseSummary: values[0],
		BulletPoints:   values[1],
		Keywords:       values[2],
		ChartTable:     values[3],
	}
}

// matchHeader reports which section header line starts, plus any text that
// follows the title on the same line.
func matchHeader(line string) (int, string, bool) {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimLeft(trimmed, "#* \t")
	for i, h := range sectionHeaders {
		rest, ok := strings.CutPrefix(trimmed, h.number+".")
		if !ok {
			continue
		}
		rest = strings.TrimLeft(rest, " \t*")
		if len(rest) < len(h.title) || !strings.EqualFold(rest[:len(h.title)], h.title) {
			return 0, "", false
		}
		rest = strings.TrimSpace(rest[len(h.title):])
		rest = strings.TrimLeft(rest, "*:")
		rest = strings.TrimSpace(strings.TrimRight(rest, "*"))
		return i, rest, true
	}
	return 0, "", false
}

// Apply copies the sections into n.
func (s Sections) Apply(n Note) Note {
	n.ConciseSummary = s.ConciseSummary
	n.BulletPoints = s.BulletPoints
	n.Keywords = s.Keywords
	n.ChartTable = s.ChartTable
	return n
}
