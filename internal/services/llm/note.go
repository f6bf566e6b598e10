package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const noteSystemPrompt = `You write study notes for one lecture slide. Use the slide description and the lecturer's transcript excerpts.
Respond with exactly these four numbered sections, each header on its own line:
1. Concise Summary Notes
2. Bullet Point Notes
3. Keyword Notes
4. Chart/Table Summary
Under each header write the section body. Bullet Point Notes use "- " bullets. Keyword Notes list "keyword: definition" lines.
If a section does not apply to this slide, write only the word Omitted under its header.`

// GenerateNote writes the four-section note text for a slide.
func (c *Client) GenerateNote(ctx context.Context, caption string, segments []string) (string, error) {
	return c.chat(ctx, "generate note", openai.ChatCompletionRequest{
		Model: c.cfg.NoteModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: noteSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: noteUserPrompt(caption, segments)},
		},
		Temperature: 0.3,
	})
}

func noteUserPrompt(caption string, segments []string) string {
	var b strings.Builder
	b.WriteString("Slide description:\n")
	if strings.TrimSpace(caption) == "" {
		b.WriteString("(none)\n")
	} else {
		b.WriteString(strings.TrimSpace(caption))
		b.WriteString("\n")
	}
	b.WriteString("\nTranscript excerpts:\n")
	if len(segments) == 0 {
		b.WriteString("(none)\n")
	}
	for i, seg := range segments {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, strings.TrimSpace(seg))
	}
	return b.String()
}
