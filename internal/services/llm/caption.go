package llm

import (
	"context"
	"encoding/base64"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"lecturenotes/internal/services"
)

const captionPrompt = `You are a university professor. Explain the content of this lecture slide concisely, as you would to students seeing it for the first time. Describe any charts, tables, or diagrams. Reply in plain prose.`

// Caption describes a single slide image. mime defaults to image/png.
func (c *Client) Caption(ctx context.Context, data []byte, mime string) (string, error) {
	if len(data) == 0 {
		return "", services.Wrap(services.ErrInput, "llm", "caption", "image data required", nil)
	}
	if strings.TrimSpace(mime) == "" {
		mime = "image/png"
	}
	uri := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	return c.chat(ctx, "caption", openai.ChatCompletionRequest{
		Model: c.cfg.CaptionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: captionPrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    uri,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
		MaxTokens: 600,
	})
}
