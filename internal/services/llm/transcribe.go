package llm

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"lecturenotes/internal/services"
)

// Transcribe converts the audio file at audioPath to text.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if err := c.requireKey("transcribe"); err != nil {
		return "", err
	}
	if strings.TrimSpace(audioPath) == "" {
		return "", services.Wrap(services.ErrInput, "llm", "transcribe", "audio path required", nil)
	}
	var text string
	err := c.withRetry(ctx, "transcribe", func() error {
		resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
			Model:    c.cfg.TranscribeModel,
			FilePath: audioPath,
		})
		if err != nil {
			return err
		}
		text = strings.TrimSpace(resp.Text)
		return nil
	})
	return text, err
}
