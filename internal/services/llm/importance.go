package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"lecturenotes/internal/services"
)

const importanceSystemPrompt = `You review transcript segments from a university lecture and flag the ones a student must not miss: definitions, exam hints, key results, warnings about common mistakes.
Respond with a JSON object. Keys are the segment keys you flag; each value is {"reason": "<one short sentence>"}. Omit segments that are not important. Respond with {} if none are.`

type importanceVerdict struct {
	Reason string `json:"reason"`
}

// ClassifyImportance flags important segments. Keys in the result are a
// subset of the input keys, mapped to a short reason.
func (c *Client) ClassifyImportance(ctx context.Context, segments map[string]string) (map[string]string, error) {
	if len(segments) == 0 {
		return map[string]string{}, nil
	}
	payload, err := json.Marshal(segments)
	if err != nil {
		return nil, fmt.Errorf("encode segments: %w", err)
	}
	content, err := c.chat(ctx, "classify importance", openai.ChatCompletionRequest{
		Model: c.cfg.ClassifyModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: importanceSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
		Temperature:    0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return nil, err
	}
	var verdicts map[string]importanceVerdict
	if err := DecodeLLMJSON(content, &verdicts); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "llm", "classify importance", "decode response", err)
	}
	out := make(map[string]string, len(verdicts))
	for key, verdict := range verdicts {
		if _, ok := segments[key]; !ok {
			continue
		}
		out[key] = strings.TrimSpace(verdict.Reason)
	}
	return out, nil
}
