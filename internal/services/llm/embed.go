package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// embedBatchSize bounds the inputs per embeddings request.
const embedBatchSize = 64

// Embed returns one vector per text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.requireKey("embed"); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		batch := texts[start:end]
		err := c.withRetry(ctx, "embed", func() error {
			resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: batch,
				Model: openai.EmbeddingModel(c.cfg.EmbedModel),
			})
			if err != nil {
				return err
			}
			if len(resp.Data) != len(batch) {
				return fmt.Errorf("embeddings: got %d vectors for %d inputs", len(resp.Data), len(batch))
			}
			for _, item := range resp.Data {
				if item.Index < 0 || item.Index >= len(batch) {
					return fmt.Errorf("embeddings: index %d out of range", item.Index)
				}
				out[start+item.Index] = item.Embedding
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
