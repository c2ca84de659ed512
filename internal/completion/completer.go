// Package completion provides the completion-provider capability: a prompt
// in, the model's text out, with the same retry discipline as embedding.
package completion

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"

	"github.com/bull/wikiquery/internal/embedding"
)

// Completer runs deterministic (temperature 0) chat completions.
type Completer struct {
	client *openai.Client
	model  string
}

// NewCompleter reuses the embedding client's OpenAI handle.
func NewCompleter(client *embedding.Client, model string) *Completer {
	return &Completer{client: client.Client(), model: model}
}

// Complete returns the completion text for prompt, capped at maxTokens.
// Transient provider errors are retried with backoff; exhausting retries
// surfaces the failure to the caller.
func (c *Completer) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var text string

	operation := func() error {
		resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Model:       openai.ChatModel(c.model),
			Temperature: openai.Float(0),
			MaxTokens:   openai.Int(int64(maxTokens)),
		})
		if err != nil {
			if embedding.IsRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("completion returned no choices"))
		}
		text = resp.Choices[0].Message.Content
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(embedding.ProviderBackoff(), ctx))
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}
	return text, nil
}
