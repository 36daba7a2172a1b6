package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/recall-labs/recall/internal/domain"
)

// Completer issues chat-completion calls against an OpenAI-compatible
// endpoint. Both answer generation and relevance filtering use it; the
// caller decides how a failure is absorbed.
type Completer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewCompleter creates a chat-completion client.
func NewCompleter(cfg *Config, model string) *Completer {
	return &Completer{
		client: newClient(cfg),
		model:  model,
		logger: cfg.Logger,
	}
}

// Complete implements domain.Completer. Returns the first choice's message
// content; a missing choice or empty content is a provider error.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", wrapAPIError(err, "completion", domain.ErrCompletionProviderError)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty completion response: %w", domain.ErrCompletionProviderError)
	}

	return resp.Choices[0].Message.Content, nil
}
