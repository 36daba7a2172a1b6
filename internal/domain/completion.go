package domain

import "context"

// ChatMessage is one provider-neutral chat-completion message.
type ChatMessage struct {
	Role    string
	Content string
}

// CompletionRequest bounds a single chat-completion call.
type CompletionRequest struct {
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float32
}

// Completer issues one chat-completion call and returns the first choice's
// message content. Both answer generation and relevance filtering go
// through this contract.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
