package domain

import "errors"

var (
	// ErrInvalidRequest signals a malformed or empty chat request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUserNotFound signals an unknown user scope (e.g. unmapped phone number).
	ErrUserNotFound = errors.New("user not found")

	// ErrEmbeddingUnavailable signals an embedding provider failure. The
	// orchestrator treats it as the switch to the keyword fallback path,
	// never as a fatal error.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrRetrievalEmpty signals that no chunk met the similarity threshold.
	ErrRetrievalEmpty = errors.New("no qualifying chunks")
	// ErrRelevanceUnavailable signals a relevance-filter call or parse
	// failure; recovered by similarity-only ranking.
	ErrRelevanceUnavailable = errors.New("relevance filter unavailable")
	// ErrCompletionProviderError signals a chat-completion provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
	// ErrGenerationFailed is the only pipeline error surfaced to callers,
	// rendered as a short apologetic message. Never retried.
	ErrGenerationFailed = errors.New("answer generation failed")
)
