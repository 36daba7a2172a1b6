package chat

import (
	"context"

	"github.com/recall-labs/recall/internal/domain"
)

// ChunkSearcher runs vector similarity search over the user's chunks.
type ChunkSearcher interface {
	SearchChunks(
		ctx context.Context, userID string,
		embedding []float32, threshold float64, limit int,
	) ([]domain.ContentChunk, error)
}

// ItemSearcher serves the keyword fallback path.
type ItemSearcher interface {
	SearchItemsByTokens(ctx context.Context, userID string, tokens []string, limit int) ([]domain.Item, error)
	RecentItems(ctx context.Context, userID string, limit int) ([]domain.Item, error)
}

// Embedder vectorizes the question text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Completer issues chat-completion calls for relevance filtering and
// answer generation.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}
