package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/recall-labs/recall/internal/domain"
	"github.com/recall-labs/recall/internal/metrics"
)

// Config holds the retrieval pipeline settings for one channel.
type Config struct {
	MatchThreshold    float64       // minimum chunk similarity (τ)
	MatchCount        int           // chunks fetched from the store
	DisplayLimit      int           // chunks kept after sorting
	MaxSources        int           // cited sources cap
	KeywordLimit      int           // token-match item cap
	RecencyLimit      int           // recency-fallback item cap
	MaxAnswerTokens   int
	Temperature       float32
	EmbedTimeout      time.Duration
	SearchTimeout     time.Duration
	CompletionTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = 0.75
	}
	if c.MatchCount <= 0 {
		c.MatchCount = 10
	}
	if c.DisplayLimit <= 0 {
		c.DisplayLimit = 8
	}
	if c.MaxSources <= 0 {
		c.MaxSources = 3
	}
	if c.KeywordLimit <= 0 {
		c.KeywordLimit = 3
	}
	if c.RecencyLimit <= 0 {
		c.RecencyLimit = 10
	}
	if c.MaxAnswerTokens <= 0 {
		c.MaxAnswerTokens = 1500
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.3
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = 10 * time.Second
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = 5 * time.Second
	}
	if c.CompletionTimeout <= 0 {
		c.CompletionTimeout = 45 * time.Second
	}
}

// Service is the retrieval orchestrator: it sequences embedding, vector
// search, aggregation, relevance filtering, context composition, and
// answer generation, absorbing every failure except generation itself.
//
// Each request is one stateless unit of work; Service is safe for
// concurrent use by multiple goroutines.
type Service struct {
	embedder  Embedder
	chunks    ChunkSearcher
	items     ItemSearcher
	completer Completer
	cfg       Config
	logger    *zap.Logger
}

// New creates a chat service. Channels that need a different similarity
// threshold construct their own Service over the same dependencies.
func New(
	embedder Embedder,
	chunks ChunkSearcher,
	items ItemSearcher,
	completer Completer,
	cfg Config,
	logger *zap.Logger,
) *Service {
	cfg.applyDefaults()
	return &Service{
		embedder:  embedder,
		chunks:    chunks,
		items:     items,
		completer: completer,
		cfg:       cfg,
		logger:    logger,
	}
}

// retrieval is the grounding material secured for one request.
type retrieval struct {
	chunks    []domain.ContentChunk
	sources   []domain.Source
	grounding domain.Grounding
}

// Chat answers a question grounded in the user's saved content.
//
// Retrieval failures are absorbed by fallback transitions; the only error
// this method returns wraps domain.ErrInvalidRequest (malformed input) or
// domain.ErrGenerationFailed (the answer model itself failed).
func (s *Service) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return domain.ChatResult{}, fmt.Errorf("empty message: %w", domain.ErrInvalidRequest)
	}
	if req.UserID == "" {
		return domain.ChatResult{}, fmt.Errorf("missing user id: %w", domain.ErrInvalidRequest)
	}

	start := time.Now()
	defer func() {
		metrics.ChatAnswerDuration.Observe(time.Since(start).Seconds())
	}()

	ret := s.retrieve(ctx, req)

	answer, err := s.generate(ctx, req, ret.chunks)
	if err != nil {
		metrics.ChatRequestsTotal.WithLabelValues(string(ret.grounding), "error").Inc()
		s.logger.Error("answer generation failed",
			zap.String("grounding", string(ret.grounding)), zap.Error(err))
		return domain.ChatResult{}, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}

	metrics.ChatRequestsTotal.WithLabelValues(string(ret.grounding), "ok").Inc()
	s.logger.Info("chat answered",
		zap.String("grounding", string(ret.grounding)),
		zap.Int("context_chunks", len(ret.chunks)),
		zap.Int("sources", len(ret.sources)),
		zap.Duration("latency", time.Since(start)),
	)

	return domain.ChatResult{
		Response:  answer,
		Sources:   ret.sources,
		Grounding: ret.grounding,
	}, nil
}

// retrieve secures grounding material. It never fails: an embedding or
// search failure degrades to the keyword fallback, and an empty corpus
// degrades to no context at all.
func (s *Service) retrieve(ctx context.Context, req domain.ChatRequest) retrieval {
	embCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	embRes, err := s.embedder.Embed(embCtx, req.Message)
	cancel()
	if err != nil {
		metrics.ChatFallbacksTotal.WithLabelValues("embedding_unavailable").Inc()
		s.logger.Warn("embedding unavailable, switching to keyword fallback", zap.Error(err))
		return s.fallback(ctx, req)
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
	chunks, err := s.chunks.SearchChunks(
		searchCtx, req.UserID, embRes.Embedding, s.cfg.MatchThreshold, s.cfg.MatchCount,
	)
	cancel()
	if err != nil {
		// No vector evidence, not a request failure.
		metrics.ChatFallbacksTotal.WithLabelValues("vector_empty").Inc()
		s.logger.Warn("vector search failed, switching to keyword fallback", zap.Error(err))
		return s.fallback(ctx, req)
	}
	if len(chunks) == 0 {
		metrics.ChatFallbacksTotal.WithLabelValues("vector_empty").Inc()
		s.logger.Debug("no chunks above threshold, switching to keyword fallback",
			zap.Float64("threshold", s.cfg.MatchThreshold))
		return s.fallback(ctx, req)
	}

	// Two-stage cap: fetch MatchCount, keep the top DisplayLimit after
	// sorting, absorbing index noise near the threshold boundary.
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Similarity > chunks[j].Similarity
	})
	if len(chunks) > s.cfg.DisplayLimit {
		chunks = chunks[:s.cfg.DisplayLimit]
	}

	candidates := aggregateSources(chunks)

	filterCtx, cancel := context.WithTimeout(ctx, s.cfg.CompletionTimeout)
	selected := s.selectSources(filterCtx, req.Message, candidates)
	cancel()

	sources := make([]domain.Source, 0, len(selected))
	for _, c := range selected {
		sources = append(sources, c.Source())
	}

	// When the filter selects sources, ground the answer in their chunks
	// only; when it selects none, keep the raw chunk set as context and
	// suppress citations.
	contextChunks := chunks
	if len(selected) > 0 {
		keep := make(map[string]struct{}, len(selected))
		for _, c := range selected {
			keep[c.ID] = struct{}{}
		}
		contextChunks = make([]domain.ContentChunk, 0, len(chunks))
		for _, c := range chunks {
			if _, ok := keep[c.ItemID]; ok {
				contextChunks = append(contextChunks, c)
			}
		}
	}

	return retrieval{chunks: contextChunks, sources: sources, grounding: domain.GroundingVector}
}

// fallback is the keyword path: token match first, then most-recent items
// as weak low-confidence context. The relevance filter is skipped here;
// fallback candidates are already few and textually matched.
func (s *Service) fallback(ctx context.Context, req domain.ChatRequest) retrieval {
	tokens := queryTokens(req.Message)

	if len(tokens) > 0 {
		searchCtx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
		items, err := s.items.SearchItemsByTokens(searchCtx, req.UserID, tokens, s.cfg.KeywordLimit)
		cancel()
		if err != nil {
			s.logger.Warn("token match failed, falling through to recency", zap.Error(err))
		}
		if len(items) > 0 {
			return retrieval{
				chunks:    itemChunks(items, recencySimilarity),
				sources:   itemSources(items, s.cfg.MaxSources),
				grounding: domain.GroundingKeyword,
			}
		}
	}

	searchCtx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
	items, err := s.items.RecentItems(searchCtx, req.UserID, s.cfg.RecencyLimit)
	cancel()
	if err != nil {
		s.logger.Warn("recency fallback failed, answering without context", zap.Error(err))
		items = nil
	}
	if len(items) == 0 {
		return retrieval{grounding: domain.GroundingNone}
	}

	return retrieval{
		chunks:    itemChunks(items, recencySimilarity),
		sources:   itemSources(items, s.cfg.MaxSources),
		grounding: domain.GroundingRecency,
	}
}

// generate composes the grounding prompt and calls the answer model:
// [system context] + conversation history + [user question].
func (s *Service) generate(
	ctx context.Context, req domain.ChatRequest, chunks []domain.ContentChunk,
) (string, error) {
	messages := make([]domain.ChatMessage, 0, len(req.History)+2)
	messages = append(messages, domain.ChatMessage{
		Role:    "system",
		Content: composeContext(chunks, req.Message),
	})
	for _, turn := range req.History {
		if turn.Role != domain.RoleUser && turn.Role != domain.RoleAssistant {
			continue
		}
		messages = append(messages, domain.ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: req.Message})

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.CompletionTimeout)
	defer cancel()

	answer, err := s.completer.Complete(genCtx, domain.CompletionRequest{
		Messages:    messages,
		MaxTokens:   s.cfg.MaxAnswerTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}

// itemSources cites up to max fallback items in given order.
func itemSources(items []domain.Item, max int) []domain.Source {
	if len(items) > max {
		items = items[:max]
	}
	sources := make([]domain.Source, 0, len(items))
	for _, it := range items {
		sources = append(sources, domain.Source{
			ID:    it.ID,
			Title: it.Title,
			Type:  it.Type,
			URL:   it.URL,
		})
	}
	return sources
}
