package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/recall-labs/recall/internal/domain"
	"github.com/recall-labs/recall/internal/metrics"
)

const relevanceSystemPrompt = `You are a precise source evaluator. Given a question and a list of
candidate sources from the user's saved content, select the sources that actually help answer the
question. Reply with ONLY a JSON array of up to 3 source ids ordered from most to least relevant,
for example ["id-1","id-2"]. Reply with [] if none of the sources are truly relevant.`

// relevanceMaxTokens bounds the filter reply; a JSON array of ids is tiny.
const relevanceMaxTokens = 100

// selectSources runs the LLM relevance filter over the aggregated
// candidates and returns at most maxSources of them, most relevant first.
// A call failure or an unparseable reply falls back to similarity-only
// ranking, so the pipeline never blocks on the filter.
func (s *Service) selectSources(
	ctx context.Context, question string, candidates []domain.CandidateSource,
) []domain.CandidateSource {
	if len(candidates) == 0 {
		return nil
	}

	log := s.logger

	reply, err := s.completer.Complete(ctx, domain.CompletionRequest{
		Messages: []domain.ChatMessage{
			{Role: domain.RoleUser, Content: relevancePrompt(question, candidates)},
		},
		MaxTokens:   relevanceMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		metrics.RelevanceFilterTotal.WithLabelValues("call_error").Inc()
		metrics.ChatFallbacksTotal.WithLabelValues("relevance_unavailable").Inc()
		log.Warn("relevance filter call failed, ranking by similarity",
			zap.Error(fmt.Errorf("%w: %w", domain.ErrRelevanceUnavailable, err)))
		return rankBySimilarity(candidates, s.cfg.MaxSources)
	}

	ids, err := parseRelevanceReply(reply)
	if err != nil {
		metrics.RelevanceFilterTotal.WithLabelValues("parse_error").Inc()
		metrics.ChatFallbacksTotal.WithLabelValues("relevance_unavailable").Inc()
		log.Warn("relevance filter reply unparseable, ranking by similarity",
			zap.String("reply", snippet(reply, 200)),
			zap.Error(fmt.Errorf("%w: %w", domain.ErrRelevanceUnavailable, err)))
		return rankBySimilarity(candidates, s.cfg.MaxSources)
	}

	byID := make(map[string]domain.CandidateSource, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	// Unknown ids are dropped silently; the model occasionally invents one.
	var selected []domain.CandidateSource
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			selected = append(selected, c)
			delete(byID, id) // a duplicated id must not duplicate a source
		}
		if len(selected) == s.cfg.MaxSources {
			break
		}
	}

	if len(selected) == 0 {
		metrics.RelevanceFilterTotal.WithLabelValues("empty").Inc()
	} else {
		metrics.RelevanceFilterTotal.WithLabelValues("selected").Inc()
	}
	return selected
}

// relevancePrompt renders the compact candidate listing for the filter.
func relevancePrompt(question string, candidates []domain.CandidateSource) string {
	var b strings.Builder
	b.WriteString(relevanceSystemPrompt)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nCandidate sources:\n")
	for _, c := range candidates {
		fmt.Fprintf(&b, "- id: %s | title: %s | content: %s\n",
			c.ID, c.Title, snippet(c.Content, snippetLen))
	}
	return b.String()
}

// parseRelevanceReply parses the filter reply as a strict JSON array of
// source ids. Anything else is an error, which structurally forces the
// similarity-ranking branch.
func parseRelevanceReply(raw string) ([]string, error) {
	var ids []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &ids); err != nil {
		return nil, fmt.Errorf("parse relevance reply: %w", err)
	}
	return ids, nil
}
