package chat

import (
	"strings"
	"unicode"

	"github.com/recall-labs/recall/internal/domain"
)

// minTokenLen filters out stop-word-sized tokens: the keyword fallback
// only matches on tokens longer than 3 characters.
const minTokenLen = 3

// recencySimilarity is the fixed low-confidence score assigned to chunks
// synthesized from recent items.
const recencySimilarity = 0.5

// queryTokens splits the question into whitespace tokens, strips
// surrounding punctuation, and keeps tokens longer than minTokenLen.
// An empty result means the recency fallback is the only option.
func queryTokens(question string) []string {
	var tokens []string
	for _, field := range strings.Fields(question) {
		tok := strings.TrimFunc(field, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if len(tok) > minTokenLen {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// itemChunk synthesizes a retrieval chunk from a fallback item. Content
// preference mirrors what the ingestion pipeline fills: extracted content,
// else the link description, else the title itself.
func itemChunk(it domain.Item, similarity float64) domain.ContentChunk {
	content := it.Content
	if content == "" {
		content = it.Description
	}
	if content == "" {
		content = it.Title
	}
	return domain.ContentChunk{
		Content:    content,
		Similarity: similarity,
		ItemID:     it.ID,
		ItemTitle:  it.Title,
		ItemType:   it.Type,
		ItemURL:    it.URL,
	}
}

// itemChunks converts fallback items in given order.
func itemChunks(items []domain.Item, similarity float64) []domain.ContentChunk {
	chunks := make([]domain.ContentChunk, 0, len(items))
	for _, it := range items {
		chunks = append(chunks, itemChunk(it, similarity))
	}
	return chunks
}
