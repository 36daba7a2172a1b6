package chat

import (
	"sort"

	"github.com/recall-labs/recall/internal/domain"
)

// aggregateSources reduces chunks to one candidate per distinct item id,
// keeping the highest-similarity chunk as the representative snippet. The
// result is sorted by descending max similarity; ties keep first-seen
// chunk order so the reduction stays deterministic.
func aggregateSources(chunks []domain.ContentChunk) []domain.CandidateSource {
	byItem := make(map[string]int, len(chunks))
	var out []domain.CandidateSource

	for _, c := range chunks {
		idx, seen := byItem[c.ItemID]
		if !seen {
			byItem[c.ItemID] = len(out)
			out = append(out, domain.CandidateSource{
				ID:            c.ItemID,
				Title:         c.ItemTitle,
				Type:          c.ItemType,
				URL:           c.ItemURL,
				MaxSimilarity: c.Similarity,
				Content:       c.Content,
			})
			continue
		}
		if c.Similarity > out[idx].MaxSimilarity {
			out[idx].MaxSimilarity = c.Similarity
			out[idx].Content = c.Content
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MaxSimilarity > out[j].MaxSimilarity
	})
	return out
}

// rankBySimilarity returns the top n candidates by max similarity. The
// input is already sorted by aggregateSources; this is the deterministic
// fallback ranking when the relevance filter is unavailable.
func rankBySimilarity(candidates []domain.CandidateSource, n int) []domain.CandidateSource {
	if len(candidates) <= n {
		return candidates
	}
	return candidates[:n]
}
