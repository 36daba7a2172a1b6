package chat

import (
	"fmt"
	"strings"

	"github.com/recall-labs/recall/internal/domain"
)

// snippetLen bounds each candidate listing in the relevance-filter prompt.
const snippetLen = 200

// promptSnippetLen bounds each chunk rendered into the grounding context.
// Chunk count is already capped upstream, so this keeps the prompt size
// bounded without a token counter.
const promptSnippetLen = 1200

// composeContext builds the single system prompt that grounds answer
// generation: role statement, grounding instruction, enumerated content,
// and the question last. With no content it instructs the model to say so
// instead of inventing citations.
func composeContext(chunks []domain.ContentChunk, question string) string {
	var b strings.Builder

	b.WriteString("You are a personal memory assistant. The user saves notes, links, ")
	b.WriteString("documents, and transcripts, and asks you questions about them.\n")
	b.WriteString("Answer comprehensively, but ground every statement ONLY in the saved ")
	b.WriteString("content provided below. Never invent content the user did not save.\n\n")

	if len(chunks) == 0 {
		b.WriteString("No specific relevant content was found in the user's saved items ")
		b.WriteString("for this question. Say so plainly and suggest what the user might ")
		b.WriteString("save or rephrase; do not fabricate sources.\n")
	} else {
		b.WriteString("Saved content:\n")
		for i, c := range chunks {
			fmt.Fprintf(&b, "[%d] %s (%s): %s\n", i+1, c.ItemTitle, c.ItemType, snippet(c.Content, promptSnippetLen))
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

// snippet truncates s to at most n runes, appending an ellipsis when cut.
func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
