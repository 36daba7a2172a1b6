package domain

// Conversation roles as supplied by channel adapters.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is one prior message of the conversation, owned by the caller.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the channel-independent chat contract.
type ChatRequest struct {
	Message string
	History []ConversationTurn
	UserID  string
}

// Grounding names the retrieval path that produced the answer's context.
// Channels use it to frame low-confidence answers.
type Grounding string

const (
	// GroundingVector means the context came from embedding similarity search.
	GroundingVector Grounding = "vector"
	// GroundingKeyword means the context came from token matching over items.
	GroundingKeyword Grounding = "keyword"
	// GroundingRecency means the context is the user's most recent items,
	// supplied as weak evidence when nothing matched the question.
	GroundingRecency Grounding = "recency"
	// GroundingNone means no content was found at all.
	GroundingNone Grounding = "none"
)

// Source is an item cited as evidence for a generated answer.
type Source struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Type  ItemType `json:"type"`
	URL   string   `json:"url,omitempty"`
}

// ChatResult is the sole externally visible output of the pipeline.
// Sources is ordered by relevance and capped at 3; it may be empty.
type ChatResult struct {
	Response  string    `json:"response"`
	Sources   []Source  `json:"sources"`
	Grounding Grounding `json:"grounding"`
}
