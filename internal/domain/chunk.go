package domain

// ContentChunk is one retrieved slice of an item's text, tagged with its
// parent item and a similarity score in [0,1]. Ephemeral, per-request.
type ContentChunk struct {
	Content    string
	Similarity float64
	ItemID     string
	ItemTitle  string
	ItemType   ItemType
	ItemURL    string
}

// CandidateSource is the per-item reduction of retrieved chunks: one entry
// per distinct item id, carrying the highest-similarity chunk's content as
// the representative snippet.
type CandidateSource struct {
	ID            string
	Title         string
	Type          ItemType
	URL           string
	MaxSimilarity float64
	Content       string
}

// Source converts the candidate into its externally visible citation form.
func (c CandidateSource) Source() Source {
	return Source{ID: c.ID, Title: c.Title, Type: c.Type, URL: c.URL}
}
