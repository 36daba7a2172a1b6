package domain

import "time"

// ItemType categorizes saved content by how it was captured.
type ItemType string

const (
	ItemTypeNote     ItemType = "note"
	ItemTypeLink     ItemType = "link"
	ItemTypeAudio    ItemType = "audio"
	ItemTypeImage    ItemType = "image"
	ItemTypeDocument ItemType = "document"
)

// Item is a saved content item as the fallback queries read it.
// Items are written by the ingestion pipeline; this core never mutates them.
type Item struct {
	ID          string
	Title       string
	Type        ItemType
	URL         string
	Content     string
	Description string
	CreatedAt   time.Time
}
