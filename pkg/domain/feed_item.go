package domain

import "time"

// FeedItem is one raw entry from a podcast's source listing, before normalization.
type FeedItem struct {
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	Published   time.Time `json:"published"`
	Link        string    `json:"link"`
	Description string    `json:"description,omitempty"`
}

// EpisodeID is the slug the item will be stored under.
func (i FeedItem) EpisodeID() string {
	return MakeEpisodeID(i.Title)
}

// ParsedFields holds what the description parser could extract from feed markup.
// Every field is optional.
type ParsedFields struct {
	Synopsis     string
	Contributors []string
	ReadingList  []string
}

// Miss reports whether parsing failed to find contributors, which is the
// signal to fall back to the podcast's enricher.
func (p ParsedFields) Miss() bool {
	return len(p.Contributors) == 0
}

// PartialFields is the enricher's best-effort result. A failed enrichment is
// the zero value.
type PartialFields struct {
	Description  string
	Contributors []string
	ReadingList  []string
}

// IsEmpty reports whether the enricher produced nothing usable.
func (p PartialFields) IsEmpty() bool {
	return p.Description == "" && len(p.Contributors) == 0 && len(p.ReadingList) == 0
}
