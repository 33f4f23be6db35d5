package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Episode is the canonical, store-resident record for one podcast episode.
// (PodcastID, ID) is unique across the store.
type Episode struct {
	ID            string    `bson:"id" json:"id"`
	PodcastID     string    `bson:"podcast_id" json:"podcast_id"`
	Title         string    `bson:"title" json:"title"`
	BroadcastDate time.Time `bson:"broadcast_date" json:"broadcast_date"`
	Contributors  []string  `bson:"contributors" json:"contributors"`

	// Description is empty when neither the feed nor the source page had one.
	Description string `bson:"description,omitempty" json:"description,omitempty"`

	SourceURL   string   `bson:"source_url" json:"source_url"`
	Categories  []string `bson:"categories" json:"categories"`
	ReadingList []string `bson:"reading_list" json:"reading_list"`

	// BraggoscopeURL is derived from ID and BroadcastDate, see BraggoscopeURL.
	BraggoscopeURL string `bson:"braggoscope_url,omitempty" json:"braggoscope_url,omitempty"`
}

// EpisodeKey identifies an episode within the store.
type EpisodeKey struct {
	PodcastID string
	ID        string
}

func (k EpisodeKey) String() string {
	return k.PodcastID + "/" + k.ID
}

// Key returns the store identity of the episode.
func (e *Episode) Key() EpisodeKey {
	return EpisodeKey{PodcastID: e.PodcastID, ID: e.ID}
}

// Classified reports whether the episode carries at least one category.
func (e *Episode) Classified() bool {
	return len(e.Categories) > 0
}

var (
	slugStrip   = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces  = regexp.MustCompile(`\s+`)
	slugHyphens = regexp.MustCompile(`-+`)
)

// MakeEpisodeID derives the URL-friendly slug used as an episode id.
//
//	"The Siege of Malta (1565)" -> "the-siege-of-malta-1565"
func MakeEpisodeID(title string) string {
	slug := strings.ToLower(title)
	slug = slugStrip.ReplaceAllString(slug, "")
	slug = slugSpaces.ReplaceAllString(slug, "-")
	slug = slugHyphens.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// BraggoscopeURL returns the date-based braggoscope.com page for an episode.
// Empty ids or zero dates produce an empty string.
func BraggoscopeURL(id string, broadcast time.Time) string {
	if id == "" || broadcast.IsZero() {
		return ""
	}
	return fmt.Sprintf("https://www.braggoscope.com/%04d/%02d/%02d/%s.html",
		broadcast.Year(), int(broadcast.Month()), broadcast.Day(), id)
}
