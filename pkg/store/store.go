// Package store persists canonical episodes. Every backend keeps the same
// contract: (podcast_id, id) is unique, the first insert wins, and the only
// mutation of an existing record is a category rewrite.
package store

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"podcast-search/pkg/domain"
)

// Outcome is the result of an Upsert.
type Outcome int

const (
	// Inserted means the candidate was new and has been stored.
	Inserted Outcome = iota + 1
	// SkippedDuplicate means an episode with the same key already existed;
	// the candidate was discarded in full.
	SkippedDuplicate
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case SkippedDuplicate:
		return "skipped_duplicate"
	default:
		return "unknown"
	}
}

// Store is the episode collection.
type Store interface {
	// Upsert inserts ep unless its key is already present.
	Upsert(ctx context.Context, ep *domain.Episode) (Outcome, error)
	// Reclassify replaces the categories of an existing episode.
	// Returns domain.ErrNotFound for unknown keys.
	Reclassify(ctx context.Context, key domain.EpisodeKey, categories []string) error
	// All returns every episode, newest broadcast first.
	All(ctx context.Context) ([]domain.Episode, error)
	// Get returns one episode or domain.ErrNotFound.
	Get(ctx context.Context, key domain.EpisodeKey) (*domain.Episode, error)
	// Keys returns the ids stored for a podcast.
	Keys(ctx context.Context, podcastID string) (map[string]bool, error)
	// Unclassified returns episodes with no categories, newest first.
	Unclassified(ctx context.Context) ([]domain.Episode, error)
	Count(ctx context.Context) (int, error)
	// UpdateBraggoscopeURLs rewrites every braggoscope URL that differs from
	// the date-based form and returns how many changed.
	UpdateBraggoscopeURLs(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}

const dateLayout = "2006-01-02"

// SortEpisodes orders episodes by broadcast date descending, then by key, so
// that every backend enumerates identically.
func SortEpisodes(episodes []domain.Episode) {
	sort.SliceStable(episodes, func(i, j int) bool {
		a, b := episodes[i], episodes[j]
		if !a.BroadcastDate.Equal(b.BroadcastDate) {
			return a.BroadcastDate.After(b.BroadcastDate)
		}
		if a.PodcastID != b.PodcastID {
			return a.PodcastID < b.PodcastID
		}
		return a.ID < b.ID
	})
}

// normalize returns a copy of ep that is safe to persist: list fields are
// non-nil, categories are taxonomy tags and the broadcast date is a UTC
// calendar day.
func normalize(ep *domain.Episode) (domain.Episode, error) {
	if ep == nil {
		return domain.Episode{}, eris.New("store: nil episode")
	}
	if ep.PodcastID == "" || ep.ID == "" {
		return domain.Episode{}, eris.Errorf("store: episode key incomplete (%q, %q)", ep.PodcastID, ep.ID)
	}

	out := *ep
	out.BroadcastDate = toDay(ep.BroadcastDate)
	out.Contributors = nonNil(ep.Contributors)
	out.Categories = taxonomyOnly(ep.Categories)
	out.ReadingList = nonNil(ep.ReadingList)
	return out, nil
}

func toDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// nonNil copies s into a slice that is never nil, so lists encode as [].
func nonNil(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// taxonomyOnly drops categories outside the closed taxonomy.
func taxonomyOnly(categories []string) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if domain.IsValidTag(c) {
			out = append(out, c)
		}
	}
	return out
}

// row is the flat representation shared by the SQL and Supabase REST
// backends: dates as ISO days, lists as JSON text.
type row struct {
	PodcastID      string `json:"podcast_id"`
	ID             string `json:"id"`
	Title          string `json:"title"`
	BroadcastDate  string `json:"broadcast_date"`
	Contributors   string `json:"contributors"`
	Description    string `json:"description"`
	SourceURL      string `json:"source_url"`
	Categories     string `json:"categories"`
	ReadingList    string `json:"reading_list"`
	BraggoscopeURL string `json:"braggoscope_url"`
}

func toRow(ep domain.Episode) (row, error) {
	contributors, err := encodeList(ep.Contributors)
	if err != nil {
		return row{}, err
	}
	categories, err := encodeList(ep.Categories)
	if err != nil {
		return row{}, err
	}
	readingList, err := encodeList(ep.ReadingList)
	if err != nil {
		return row{}, err
	}

	var date string
	if !ep.BroadcastDate.IsZero() {
		date = ep.BroadcastDate.Format(dateLayout)
	}

	return row{
		PodcastID:      ep.PodcastID,
		ID:             ep.ID,
		Title:          ep.Title,
		BroadcastDate:  date,
		Contributors:   contributors,
		Description:    ep.Description,
		SourceURL:      ep.SourceURL,
		Categories:     categories,
		ReadingList:    readingList,
		BraggoscopeURL: ep.BraggoscopeURL,
	}, nil
}

func (r row) episode() (domain.Episode, error) {
	ep := domain.Episode{
		ID:             r.ID,
		PodcastID:      r.PodcastID,
		Title:          r.Title,
		Description:    r.Description,
		SourceURL:      r.SourceURL,
		BraggoscopeURL: r.BraggoscopeURL,
	}

	if r.BroadcastDate != "" {
		t, err := time.Parse(dateLayout, r.BroadcastDate)
		if err != nil {
			return ep, eris.Wrapf(err, "store: episode %s/%s: parse broadcast date", r.PodcastID, r.ID)
		}
		ep.BroadcastDate = t
	}

	var err error
	if ep.Contributors, err = decodeList(r.Contributors); err != nil {
		return ep, eris.Wrapf(err, "store: episode %s/%s: contributors", r.PodcastID, r.ID)
	}
	if ep.Categories, err = decodeList(r.Categories); err != nil {
		return ep, eris.Wrapf(err, "store: episode %s/%s: categories", r.PodcastID, r.ID)
	}
	if ep.ReadingList, err = decodeList(r.ReadingList); err != nil {
		return ep, eris.Wrapf(err, "store: episode %s/%s: reading list", r.PodcastID, r.ID)
	}
	return ep, nil
}

func encodeList(items []string) (string, error) {
	b, err := json.Marshal(nonNil(items))
	if err != nil {
		return "", eris.Wrap(err, "store: encode list")
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	if s == "" {
		return []string{}, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, err
	}
	return nonNil(items), nil
}
