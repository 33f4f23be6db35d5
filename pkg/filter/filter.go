package filter

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"podcast-search/pkg/domain"
)

// Filter decides whether a feed item enters the ingestion pipeline.
type Filter interface {
	ShouldKeep(ctx context.Context, item domain.FeedItem) (bool, error)
}

// FilterItems applies all filters to items, preserving order. Filters run in
// the given order and stop at the first rejection, so stateful filters such
// as Limit only see items the earlier ones kept.
func FilterItems(ctx context.Context, items []domain.FeedItem, filters ...Filter) ([]domain.FeedItem, error) {
	filtered := make([]domain.FeedItem, 0, len(items))

	for _, item := range items {
		keep := true
		for _, f := range filters {
			shouldKeep, err := f.ShouldKeep(ctx, item)
			if err != nil {
				return nil, eris.Wrapf(err, "filter error for item %s", item.GUID)
			}
			if !shouldKeep {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, item)
		}
	}

	return filtered, nil
}

// CompleteFilter drops items that cannot become an episode: no guid, title,
// link or publication date, or a title that slugs to nothing.
type CompleteFilter struct{}

// NewCompleteFilter creates a new completeness filter.
func NewCompleteFilter() *CompleteFilter {
	return &CompleteFilter{}
}

// ShouldKeep implements Filter.
func (f *CompleteFilter) ShouldKeep(_ context.Context, item domain.FeedItem) (bool, error) {
	if item.GUID == "" || item.Title == "" || item.Link == "" || item.Published.IsZero() {
		return false, nil
	}
	return item.EpisodeID() != "", nil
}

// KnownFilter drops items whose episode id is already stored.
type KnownFilter struct {
	known map[string]bool
}

// NewKnownFilter creates a filter over the ids already stored for a podcast.
func NewKnownFilter(known map[string]bool) *KnownFilter {
	return &KnownFilter{known: known}
}

// ShouldKeep implements Filter.
func (f *KnownFilter) ShouldKeep(_ context.Context, item domain.FeedItem) (bool, error) {
	return !f.known[item.EpisodeID()], nil
}

// LimitFilter keeps at most n items; n <= 0 keeps everything.
type LimitFilter struct {
	mu   sync.Mutex
	n    int
	kept int
}

// NewLimitFilter creates a limit filter. Place it last in the chain.
func NewLimitFilter(n int) *LimitFilter {
	return &LimitFilter{n: n}
}

// ShouldKeep implements Filter.
func (f *LimitFilter) ShouldKeep(context.Context, domain.FeedItem) (bool, error) {
	if f.n <= 0 {
		return true, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.kept >= f.n {
		return false, nil
	}
	f.kept++
	return true, nil
}
