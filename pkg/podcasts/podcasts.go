package podcasts

import (
	"context"

	"podcast-search/pkg/domain"
)

// FeedProvider fetches a podcast's feed items.
type FeedProvider interface {
	// FetchCurrentFeed returns the live feed in feed order, without
	// deduplication. Network failures are returned as *domain.FetchError.
	FetchCurrentFeed(ctx context.Context) ([]domain.FeedItem, error)

	// FetchHistoricFeed returns older items missing from the live feed. It is
	// called once per podcast and its result snapshotted; providers whose
	// live feed is complete return nothing.
	FetchHistoricFeed(ctx context.Context) ([]domain.FeedItem, error)

	// IsFeedComplete reports whether the live feed alone covers the archive.
	IsFeedComplete() bool
}

// Enricher fetches fields from an episode's source page when its feed
// description had no contributors. It never fails: on any error it returns
// the zero PartialFields.
type Enricher interface {
	Enrich(ctx context.Context, item domain.FeedItem) domain.PartialFields
}

// Podcast binds a podcast id to its provider and optional enricher.
type Podcast struct {
	ID       string
	Name     string
	Provider FeedProvider
	Enricher Enricher
}
