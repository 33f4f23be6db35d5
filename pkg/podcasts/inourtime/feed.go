// Package inourtime ingests BBC Radio 4's In Our Time.
package inourtime

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"podcast-search/pkg/domain"
	"podcast-search/pkg/httpclient"
	"podcast-search/pkg/parser"
)

const (
	// PodcastID is the registry key for In Our Time.
	PodcastID = "in_our_time"

	// FeedURL is the public RSS feed, which carries the full archive.
	FeedURL = "https://podcasts.files.bbci.co.uk/b006qykl.rss"
)

// FeedProvider reads the In Our Time RSS feed.
type FeedProvider struct {
	fetcher httpclient.Fetcher
	parser  parser.FeedParser
	url     string
}

// NewFeedProvider creates a provider reading feedURL, or FeedURL when empty.
func NewFeedProvider(fetcher httpclient.Fetcher, feedURL string) *FeedProvider {
	if feedURL == "" {
		feedURL = FeedURL
	}
	return &FeedProvider{
		fetcher: fetcher,
		parser:  parser.NewRSSParser(),
		url:     feedURL,
	}
}

// FetchCurrentFeed fetches and parses the RSS feed.
func (p *FeedProvider) FetchCurrentFeed(ctx context.Context) ([]domain.FeedItem, error) {
	data, err := p.fetcher.Fetch(ctx, p.url)
	if err != nil {
		var fe *domain.FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &domain.FetchError{URL: p.url, Err: err}
	}

	items, err := p.parser.ParseFeed(data)
	if err != nil {
		return nil, eris.Wrapf(err, "in our time: feed %s", p.url)
	}
	return items, nil
}

// FetchHistoricFeed returns nothing: the RSS feed is complete.
func (p *FeedProvider) FetchHistoricFeed(ctx context.Context) ([]domain.FeedItem, error) {
	return nil, nil
}

// IsFeedComplete reports true; the RSS feed reaches back to 1998.
func (p *FeedProvider) IsFeedComplete() bool {
	return true
}
