package parser

import (
	"bytes"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"podcast-search/pkg/domain"
)

// RSSParser handles RSS/Atom feed parsing operations
type RSSParser struct {
	feedParser *gofeed.Parser
}

// NewRSSParser creates a new RSS parser
func NewRSSParser() *RSSParser {
	return &RSSParser{
		feedParser: gofeed.NewParser(),
	}
}

// ParseFeed parses an RSS/Atom document into feed items, preserving feed
// order. Items missing a guid, title, link or publication date are skipped.
// Duplicates are kept; deduplication belongs to the store.
func (p *RSSParser) ParseFeed(data []byte) ([]domain.FeedItem, error) {
	feed, err := p.feedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "rss: parse feed")
	}

	items := make([]domain.FeedItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		fi, ok := toFeedItem(item)
		if !ok {
			zap.L().Debug("rss: skipping incomplete item",
				zap.String("guid", item.GUID),
				zap.String("title", item.Title),
			)
			continue
		}
		items = append(items, fi)
	}

	return items, nil
}

func toFeedItem(item *gofeed.Item) (domain.FeedItem, bool) {
	guid := strings.TrimSpace(item.GUID)
	title := strings.TrimSpace(item.Title)
	link := strings.TrimSpace(item.Link)
	if guid == "" || title == "" || link == "" || item.PublishedParsed == nil {
		return domain.FeedItem{}, false
	}

	description := item.Description
	if description == "" {
		description = item.Content
	}

	return domain.FeedItem{
		GUID:        guid,
		Title:       title,
		Published:   broadcastDay(*item.PublishedParsed),
		Link:        link,
		Description: strings.TrimSpace(description),
	}, true
}

// broadcastDay keeps the calendar date the feed published in, dropping the
// time of day.
func broadcastDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
