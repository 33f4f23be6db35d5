package parser

import "podcast-search/pkg/domain"

// FeedParser turns a raw feed document into feed items, in feed order.
type FeedParser interface {
	ParseFeed(data []byte) ([]domain.FeedItem, error)
}

// DescriptionParser extracts contributors, reading list and synopsis from
// description markup. It never fails; a description it cannot understand
// yields a ParsedFields with at most a synopsis.
type DescriptionParser interface {
	ParseDescription(markup string) domain.ParsedFields
}
