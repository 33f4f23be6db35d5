package inourtime

import (
	"bytes"
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"podcast-search/pkg/content"
	"podcast-search/pkg/domain"
	"podcast-search/pkg/httpclient"
	"podcast-search/pkg/parser"
)

// Enricher reads guests, reading list and synopsis from BBC programme pages.
type Enricher struct {
	fetcher   httpclient.Fetcher
	extractor content.Extractor
}

// NewEnricher creates an enricher. The fetcher is expected to space out
// requests to www.bbc.co.uk.
func NewEnricher(fetcher httpclient.Fetcher) *Enricher {
	return &Enricher{
		fetcher:   fetcher,
		extractor: content.NewDefaultExtractor(),
	}
}

// Enrich fetches item's programme page. Failures are logged and produce
// empty fields.
func (e *Enricher) Enrich(ctx context.Context, item domain.FeedItem) domain.PartialFields {
	log := zap.L().With(zap.String("podcast", PodcastID), zap.String("url", item.Link))

	page, err := e.fetcher.Fetch(ctx, item.Link)
	if err != nil {
		log.Warn("enrich: fetch programme page", zap.Error(err))
		return domain.PartialFields{}
	}

	fields, err := e.ParsePage(page)
	if err != nil {
		log.Warn("enrich: parse programme page", zap.Error(err))
		return domain.PartialFields{}
	}

	log.Debug("enrich: parsed programme page",
		zap.Int("contributors", len(fields.Contributors)),
		zap.Int("reading_list", len(fields.ReadingList)),
	)
	return fields
}

// ParsePage extracts fields from a programme page. The long synopsis block is
// preferred; the short synopsis, meta tags and readability are successive
// fallbacks for the description only.
func (e *Enricher) ParsePage(page []byte) (domain.PartialFields, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return domain.PartialFields{}, eris.Wrap(err, "in our time: parse page")
	}

	var fields domain.PartialFields
	if long := doc.Find("div.synopsis-toggle__long"); long.Length() > 0 {
		parsed := parser.ParseSelection(long.First())
		fields = domain.PartialFields{
			Description:  parsed.Synopsis,
			Contributors: parsed.Contributors,
			ReadingList:  parsed.ReadingList,
		}
	}

	if fields.Description == "" {
		fields.Description = parser.ParseSelection(doc.Find("div.synopsis-toggle__short").First()).Synopsis
	}
	if fields.Description == "" {
		fields.Description = content.MetaDescription(doc)
	}
	if fields.Description == "" {
		if desc, err := e.extractor.ExtractDescription(string(page)); err == nil {
			fields.Description = desc
		}
	}

	return fields, nil
}
