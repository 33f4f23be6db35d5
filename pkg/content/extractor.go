package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/rotisserie/eris"
)

// maxExcerptRunes bounds a readability-derived description.
const maxExcerptRunes = 600

// Extractor pulls page-level fallbacks out of a source page when the page
// lacks the structured synopsis a podcast's enricher looks for.
type Extractor interface {
	ExtractTitle(htmlContent string) (string, error)
	ExtractDescription(htmlContent string) (string, error)
}

// DefaultExtractor implements Extractor with meta tags first and readability last.
type DefaultExtractor struct{}

// NewDefaultExtractor creates a new default extractor
func NewDefaultExtractor() *DefaultExtractor {
	return &DefaultExtractor{}
}

// ExtractTitle implements Extractor.
func (e *DefaultExtractor) ExtractTitle(htmlContent string) (string, error) {
	return ExtractTitle(htmlContent)
}

// ExtractDescription implements Extractor.
func (e *DefaultExtractor) ExtractDescription(htmlContent string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", eris.Wrap(err, "content: parse html")
	}
	if desc := MetaDescription(doc); desc != "" {
		return desc, nil
	}
	return ExtractExcerpt(htmlContent)
}

// MetaDescription returns the page's meta description, falling back to
// og:description. Empty when neither is present.
func MetaDescription(doc *goquery.Document) string {
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && strings.TrimSpace(desc) != "" {
		return strings.TrimSpace(desc)
	}
	if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok && strings.TrimSpace(desc) != "" {
		return strings.TrimSpace(desc)
	}
	return ""
}

// ExtractExcerpt returns a short description of the main page content via
// readability: its excerpt when it has one, else the opening of the text.
func ExtractExcerpt(htmlContent string) (string, error) {
	article, err := readability.FromReader(strings.NewReader(htmlContent), nil)
	if err != nil {
		return "", eris.Wrap(err, "content: readability")
	}

	if excerpt := strings.TrimSpace(article.Excerpt); excerpt != "" {
		return truncate(excerpt, maxExcerptRunes), nil
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if text == "" {
		return "", eris.New("content: no readable text")
	}
	return truncate(text, maxExcerptRunes), nil
}

// ExtractTitle extracts the page title with fallback mechanisms
func ExtractTitle(htmlContent string) (string, error) {
	// Try readability first
	article, err := readability.FromReader(strings.NewReader(htmlContent), nil)
	if err == nil {
		title := strings.TrimSpace(article.Title)
		if title != "" {
			return title, nil
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", eris.Wrap(err, "content: parse html")
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title, nil
	}
	if title := strings.TrimSpace(doc.Find("h1").First().Text()); title != "" {
		return title, nil
	}
	if title, exists := doc.Find(`meta[property="og:title"]`).Attr("content"); exists && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title), nil
	}

	return "", eris.New("content: title not found in html")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := string(runes[:max])
	if i := strings.LastIndex(cut, " "); i > max/2 {
		cut = cut[:i]
	}
	return cut + "…"
}
