package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"podcast-search/pkg/domain"
)

// HTMLDescriptionParser understands the two description layouts used by
// In Our Time and similar BBC feeds:
//
// New format, one paragraph per block:
//
//	<p>Melvyn Bragg and guests discuss ...</p>
//	<p>With</p>
//	<p>Anne Smith, Professor of History at Oxford</p>
//	<p>and</p>
//	<p>John Doe, Reader at Cambridge</p>
//	<p>Reading list:</p>
//	<p>A Book (Publisher, 2020)</p>
//
// Old format, a single paragraph ending in the guest list:
//
//	The history of X. With Anne Smith, Oxford; John Doe, Cambridge.
type HTMLDescriptionParser struct{}

// NewHTMLDescriptionParser creates a description parser.
func NewHTMLDescriptionParser() *HTMLDescriptionParser {
	return &HTMLDescriptionParser{}
}

// ParseDescription implements DescriptionParser.
func (p *HTMLDescriptionParser) ParseDescription(markup string) domain.ParsedFields {
	return ParseDescription(markup)
}

var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "section": true, "article": true, "tr": true,
}

// oldWithMarker finds "With " as a word, so "Without" or "notwithstanding" never match.
var oldWithMarker = regexp.MustCompile(`(?:^|[\s.;:])With\s`)

// ParseDescription parses description markup, which may be HTML or plain text.
func ParseDescription(markup string) domain.ParsedFields {
	return parseBlocks(splitBlocks(markup))
}

// ParseSelection parses the blocks found under sel, for callers that already
// hold a parsed page.
func ParseSelection(sel *goquery.Selection) domain.ParsedFields {
	var b blockBuilder
	collectBlocks(sel, &b)
	b.flush()
	return parseBlocks(b.blocks)
}

func splitBlocks(markup string) []string {
	markup = strings.TrimSpace(markup)
	if markup == "" {
		return nil
	}

	if !strings.Contains(markup, "<") {
		var blocks []string
		for _, line := range strings.Split(markup, "\n") {
			if line = normalizeSpace(line); line != "" {
				blocks = append(blocks, line)
			}
		}
		return blocks
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return []string{normalizeSpace(markup)}
	}

	var b blockBuilder
	collectBlocks(doc.Find("body"), &b)
	b.flush()
	return b.blocks
}

type blockBuilder struct {
	current strings.Builder
	blocks  []string
}

func (b *blockBuilder) write(text string) {
	b.current.WriteString(text)
}

func (b *blockBuilder) flush() {
	if text := normalizeSpace(b.current.String()); text != "" {
		b.blocks = append(b.blocks, text)
	}
	b.current.Reset()
}

func collectBlocks(sel *goquery.Selection, b *blockBuilder) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		switch name := goquery.NodeName(s); {
		case name == "#text":
			b.write(s.Text())
		case name == "#comment" || name == "script" || name == "style":
		case name == "br":
			b.flush()
		case blockElements[name]:
			b.flush()
			collectBlocks(s, b)
			b.flush()
		default:
			collectBlocks(s, b)
		}
	})
}

func parseBlocks(blocks []string) domain.ParsedFields {
	if len(blocks) == 0 {
		return domain.ParsedFields{}
	}

	if len(blocks) == 1 && !isReadingListMarker(blocks[0]) {
		return parseOldFormat(blocks[0])
	}

	fields := parseNewFormat(blocks)
	if fields.Miss() {
		// Some multi-paragraph descriptions still carry the old trailing guest list.
		old := parseOldFormat(blocks[len(blocks)-1])
		fields.Contributors = old.Contributors
	}
	if fields.Synopsis == "" {
		fields.Synopsis = firstTextBlock(blocks)
	}
	return fields
}

type section int

const (
	sectionSynopsis section = iota
	sectionContributors
	sectionReadingList
	sectionTrailer
)

func parseNewFormat(blocks []string) domain.ParsedFields {
	var (
		fields   domain.ParsedFields
		synopsis []string
		state    = sectionSynopsis
	)

	for _, block := range blocks {
		switch {
		case isReadingListMarker(block):
			state = sectionReadingList
			if rest := afterMarker(block, "reading list"); rest != "" {
				fields.ReadingList = append(fields.ReadingList, rest)
			}
			continue
		case isWithMarker(block):
			state = sectionContributors
			fields.Contributors = append(fields.Contributors, splitContributors(strings.TrimSpace(block[len("With"):]))...)
			continue
		case isTrailerMarker(block):
			state = sectionTrailer
			continue
		}

		switch state {
		case sectionSynopsis:
			synopsis = append(synopsis, block)
		case sectionContributors:
			if name := cleanContributor(block); name != "" {
				fields.Contributors = append(fields.Contributors, name)
			}
		case sectionReadingList:
			fields.ReadingList = append(fields.ReadingList, block)
		}
	}

	fields.Synopsis = strings.Join(synopsis, "\n\n")
	return fields
}

func parseOldFormat(text string) domain.ParsedFields {
	locs := oldWithMarker.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return domain.ParsedFields{Synopsis: text}
	}

	last := locs[len(locs)-1]
	markerStart := last[0]
	if markerStart > 0 || text[0] != 'W' {
		// The match includes the delimiter before "With"; keep it with the synopsis.
		markerStart++
	}
	synopsis := strings.TrimSpace(text[:markerStart])
	clause := text[last[1]:]
	if i := strings.Index(clause, "Producer"); i >= 0 {
		clause = clause[:i]
	}

	return domain.ParsedFields{
		Synopsis:     synopsis,
		Contributors: splitContributors(clause),
	}
}

func splitContributors(clause string) []string {
	clause = strings.TrimSpace(clause)
	clause = strings.TrimSuffix(clause, ".")
	if clause == "" {
		return nil
	}

	var names []string
	for _, part := range strings.Split(clause, ";") {
		if name := cleanContributor(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func cleanContributor(s string) string {
	s = normalizeSpace(s)
	if strings.EqualFold(s, "and") {
		return ""
	}
	s = strings.TrimPrefix(s, "and ")
	s = strings.TrimSuffix(s, " and")
	return strings.TrimRight(s, ",;")
}

func isWithMarker(block string) bool {
	if block == "With" || block == "With:" {
		return true
	}
	if !strings.HasPrefix(block, "With ") {
		return false
	}
	// A synopsis sentence may also open with "With"; a guest list has
	// affiliations and no sentence breaks.
	rest := strings.TrimSuffix(block[len("With "):], ".")
	return strings.Contains(rest, ",") && !strings.Contains(rest, ". ")
}

func isReadingListMarker(block string) bool {
	return strings.HasPrefix(strings.ToLower(block), "reading list")
}

func isTrailerMarker(block string) bool {
	return strings.HasPrefix(block, "Producer:") || strings.HasPrefix(block, "Producers:")
}

func afterMarker(block, marker string) string {
	rest := strings.TrimSpace(block[len(marker):])
	return strings.TrimSpace(strings.TrimPrefix(rest, ":"))
}

func firstTextBlock(blocks []string) string {
	for _, b := range blocks {
		if !isWithMarker(b) && !isReadingListMarker(b) && !isTrailerMarker(b) {
			return b
		}
	}
	return ""
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
