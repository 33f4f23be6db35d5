package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMakeEpisodeID(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"The Siege of Malta (1565)", "the-siege-of-malta-1565"},
		{"Plato's Republic", "platos-republic"},
		{"  Leading and trailing  ", "leading-and-trailing"},
		{"Rome -- Law", "rome-law"},
		{"Ibn Khaldūn", "ibn-khaldn"},
		{"???", ""},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, MakeEpisodeID(tt.title))
		})
	}
}

func TestBraggoscopeURL(t *testing.T) {
	date := time.Date(2023, time.September, 7, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "https://www.braggoscope.com/2023/09/07/the-siege-of-malta.html", BraggoscopeURL("the-siege-of-malta", date))
	assert.Empty(t, BraggoscopeURL("", date))
	assert.Empty(t, BraggoscopeURL("x", time.Time{}))
}

func TestFeedItemEpisodeID(t *testing.T) {
	item := FeedItem{Title: "War in the 20th Century"}
	assert.Equal(t, "war-in-the-20th-century", item.EpisodeID())
}

func TestParsedFieldsMiss(t *testing.T) {
	assert.True(t, ParsedFields{Synopsis: "x"}.Miss())
	assert.False(t, ParsedFields{Contributors: []string{"Anne Smith"}}.Miss())
}

func TestPartialFieldsIsEmpty(t *testing.T) {
	assert.True(t, PartialFields{}.IsEmpty())
	assert.False(t, PartialFields{ReadingList: []string{"A Book"}}.IsEmpty())
}

func TestFetchError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("in our time: %w", &FetchError{URL: "https://example.com/feed", Err: cause})

	assert.True(t, IsFetchError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")

	status := &FetchError{URL: "https://example.com/feed", StatusCode: 503}
	assert.Equal(t, "fetch https://example.com/feed: unexpected status 503", status.Error())
	assert.False(t, IsFetchError(cause))
}

func TestTaxonomy(t *testing.T) {
	assert.True(t, IsValidTag("Medieval"))
	assert.True(t, IsValidTag("19th Century"))
	assert.False(t, IsValidTag("medieval"))
	assert.False(t, IsValidTag("Astrology"))

	facet, ok := FacetOf("Rome")
	assert.True(t, ok)
	assert.Equal(t, Region, facet)

	seen := make(map[string]bool)
	for _, tag := range AllTags() {
		assert.False(t, seen[tag], "tag %q listed twice", tag)
		seen[tag] = true
	}
	assert.Len(t, AllTags(), len(Tags(Discipline))+len(Tags(Era))+len(Tags(Region)))
}
