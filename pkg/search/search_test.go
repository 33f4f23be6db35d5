package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-search/pkg/domain"
)

type fakeSource struct {
	episodes []domain.Episode
	err      error
}

func (f *fakeSource) All(context.Context) ([]domain.Episode, error) {
	return f.episodes, f.err
}

func ep(id, title string, date time.Time, categories ...string) domain.Episode {
	return domain.Episode{
		ID:            id,
		PodcastID:     "in_our_time",
		Title:         title,
		BroadcastDate: date,
		Categories:    categories,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newEngine(t *testing.T, rich bool, episodes ...domain.Episode) *Engine {
	t.Helper()
	e := NewEngine(&fakeSource{episodes: episodes}, NewParser(rich))
	n, err := e.Rebuild(context.Background())
	require.NoError(t, err)
	require.Equal(t, len(episodes), n)
	return e
}

func ids(r Result) []string {
	out := []string{}
	for _, e := range r.Episodes {
		out = append(out, e.ID)
	}
	return out
}

func TestSearch_Disjunction(t *testing.T) {
	e := newEngine(t, false,
		ep("a", "Rome Medicine", day(2020, 1, 1)),
		ep("b", "Rome Law", day(2010, 1, 1)),
		ep("c", "Greece Art", day(2021, 1, 1)),
	)

	r := e.Search("Rome Law")
	assert.Equal(t, []string{"b", "a"}, ids(r))
	assert.Equal(t, 2, r.Total)
}

func TestSearch_HigherWeightFieldWins(t *testing.T) {
	title := ep("title", "Law", day(2000, 1, 1))
	desc := ep("desc", "Other", day(2020, 1, 1))
	desc.Description = "law"
	cat := ep("cat", "Other", day(2020, 1, 1), "Law")

	e := newEngine(t, false, desc, cat, title)
	assert.Equal(t, []string{"title", "cat", "desc"}, ids(e.Search("law")))
}

func TestSearch_MoreTermsBeatsHeavierField(t *testing.T) {
	oneHeavy := ep("heavy", "Rome", day(2020, 1, 1))
	twoLight := ep("light", "Other", day(2000, 1, 1))
	twoLight.Description = "rome and law"

	e := newEngine(t, false, oneHeavy, twoLight)
	assert.Equal(t, []string{"light", "heavy"}, ids(e.Search("rome law")))
}

func TestSearch_TiesByDateThenKey(t *testing.T) {
	e := newEngine(t, false,
		ep("old", "Rome", day(2001, 1, 1)),
		ep("new", "Rome", day(2002, 1, 1)),
		ep("b-same", "Rome", day(2002, 1, 1)),
	)
	assert.Equal(t, []string{"b-same", "new", "old"}, ids(e.Search("rome")))
}

func TestSearch_EmptyQueryMatchesEverything(t *testing.T) {
	e := newEngine(t, false,
		ep("a", "A", day(2001, 1, 1)),
		ep("b", "B", day(2003, 1, 1)),
		ep("c", "C", day(2002, 1, 1)),
	)

	for _, q := range []string{"", "   "} {
		r := e.Search(q)
		assert.Equal(t, []string{"b", "c", "a"}, ids(r))
		assert.Equal(t, 3, r.Total)
	}
}

func TestSearch_RejectedTokens(t *testing.T) {
	e := newEngine(t, false,
		ep("a", "Rome", day(2001, 1, 1)),
		ep("b", "Greece", day(2002, 1, 1)),
	)

	// Everything rejected: degenerate input matches all.
	assert.Equal(t, []string{"b", "a"}, ids(e.Search("rome! +History source=x")))

	// A rejected token does not hide the accepted ones.
	assert.Equal(t, []string{"a"}, ids(e.Search("rome c++")))
}

func TestSearch_NoMatch(t *testing.T) {
	e := newEngine(t, false, ep("a", "Rome", day(2001, 1, 1)))
	r := e.Search("carthage")
	assert.Empty(t, r.Episodes)
	assert.NotNil(t, r.Episodes)
	assert.Zero(t, r.Total)
}

func TestSearch_CapAndTotal(t *testing.T) {
	var episodes []domain.Episode
	for i := 0; i < 75; i++ {
		episodes = append(episodes, ep(fmt.Sprintf("e%02d", i), "History", day(2000, 1, 1).AddDate(0, 0, i)))
	}
	e := newEngine(t, false, episodes...)

	r := e.Search("history")
	assert.Len(t, r.Episodes, MaxResults)
	assert.Equal(t, 75, r.Total)
	assert.Equal(t, "e74", r.Episodes[0].ID)

	r = e.Search("")
	assert.Len(t, r.Episodes, MaxResults)
	assert.Equal(t, 75, r.Total)
}

func TestSearch_CaseInsensitiveAndTokenized(t *testing.T) {
	x := ep("x", "The Siege of Malta", day(2001, 1, 1))
	x.Contributors = []string{"Anne Smith, Oxford"}
	x.ReadingList = []string{"H. Bradford, The Great Siege (1961)"}
	e := newEngine(t, false, x)

	for _, q := range []string{"MALTA", "oxford", "smith", "1961", "bradford"} {
		assert.Equal(t, []string{"x"}, ids(e.Search(q)), q)
	}
}

func TestSearch_RichGrammar(t *testing.T) {
	a := ep("a", "Rome", day(2001, 1, 1), "History", "Ancient")
	b := ep("b", "Rome", day(2002, 1, 1), "Art", "Early Modern")
	c := ep("c", "Rome", day(2003, 1, 1), "History")
	c.PodcastID = "other"
	e := newEngine(t, true, a, b, c)

	assert.Equal(t, []string{"c", "a"}, ids(e.Search("rome +history")))
	assert.Equal(t, []string{"b"}, ids(e.Search("-History")))
	assert.Equal(t, []string{"b"}, ids(e.Search("+early_modern")))
	assert.Equal(t, []string{"c"}, ids(e.Search("source=other")))
	assert.Equal(t, []string{"a"}, ids(e.Search("rome source=in_our_time +History")))
}

func TestParser(t *testing.T) {
	q := NewParser(false).Parse("Rome rome law! +tag")
	assert.Equal(t, []string{"rome"}, q.Terms)
	assert.Equal(t, 2, q.Rejected)

	q = NewParser(true).Parse("+early_modern -Art source=in_our_time Rome +")
	assert.Equal(t, []string{"early modern"}, q.RequireCategories)
	assert.Equal(t, []string{"Art"}, q.ExcludeCategories)
	assert.Equal(t, []string{"in_our_time"}, q.Sources)
	assert.Equal(t, []string{"rome"}, q.Terms)
	assert.Equal(t, 1, q.Rejected)
}

func TestSearch_MatchesInflectedForms(t *testing.T) {
	e := newEngine(t, false,
		ep("romans", "The Romans in Britain", day(2012, 1, 1)),
		ep("presocratics", "Presocratic Philosophers", day(2008, 1, 1)),
	)

	assert.Equal(t, []string{"romans"}, ids(e.Search("Roman")))
	assert.Equal(t, []string{"romans"}, ids(e.Search("romans")))
	assert.Equal(t, []string{"presocratics"}, ids(e.Search("philosopher")))
}

func TestParser_StemsTerms(t *testing.T) {
	q := NewParser(false).Parse("Roman romans philosophers")
	assert.Equal(t, []string{"roman", "philosoph"}, q.Terms)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"anne", "smith", "oxford"}, Tokenize("Anne Smith, Oxford"))
	assert.Equal(t, []string{"19th", "century"}, Tokenize("19th Century"))
	assert.Empty(t, Tokenize(" ,.; "))
}

func TestWeight(t *testing.T) {
	assert.Equal(t, 8, Weight(FieldTitle))
	assert.Equal(t, 13, Weight(FieldTitle|FieldCategories))
	assert.Equal(t, 18, Weight(FieldTitle|FieldCategories|FieldContributors|FieldDescription|FieldReadingList))
}

func TestRebuild_ErrorKeepsPreviousIndex(t *testing.T) {
	src := &fakeSource{episodes: []domain.Episode{ep("a", "Rome", day(2001, 1, 1))}}
	e := NewEngine(src, nil)
	_, err := e.Rebuild(context.Background())
	require.NoError(t, err)

	src.err = errors.New("db down")
	_, err = e.Rebuild(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, e.Size())
	assert.Equal(t, []string{"a"}, ids(e.Search("rome")))
}

func TestSearch_BeforeRebuildIsEmpty(t *testing.T) {
	e := NewEngine(&fakeSource{}, nil)
	r := e.Search("")
	assert.Empty(t, r.Episodes)
	assert.Zero(t, r.Total)
}

func TestSearch_ConcurrentWithRebuild(t *testing.T) {
	src := &fakeSource{episodes: []domain.Episode{
		ep("a", "Rome", day(2001, 1, 1)),
		ep("b", "Rome", day(2002, 1, 1)),
	}}
	e := NewEngine(src, nil)
	_, err := e.Rebuild(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = e.Rebuild(context.Background())
		}()
		go func() {
			defer wg.Done()
			assert.Equal(t, 2, e.Search("rome").Total)
		}()
	}
	wg.Wait()
}
