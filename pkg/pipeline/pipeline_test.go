package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podcast-search/pkg/classifier"
	"podcast-search/pkg/domain"
	"podcast-search/pkg/feed"
	"podcast-search/pkg/parser"
	"podcast-search/pkg/podcasts"
	"podcast-search/pkg/store"
)

// mockProvider is a mock implementation of podcasts.FeedProvider for testing
type mockProvider struct {
	current       []domain.FeedItem
	historic      []domain.FeedItem
	complete      bool
	err           error
	historicCalls atomic.Int32
}

func (m *mockProvider) FetchCurrentFeed(context.Context) ([]domain.FeedItem, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]domain.FeedItem(nil), m.current...), nil
}

func (m *mockProvider) FetchHistoricFeed(context.Context) ([]domain.FeedItem, error) {
	m.historicCalls.Add(1)
	return append([]domain.FeedItem(nil), m.historic...), nil
}

func (m *mockProvider) IsFeedComplete() bool { return m.complete }

// mockEnricher is a mock implementation of podcasts.Enricher for testing
type mockEnricher struct {
	mu     sync.Mutex
	calls  map[string]int
	result domain.PartialFields
}

func (m *mockEnricher) Enrich(_ context.Context, item domain.FeedItem) domain.PartialFields {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[item.GUID]++
	return m.result
}

func (m *mockEnricher) callsFor(guid string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[guid]
}

// mockClassifier returns reply for every title unless the title is listed in
// degraded.
type mockClassifier struct {
	reply    []string
	degraded map[string]bool
	onCall   func(title string)
	calls    atomic.Int32
}

func (m *mockClassifier) Classify(_ context.Context, title, _ string, _ []string) ([]string, error) {
	m.calls.Add(1)
	if m.onCall != nil {
		m.onCall(title)
	}
	if m.degraded[title] {
		return []string{}, &classifier.DegradedError{Reason: "unparsable reply", Err: classifier.ErrNoTagArray}
	}
	return append([]string(nil), m.reply...), nil
}

// recordingStore records the order of upserts.
type recordingStore struct {
	store.Store
	mu    sync.Mutex
	order []string
}

func (r *recordingStore) Upsert(ctx context.Context, ep *domain.Episode) (store.Outcome, error) {
	r.mu.Lock()
	r.order = append(r.order, ep.ID)
	r.mu.Unlock()
	return r.Store.Upsert(ctx, ep)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func feedItem(guid, title string, published time.Time, description string) domain.FeedItem {
	return domain.FeedItem{
		GUID:        guid,
		Title:       title,
		Published:   published,
		Link:        "https://www.bbc.co.uk/programmes/" + guid,
		Description: description,
	}
}

const withGuests = "The history of X. With Anne Smith, Oxford; John Doe, Cambridge."

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.OpenJSONStore(filepath.Join(t.TempDir(), store.EpisodesFilename))
	require.NoError(t, err)
	return s
}

func newPipeline(t *testing.T, s store.Store, c Classifier, cfg Config) *Pipeline {
	t.Helper()
	cfg.Store = s
	cfg.Parser = parser.NewHTMLDescriptionParser()
	cfg.Classifier = c
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 4
	}
	p, err := NewPipeline(cfg)
	require.NoError(t, err)
	return p
}

func podcast(id string, provider podcasts.FeedProvider, enricher podcasts.Enricher) podcasts.Podcast {
	return podcasts.Podcast{ID: id, Name: id, Provider: provider, Enricher: enricher}
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	_, err := NewPipeline(Config{})
	assert.Error(t, err)
}

// Input: the same three-item feed ingested twice.
// Expected Output: three inserts on the first run, none on the second, and
// identical store contents.
func TestPipeline_Run_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	provider := &mockProvider{complete: true, current: []domain.FeedItem{
		feedItem("g3", "Entropy", day(2020, 3, 1), withGuests),
		feedItem("g2", "Magna Carta", day(2020, 2, 1), withGuests),
		feedItem("g1", "Plato", day(2020, 1, 1), withGuests),
	}}
	p := newPipeline(t, s, &mockClassifier{reply: []string{"History", "Medieval", "Britain"}}, Config{})
	pods := []podcasts.Podcast{podcast("in_our_time", provider, nil)}

	first, err := p.Run(ctx, pods)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted())
	assert.NotEmpty(t, first.RunID)
	before, err := s.All(ctx)
	require.NoError(t, err)

	second, err := p.Run(ctx, pods)
	require.NoError(t, err)
	assert.Zero(t, second.Inserted())
	assert.NotEqual(t, first.RunID, second.RunID)
	after, err := s.All(ctx)
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestPipeline_Run_BuildsEpisode(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	provider := &mockProvider{complete: true, current: []domain.FeedItem{
		feedItem("g1", "The Siege of Malta", day(2016, 3, 3), withGuests),
	}}
	p := newPipeline(t, s, &mockClassifier{reply: []string{"History", "Early Modern", "Italy"}}, Config{})

	_, err := p.Run(ctx, []podcasts.Podcast{podcast("in_our_time", provider, nil)})
	require.NoError(t, err)

	got, err := s.Get(ctx, domain.EpisodeKey{PodcastID: "in_our_time", ID: "the-siege-of-malta"})
	require.NoError(t, err)
	assert.Equal(t, "The Siege of Malta", got.Title)
	assert.Equal(t, day(2016, 3, 3), got.BroadcastDate)
	assert.Equal(t, []string{"Anne Smith, Oxford", "John Doe, Cambridge"}, got.Contributors)
	assert.Equal(t, []string{"History", "Early Modern", "Italy"}, got.Categories)
	assert.Equal(t, "https://www.bbc.co.uk/programmes/g1", got.SourceURL)
	assert.Equal(t, "https://www.braggoscope.com/2016/03/03/the-siege-of-malta.html", got.BraggoscopeURL)
}

// Input: one item whose classification reply is prose, between two good ones.
// Expected Output: all three stored, the degraded one with no categories.
func TestPipeline_Run_DegradedClassification(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	provider := &mockProvider{complete: true, current: []domain.FeedItem{
		feedItem("g1", "Plato", day(2020, 1, 1), withGuests),
		feedItem("g2", "Broken", day(2020, 2, 1), withGuests),
		feedItem("g3", "Entropy", day(2020, 3, 1), withGuests),
	}}
	c := &mockClassifier{reply: []string{"Science"}, degraded: map[string]bool{"Broken": true}}
	p := newPipeline(t, s, c, Config{})

	report, err := p.Run(ctx, []podcasts.Podcast{podcast("in_our_time", provider, nil)})
	require.NoError(t, err)
	require.Len(t, report.Podcasts, 1)
	assert.Equal(t, 3, report.Podcasts[0].Inserted)
	assert.Equal(t, 1, report.Podcasts[0].Degraded)

	broken, err := s.Get(ctx, domain.EpisodeKey{PodcastID: "in_our_time", ID: "broken"})
	require.NoError(t, err)
	assert.Equal(t, []string{}, broken.Categories)

	unclassified, err := s.Unclassified(ctx)
	require.NoError(t, err)
	require.Len(t, unclassified, 1)
	assert.Equal(t, "broken", unclassified[0].ID)
}

// Input: one item without contributors in its description, one with.
// Expected Output: the enricher is called exactly once, for the first item,
// and its fields end up on the stored episode.
func TestPipeline_Run_EnrichOnlyOnMiss(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	provider := &mockProvider{complete: true, current: []domain.FeedItem{
		feedItem("miss", "Cicero", day(2020, 1, 1), "Melvyn Bragg discusses Cicero."),
		feedItem("hit", "Plato", day(2020, 2, 1), withGuests),
	}}
	enricher := &mockEnricher{result: domain.PartialFields{
		Description:  "The Roman statesman.",
		Contributors: []string{"Mary Beard, Cambridge"},
		ReadingList:  []string{"A. Everitt, Cicero (2001)"},
	}}
	p := newPipeline(t, s, &mockClassifier{reply: []string{"History", "Rome"}}, Config{})

	report, err := p.Run(ctx, []podcasts.Podcast{podcast("in_our_time", provider, enricher)})
	require.NoError(t, err)

	assert.Equal(t, 1, enricher.callsFor("miss"))
	assert.Zero(t, enricher.callsFor("hit"))
	assert.Equal(t, 1, report.Podcasts[0].Enriched)

	got, err := s.Get(ctx, domain.EpisodeKey{PodcastID: "in_our_time", ID: "cicero"})
	require.NoError(t, err)
	assert.Equal(t, "The Roman statesman.", got.Description)
	assert.Equal(t, []string{"Mary Beard, Cambridge"}, got.Contributors)
	assert.Equal(t, []string{"A. Everitt, Cicero (2001)"}, got.ReadingList)
}

func TestPipeline_Run_EmptyEnrichmentStillStores(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	provider := &mockProvider{complete: true, current: []domain.FeedItem{
		feedItem("miss", "Cicero", day(2020, 1, 1), "Melvyn Bragg discusses Cicero."),
	}}
	p := newPipeline(t, s, &mockClassifier{reply: []string{"History"}}, Config{})

	_, err := p.Run(ctx, []podcasts.Podcast{podcast("in_our_time", provider, &mockEnricher{})})
	require.NoError(t, err)

	got, err := s.Get(ctx, domain.EpisodeKey{PodcastID: "in_our_time", ID: "cicero"})
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.Contributors)
	assert.Equal(t, "Melvyn Bragg discusses Cicero.", got.Description)
}

// Input: two podcasts, the first failing with a FetchError.
// Expected Output: the run continues, nothing is stored for the first
// podcast, and its report carries the error.
func TestPipeline_Run_FetchErrorAbortsOnlyThatPodcast(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	failing := &mockProvider{err: &domain.FetchError{URL: "https://feeds.example/rss", StatusCode: 503}}
	working := &mockProvider{complete: true, current: []domain.FeedItem{
		feedItem("g1", "Plato", day(2020, 1, 1), withGuests),
	}}
	p := newPipeline(t, s, &mockClassifier{reply: []string{"Philosophy"}}, Config{})

	report, err := p.Run(ctx, []podcasts.Podcast{
		podcast("broken", failing, nil),
		podcast("working", working, nil),
	})
	require.NoError(t, err)
	require.Len(t, report.Podcasts, 2)

	require.Len(t, report.Failed(), 1)
	assert.Equal(t, "broken", report.Failed()[0].PodcastID)
	assert.True(t, domain.IsFetchError(report.Podcasts[0].Err))
	assert.Equal(t, 1, report.Podcasts[1].Inserted)

	keys, err := s.Keys(ctx, "broken")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestPipeline_Run_TaxonomyClosure(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	provider := &mockProvider{complete: true, current: []domain.FeedItem{
		feedItem("g1", "Plato", day(2020, 1, 1), withGuests),
	}}
	c := &mockClassifier{reply: []string{"Philosophy", "Atlantis", "greece", "Greece"}}
	p := newPipeline(t, s, c, Config{})

	_, err := p.Run(ctx, []podcasts.Podcast{podcast("in_our_time", provider, nil)})
	require.NoError(t, err)

	all, err := s.All(ctx)
	require.NoError(t, err)
	for _, ep := range all {
		for _, tag := range ep.Categories {
			assert.True(t, domain.IsValidTag(tag), tag)
		}
	}
	assert.Equal(t, []string{"Philosophy", "Greece"}, all[0].Categories)
}

// Input: a newest-first feed processed by several workers.
// Expected Output: episodes are committed oldest first.
func TestPipeline_Run_CommitsOldestFirst(t *testing.T) {
	ctx := context.Background()
	rec := &recordingStore{Store: newStore(t)}
	provider := &mockProvider{complete: true, current: []domain.FeedItem{
		feedItem("g4", "Four", day(2020, 4, 1), withGuests),
		feedItem("g2", "Two", day(2020, 2, 1), withGuests),
		feedItem("g3", "Three", day(2020, 3, 1), withGuests),
		feedItem("g1", "One", day(2020, 1, 1), withGuests),
	}}
	c := &mockClassifier{reply: []string{"History"}, onCall: func(title string) {
		// Make the oldest item the slowest.
		if title == "One" {
			time.Sleep(20 * time.Millisecond)
		}
	}}
	p := newPipeline(t, rec, c, Config{WorkerCount: 4})

	_, err := p.Run(ctx, []podcasts.Podcast{podcast("in_our_time", provider, nil)})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three", "four"}, rec.order)
}

func TestPipeline_Run_DuplicateSlugInOneFeed(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	provider := &mockProvider{complete: true, current: []domain.FeedItem{
		feedItem("repeat", "Plato", day(2021, 1, 1), withGuests),
		feedItem("orig", "Plato", day(2020, 1, 1), withGuests),
	}}
	p := newPipeline(t, s, &mockClassifier{reply: []string{"Philosophy"}}, Config{})

	report, err := p.Run(ctx, []podcasts.Podcast{podcast("in_our_time", provider, nil)})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Podcasts[0].Inserted)
	assert.Equal(t, 1, report.Podcasts[0].Skipped)

	got, err := s.Get(ctx, domain.EpisodeKey{PodcastID: "in_our_time", ID: "plato"})
	require.NoError(t, err)
	assert.Equal(t, day(2020, 1, 1), got.BroadcastDate)
}

// Input: cancellation requested while the first item is being classified.
// Expected Output: the run stops early with context.Canceled, and every
// item that started is fully stored.
func TestPipeline_Run_Cancellation(t *testing.T) {
	s := newStore(t)
	var items []domain.FeedItem
	for i, title := range []string{"A", "B", "C", "D", "E", "F"} {
		items = append(items, feedItem(title, title, day(2020, 1, i+1), withGuests))
	}
	provider := &mockProvider{complete: true, current: items}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &mockClassifier{reply: []string{"History"}, onCall: func(title string) {
		if title == "A" {
			cancel()
		}
	}}
	p := newPipeline(t, s, c, Config{WorkerCount: 1})

	report, err := p.Run(ctx, []podcasts.Podcast{podcast("in_our_time", provider, nil)})
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Cancelled)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
	assert.Less(t, n, len(items))
	assert.EqualValues(t, n, c.calls.Load())

	all, err := s.All(context.Background())
	require.NoError(t, err)
	for _, ep := range all {
		assert.Equal(t, []string{"History"}, ep.Categories)
	}
}

// Input: one worker; cancellation requested while the first item runs and
// the next item is already waiting for the worker.
// Expected Output: the waiting item never starts.
func TestPipeline_Run_CancellationStartsNoWaitingItem(t *testing.T) {
	s := newStore(t)
	provider := &mockProvider{complete: true, current: []domain.FeedItem{
		feedItem("g1", "First", day(2020, 1, 1), withGuests),
		feedItem("g2", "Second", day(2020, 1, 2), withGuests),
		feedItem("g3", "Third", day(2020, 1, 3), withGuests),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &mockClassifier{reply: []string{"History"}, onCall: func(title string) {
		if title == "First" {
			cancel()
			// Let the feeder reach the worker gate before the slot frees.
			time.Sleep(20 * time.Millisecond)
		}
	}}
	p := newPipeline(t, s, c, Config{WorkerCount: 1})

	report, err := p.Run(ctx, []podcasts.Podcast{podcast("in_our_time", provider, nil)})
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Cancelled)
	assert.EqualValues(t, 1, c.calls.Load())

	keys, err := s.Keys(context.Background(), "in_our_time")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"first": true}, keys)
}

func TestPipeline_Run_Limit(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	provider := &mockProvider{complete: true, current: []domain.FeedItem{
		feedItem("g3", "Three", day(2020, 3, 1), withGuests),
		feedItem("g2", "Two", day(2020, 2, 1), withGuests),
		feedItem("g1", "One", day(2020, 1, 1), withGuests),
	}}
	p := newPipeline(t, s, &mockClassifier{reply: []string{"History"}}, Config{Limit: 2})

	report, err := p.Run(ctx, []podcasts.Podcast{podcast("in_our_time", provider, nil)})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Inserted())

	keys, err := s.Keys(ctx, "in_our_time")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"one": true, "two": true}, keys)
}

func TestPipeline_Feed_HistoricFetchedOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	provider := &mockProvider{
		current: []domain.FeedItem{
			feedItem("new", "New", day(2024, 1, 1), withGuests),
			feedItem("both", "Both (current)", day(2010, 1, 1), withGuests),
		},
		historic: []domain.FeedItem{
			feedItem("both", "Both (historic)", day(2010, 1, 1), withGuests),
			feedItem("old", "Old", day(2001, 1, 1), withGuests),
		},
	}
	p := newPipeline(t, newStore(t), &mockClassifier{}, Config{FeedDir: dir})
	pod := podcast("in_our_time", provider, nil)

	for range 2 {
		items, err := p.Feed(ctx, pod)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "new", items[0].GUID)
		assert.Equal(t, "Both (current)", items[1].Title)
		assert.Equal(t, "old", items[2].GUID)
	}
	assert.EqualValues(t, 1, provider.historicCalls.Load())

	snapshot, err := feed.LoadSnapshot(feed.CurrentPath(dir, "in_our_time"))
	require.NoError(t, err)
	assert.Len(t, snapshot, 3)
}

func TestPipeline_Feed_CompleteSkipsHistoric(t *testing.T) {
	provider := &mockProvider{complete: true}
	p := newPipeline(t, newStore(t), &mockClassifier{}, Config{FeedDir: t.TempDir()})

	_, err := p.Feed(context.Background(), podcast("in_our_time", provider, nil))
	require.NoError(t, err)
	assert.Zero(t, provider.historicCalls.Load())
}

// Input: one unclassified and one classified episode in the store.
// Expected Output: only the unclassified one is sent to the classifier,
// and its categories are rewritten.
func TestPipeline_Reclassify(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, ep := range []*domain.Episode{
		{ID: "plato", PodcastID: "in_our_time", Title: "Plato", BroadcastDate: day(2020, 1, 1)},
		{ID: "entropy", PodcastID: "in_our_time", Title: "Entropy", BroadcastDate: day(2020, 2, 1), Categories: []string{"Science"}},
	} {
		_, err := s.Upsert(ctx, ep)
		require.NoError(t, err)
	}

	c := &mockClassifier{reply: []string{"Philosophy", "Greece", "Ancient", "Unknown"}}
	p := newPipeline(t, s, c, Config{})

	report, err := p.Reclassify(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, 1, report.Updated)
	assert.EqualValues(t, 1, c.calls.Load())

	got, err := s.Get(ctx, domain.EpisodeKey{PodcastID: "in_our_time", ID: "plato"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Philosophy", "Greece", "Ancient"}, got.Categories)

	entropy, err := s.Get(ctx, domain.EpisodeKey{PodcastID: "in_our_time", ID: "entropy"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Science"}, entropy.Categories)
}

func TestPipeline_Reclassify_CancellationStartsNoWaitingEpisode(t *testing.T) {
	s := newStore(t)
	for i, id := range []string{"a", "b", "c"} {
		_, err := s.Upsert(context.Background(), &domain.Episode{
			ID: id, PodcastID: "in_our_time", Title: id, BroadcastDate: day(2020, 1, i+1),
		})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &mockClassifier{reply: []string{"History"}, onCall: func(string) {
		cancel()
		time.Sleep(20 * time.Millisecond)
	}}
	p := newPipeline(t, s, c, Config{WorkerCount: 1})

	report, err := p.Reclassify(ctx, false)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Cancelled)
	assert.EqualValues(t, 1, c.calls.Load())
	assert.Equal(t, 1, report.Updated)
}

func TestPipeline_Reclassify_DegradedLeavesRecord(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := s.Upsert(ctx, &domain.Episode{
		ID: "entropy", PodcastID: "in_our_time", Title: "Entropy",
		BroadcastDate: day(2020, 2, 1), Categories: []string{"Science"},
	})
	require.NoError(t, err)

	c := &mockClassifier{degraded: map[string]bool{"Entropy": true}}
	p := newPipeline(t, s, c, Config{})

	report, err := p.Reclassify(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Degraded)
	assert.Zero(t, report.Updated)

	got, err := s.Get(ctx, domain.EpisodeKey{PodcastID: "in_our_time", ID: "entropy"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Science"}, got.Categories)
}

func TestReport_Totals(t *testing.T) {
	r := &Report{Podcasts: []PodcastReport{
		{PodcastID: "a", Inserted: 2},
		{PodcastID: "b", Inserted: 3, Err: errors.New("x")},
	}}
	assert.Equal(t, 5, r.Inserted())
	assert.Len(t, r.Failed(), 1)
}
