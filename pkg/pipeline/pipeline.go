package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"podcast-search/pkg/classifier"
	"podcast-search/pkg/domain"
	"podcast-search/pkg/feed"
	"podcast-search/pkg/filter"
	"podcast-search/pkg/parser"
	"podcast-search/pkg/podcasts"
	"podcast-search/pkg/store"
)

// Classifier assigns taxonomy tags to an episode. A *classifier.DegradedError
// means the episode should be stored unclassified.
type Classifier interface {
	Classify(ctx context.Context, title, description string, contributors []string) ([]string, error)
}

// Config wires the pipeline dependencies.
type Config struct {
	Store      store.Store
	Parser     parser.DescriptionParser
	Classifier Classifier

	// WorkerCount bounds how many feed items are parsed, enriched and
	// classified at once.
	WorkerCount int
	// FeedDir holds feed snapshots; empty disables snapshotting and the
	// historic feed cache.
	FeedDir string
	// Limit caps new items per podcast per run; zero means no cap.
	Limit int
}

// Pipeline ingests podcasts into the episode store.
//
// Per podcast: fetch and merge feeds, drop incomplete and already stored
// items, then run each remaining item through parse, enrich (only when the
// description had no contributors) and classify on a bounded worker pool.
// Results are committed to the store one at a time in oldest-first order.
type Pipeline struct {
	store       store.Store
	parser      parser.DescriptionParser
	classifier  Classifier
	workerCount int
	feedDir     string
	limit       int
}

// NewPipeline validates cfg and creates a pipeline.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Store == nil {
		return nil, eris.New("pipeline: store is required")
	}
	if cfg.Parser == nil {
		return nil, eris.New("pipeline: description parser is required")
	}
	if cfg.Classifier == nil {
		return nil, eris.New("pipeline: classifier is required")
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	return &Pipeline{
		store:       cfg.Store,
		parser:      cfg.Parser,
		classifier:  cfg.Classifier,
		workerCount: cfg.WorkerCount,
		feedDir:     cfg.FeedDir,
		limit:       cfg.Limit,
	}, nil
}

// PodcastReport summarizes one podcast's ingestion.
type PodcastReport struct {
	PodcastID string
	// FeedItems is the size of the merged feed.
	FeedItems int
	// Candidates survived filtering and entered the worker pool.
	Candidates int
	Inserted   int
	Skipped    int
	Enriched   int
	Degraded   int
	// Err is set when the podcast was aborted, e.g. by a *domain.FetchError.
	Err error
}

// Report summarizes a run.
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Podcasts  []PodcastReport
	// Cancelled is set when the run stopped early on context cancellation.
	Cancelled bool
}

// Inserted is the total number of new episodes across podcasts.
func (r *Report) Inserted() int {
	n := 0
	for _, p := range r.Podcasts {
		n += p.Inserted
	}
	return n
}

// Failed lists the podcasts that were aborted.
func (r *Report) Failed() []PodcastReport {
	var failed []PodcastReport
	for _, p := range r.Podcasts {
		if p.Err != nil {
			failed = append(failed, p)
		}
	}
	return failed
}

// Run ingests the given podcasts one after another. A fetch failure aborts
// only the podcast it happened in. Cancelling ctx stops the run after the
// in-flight items finish; those are still committed. The returned error is
// ctx.Err() on cancellation, or a store failure.
func (p *Pipeline) Run(ctx context.Context, list []podcasts.Podcast) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), StartedAt: time.Now()}
	logger := zap.L().With(zap.String("run_id", report.RunID))
	logger.Info("ingestion started", zap.Int("podcasts", len(list)))

	defer func() {
		report.Duration = time.Since(report.StartedAt)
		logger.Info("ingestion finished",
			zap.Int("inserted", report.Inserted()),
			zap.Int("failed_podcasts", len(report.Failed())),
			zap.Bool("cancelled", report.Cancelled),
			zap.Duration("took", report.Duration),
		)
	}()

	for _, pod := range list {
		if err := ctx.Err(); err != nil {
			report.Cancelled = true
			return report, err
		}

		pr, err := p.ingestPodcast(ctx, logger.With(zap.String("podcast", pod.ID)), pod)
		report.Podcasts = append(report.Podcasts, pr)
		if err != nil {
			report.Cancelled = ctx.Err() != nil
			return report, err
		}
	}

	if err := ctx.Err(); err != nil {
		report.Cancelled = true
		return report, err
	}
	return report, nil
}

// ingestPodcast returns an error only for conditions that should stop the
// whole run (store failures, cancellation). Fetch failures are recorded in
// the report.
func (p *Pipeline) ingestPodcast(ctx context.Context, logger *zap.Logger, pod podcasts.Podcast) (PodcastReport, error) {
	pr := PodcastReport{PodcastID: pod.ID}

	items, err := p.Feed(ctx, pod)
	if err != nil {
		pr.Err = err
		if domain.IsFetchError(err) {
			logger.Error("feed fetch failed, podcast skipped until next run", zap.Error(err))
		} else {
			logger.Error("feed preparation failed, podcast skipped", zap.Error(err))
		}
		return pr, nil
	}
	pr.FeedItems = len(items)

	known, err := p.store.Keys(ctx, pod.ID)
	if err != nil {
		pr.Err = err
		return pr, eris.Wrapf(err, "pipeline: load known episodes for %s", pod.ID)
	}

	feed.SortOldestFirst(items)
	candidates, err := filter.FilterItems(ctx, items,
		filter.NewCompleteFilter(),
		filter.NewKnownFilter(known),
		filter.NewLimitFilter(p.limit),
	)
	if err != nil {
		pr.Err = err
		return pr, err
	}
	pr.Candidates = len(candidates)
	logger.Info("feed prepared",
		zap.Int("feed_items", len(items)),
		zap.Int("known", len(known)),
		zap.Int("candidates", len(candidates)),
	)

	err = p.process(ctx, logger, pod, candidates, &pr)
	if err != nil {
		pr.Err = err
	}
	logger.Info("podcast ingested",
		zap.Int("inserted", pr.Inserted),
		zap.Int("skipped", pr.Skipped),
		zap.Int("enriched", pr.Enriched),
		zap.Int("degraded", pr.Degraded),
	)
	return pr, err
}

// Feed fetches a podcast's current feed, merges in its historic feed and
// snapshots the result. The historic feed is fetched once and cached in the
// feed directory.
func (p *Pipeline) Feed(ctx context.Context, pod podcasts.Podcast) ([]domain.FeedItem, error) {
	current, err := pod.Provider.FetchCurrentFeed(ctx)
	if err != nil {
		return nil, err
	}

	var historic []domain.FeedItem
	if !pod.Provider.IsFeedComplete() {
		historic, err = p.historicFeed(ctx, pod)
		if err != nil {
			return nil, err
		}
	}

	merged := feed.Merge(current, historic)
	if p.feedDir != "" {
		if err := feed.SaveSnapshot(feed.CurrentPath(p.feedDir, pod.ID), merged); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

func (p *Pipeline) historicFeed(ctx context.Context, pod podcasts.Podcast) ([]domain.FeedItem, error) {
	if p.feedDir == "" {
		return pod.Provider.FetchHistoricFeed(ctx)
	}

	path := feed.HistoricPath(p.feedDir, pod.ID)
	cached, err := feed.LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	historic, err := pod.Provider.FetchHistoricFeed(ctx)
	if err != nil {
		return nil, err
	}
	zap.L().Info("historic feed captured", zap.String("podcast", pod.ID), zap.Int("items", len(historic)))
	if err := feed.SaveSnapshot(path, historic); err != nil {
		return nil, err
	}
	return historic, nil
}

type itemResult struct {
	episode  domain.Episode
	enriched bool
	degraded bool
}

// process fans items out to the worker pool and commits results in input
// order. Items are only started while ctx is live; once started they run
// to completion on a context detached from cancellation.
func (p *Pipeline) process(ctx context.Context, logger *zap.Logger, pod podcasts.Podcast, items []domain.FeedItem, pr *PodcastReport) error {
	work := context.WithoutCancel(ctx)
	slots := make(chan chan itemResult, len(items))
	sem := semaphore.NewWeighted(int64(p.workerCount))

	var g errgroup.Group
	go func() {
		defer close(slots)
		for _, item := range items {
			if !admit(ctx, sem) {
				return
			}
			slot := make(chan itemResult, 1)
			slots <- slot
			g.Go(func() error {
				defer sem.Release(1)
				slot <- p.processItem(work, logger, pod, item)
				return nil
			})
		}
	}()

	var commitErr error
	for slot := range slots {
		res := <-slot
		if commitErr != nil {
			continue
		}
		if res.enriched {
			pr.Enriched++
		}
		if res.degraded {
			pr.Degraded++
		}

		outcome, err := p.store.Upsert(work, &res.episode)
		if err != nil {
			commitErr = err
			continue
		}
		switch outcome {
		case store.Inserted:
			pr.Inserted++
		case store.SkippedDuplicate:
			pr.Skipped++
		}
		logger.Debug("episode committed",
			zap.String("episode_id", res.episode.ID),
			zap.Stringer("outcome", outcome),
		)
	}
	_ = g.Wait()

	if commitErr != nil {
		return eris.Wrapf(commitErr, "pipeline: store episode for %s", pod.ID)
	}
	return ctx.Err()
}

// admit waits for a free worker. It reports false, holding nothing, once
// ctx is cancelled, including when a worker frees up at the same moment.
func admit(ctx context.Context, sem *semaphore.Weighted) bool {
	if err := sem.Acquire(ctx, 1); err != nil {
		return false
	}
	if ctx.Err() != nil {
		sem.Release(1)
		return false
	}
	return true
}

// processItem runs one feed item through parse, enrich and classify. It
// never fails: enrichment and classification problems only make the
// resulting episode less complete.
func (p *Pipeline) processItem(ctx context.Context, logger *zap.Logger, pod podcasts.Podcast, item domain.FeedItem) itemResult {
	logger = logger.With(zap.String("guid", item.GUID), zap.String("episode_id", item.EpisodeID()))

	fields := p.parser.ParseDescription(item.Description)
	description := fields.Synopsis
	contributors := fields.Contributors
	readingList := fields.ReadingList

	var res itemResult
	if fields.Miss() && pod.Enricher != nil {
		res.enriched = true
		partial := pod.Enricher.Enrich(ctx, item)
		if partial.IsEmpty() {
			logger.Debug("enrichment produced nothing")
		}
		if partial.Description != "" {
			description = partial.Description
		}
		if len(partial.Contributors) > 0 {
			contributors = partial.Contributors
		}
		if len(readingList) == 0 {
			readingList = partial.ReadingList
		}
	}

	categories, err := p.classifier.Classify(ctx, item.Title, description, contributors)
	if err != nil {
		var degraded *classifier.DegradedError
		if !errors.As(err, &degraded) {
			degraded = &classifier.DegradedError{Reason: "unexpected", Err: err}
		}
		logger.Warn("classification degraded, storing unclassified",
			zap.String("reason", degraded.Reason),
			zap.Error(degraded.Err),
		)
		res.degraded = true
		categories = []string{}
	}
	categories = classifier.ValidateTags(categories)

	id := item.EpisodeID()
	res.episode = domain.Episode{
		ID:             id,
		PodcastID:      pod.ID,
		Title:          item.Title,
		BroadcastDate:  item.Published,
		Contributors:   nonNil(contributors),
		Description:    description,
		SourceURL:      item.Link,
		Categories:     categories,
		ReadingList:    nonNil(readingList),
		BraggoscopeURL: domain.BraggoscopeURL(id, item.Published),
	}
	return res
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
