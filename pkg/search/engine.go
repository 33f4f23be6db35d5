package search

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"podcast-search/pkg/domain"
)

// MaxResults caps every result set.
const MaxResults = 50

// Source enumerates the episodes to index. store.Store satisfies it.
type Source interface {
	All(ctx context.Context) ([]domain.Episode, error)
}

// Result is a ranked, capped result set.
type Result struct {
	Episodes []domain.Episode
	// Total is the number of matching episodes before the cap.
	Total int
}

type posting struct {
	doc    int
	fields Field
}

// index is immutable once built; queries read it without locks.
type index struct {
	episodes []domain.Episode
	postings map[string][]posting
}

func buildIndex(episodes []domain.Episode) *index {
	idx := &index{
		episodes: episodes,
		postings: make(map[string][]posting),
	}
	for i := range episodes {
		doc := NewDocument(&episodes[i])
		perToken := make(map[string]Field)
		for field, text := range doc.fields() {
			for _, token := range Terms(text) {
				perToken[token] |= field
			}
		}
		for token, fields := range perToken {
			idx.postings[token] = append(idx.postings[token], posting{doc: i, fields: fields})
		}
	}
	return idx
}

// Engine answers queries against the most recently built index. Rebuild
// swaps in a complete new index atomically, so a concurrent query sees
// either the old snapshot or the new one.
type Engine struct {
	source Source
	parser *Parser

	current atomic.Pointer[index]
}

// NewEngine creates an engine with an empty index. Call Rebuild before
// serving queries.
func NewEngine(source Source, parser *Parser) *Engine {
	if parser == nil {
		parser = NewParser(false)
	}
	e := &Engine{source: source, parser: parser}
	e.current.Store(buildIndex(nil))
	return e
}

// Rebuild re-indexes every episode from the source and returns the document
// count. On error the previous index stays in place.
func (e *Engine) Rebuild(ctx context.Context) (int, error) {
	start := time.Now()
	episodes, err := e.source.All(ctx)
	if err != nil {
		return 0, err
	}

	e.current.Store(buildIndex(episodes))

	zap.L().Info("search index rebuilt",
		zap.Int("documents", len(episodes)),
		zap.Duration("took", time.Since(start)),
	)
	return len(episodes), nil
}

// Size returns the number of indexed documents.
func (e *Engine) Size() int {
	return len(e.current.Load().episodes)
}

// Search parses raw and runs it. It never fails; degenerate input matches
// every document.
func (e *Engine) Search(raw string) Result {
	return e.Run(e.parser.Parse(raw))
}

type hit struct {
	doc     int
	matched int
	score   int
}

// Run executes a parsed query.
func (e *Engine) Run(q Query) Result {
	idx := e.current.Load()

	hits := make(map[int]*hit)
	if len(q.Terms) == 0 {
		for i := range idx.episodes {
			hits[i] = &hit{doc: i}
		}
	} else {
		for _, term := range q.Terms {
			for _, p := range idx.postings[term] {
				h, ok := hits[p.doc]
				if !ok {
					h = &hit{doc: p.doc}
					hits[p.doc] = h
				}
				h.matched++
				h.score += Weight(p.fields)
			}
		}
	}

	ranked := make([]*hit, 0, len(hits))
	for _, h := range hits {
		if passesFilters(&idx.episodes[h.doc], q) {
			ranked = append(ranked, h)
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.matched != b.matched {
			return a.matched > b.matched
		}
		if a.score != b.score {
			return a.score > b.score
		}
		ea, eb := &idx.episodes[a.doc], &idx.episodes[b.doc]
		if !ea.BroadcastDate.Equal(eb.BroadcastDate) {
			return ea.BroadcastDate.After(eb.BroadcastDate)
		}
		if ea.PodcastID != eb.PodcastID {
			return ea.PodcastID < eb.PodcastID
		}
		return ea.ID < eb.ID
	})

	result := Result{Total: len(ranked), Episodes: []domain.Episode{}}
	if len(ranked) > MaxResults {
		ranked = ranked[:MaxResults]
	}
	for _, h := range ranked {
		result.Episodes = append(result.Episodes, idx.episodes[h.doc])
	}
	return result
}

func passesFilters(ep *domain.Episode, q Query) bool {
	if len(q.Sources) > 0 && !containsFold(q.Sources, ep.PodcastID) {
		return false
	}
	for _, tag := range q.RequireCategories {
		if !containsFold(ep.Categories, tag) {
			return false
		}
	}
	for _, tag := range q.ExcludeCategories {
		if containsFold(ep.Categories, tag) {
			return false
		}
	}
	return true
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
