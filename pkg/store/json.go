package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"podcast-search/pkg/domain"
)

// EpisodesFilename is the file the JSON store keeps inside the data directory.
const EpisodesFilename = "episodes.json"

// DefaultPodcastID is assumed for records written before episodes carried a
// podcast id.
const DefaultPodcastID = "in_our_time"

// jsonRecord is the on-disk shape of one episode in episodes.json.
type jsonRecord struct {
	ID             string   `json:"id"`
	PodcastID      string   `json:"podcast_id,omitempty"`
	Title          string   `json:"title"`
	BroadcastDate  string   `json:"broadcast_date"`
	Contributors   []string `json:"contributors"`
	Description    *string  `json:"description"`
	SourceURL      string   `json:"source_url"`
	Categories     []string `json:"categories"`
	BraggoscopeURL *string  `json:"braggoscope_url"`
	ReadingList    []string `json:"reading_list"`
}

// JSONStore keeps the whole collection in memory and rewrites the file on
// every mutation. Fine for a few thousand episodes.
type JSONStore struct {
	path string

	mu       sync.RWMutex
	episodes map[domain.EpisodeKey]domain.Episode
}

// OpenJSONStore loads path, which may not exist yet.
func OpenJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{path: path, episodes: make(map[domain.EpisodeKey]domain.Episode)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "json store: read %s", path)
	}

	var records []jsonRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrapf(err, "json store: decode %s", path)
	}
	for _, rec := range records {
		ep, err := rec.episode()
		if err != nil {
			return nil, err
		}
		// First occurrence wins, as it would have on insert.
		if _, ok := s.episodes[ep.Key()]; !ok {
			s.episodes[ep.Key()] = ep
		}
	}
	return s, nil
}

func (r jsonRecord) episode() (domain.Episode, error) {
	ep := domain.Episode{
		ID:           r.ID,
		PodcastID:    r.PodcastID,
		Title:        r.Title,
		Contributors: nonNil(r.Contributors),
		SourceURL:    r.SourceURL,
		Categories:   nonNil(r.Categories),
		ReadingList:  nonNil(r.ReadingList),
	}
	if ep.PodcastID == "" {
		ep.PodcastID = DefaultPodcastID
	}
	if r.Description != nil {
		ep.Description = *r.Description
	}
	if r.BraggoscopeURL != nil {
		ep.BraggoscopeURL = *r.BraggoscopeURL
	}
	if r.BroadcastDate != "" {
		t, err := time.Parse(dateLayout, r.BroadcastDate)
		if err != nil {
			return ep, eris.Wrapf(err, "json store: episode %s: parse broadcast date", r.ID)
		}
		ep.BroadcastDate = t
	}
	return ep, nil
}

func toRecord(ep domain.Episode) jsonRecord {
	rec := jsonRecord{
		ID:           ep.ID,
		PodcastID:    ep.PodcastID,
		Title:        ep.Title,
		Contributors: nonNil(ep.Contributors),
		SourceURL:    ep.SourceURL,
		Categories:   nonNil(ep.Categories),
		ReadingList:  nonNil(ep.ReadingList),
	}
	if !ep.BroadcastDate.IsZero() {
		rec.BroadcastDate = ep.BroadcastDate.Format(dateLayout)
	}
	if ep.Description != "" {
		d := ep.Description
		rec.Description = &d
	}
	if ep.BraggoscopeURL != "" {
		u := ep.BraggoscopeURL
		rec.BraggoscopeURL = &u
	}
	return rec
}

// Upsert implements Store.
func (s *JSONStore) Upsert(_ context.Context, ep *domain.Episode) (Outcome, error) {
	norm, err := normalize(ep)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.episodes[norm.Key()]; ok {
		return SkippedDuplicate, nil
	}
	s.episodes[norm.Key()] = norm
	if err := s.saveLocked(); err != nil {
		delete(s.episodes, norm.Key())
		return 0, err
	}
	return Inserted, nil
}

// Reclassify implements Store.
func (s *JSONStore) Reclassify(_ context.Context, key domain.EpisodeKey, categories []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ep, ok := s.episodes[key]
	if !ok {
		return domain.ErrNotFound
	}
	previous := ep.Categories
	ep.Categories = taxonomyOnly(categories)
	s.episodes[key] = ep
	if err := s.saveLocked(); err != nil {
		ep.Categories = previous
		s.episodes[key] = ep
		return err
	}
	return nil
}

// All implements Store.
func (s *JSONStore) All(context.Context) ([]domain.Episode, error) {
	return s.filter(func(domain.Episode) bool { return true }), nil
}

// Unclassified implements Store.
func (s *JSONStore) Unclassified(context.Context) ([]domain.Episode, error) {
	return s.filter(func(ep domain.Episode) bool { return !ep.Classified() }), nil
}

// Get implements Store.
func (s *JSONStore) Get(_ context.Context, key domain.EpisodeKey) (*domain.Episode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ep, ok := s.episodes[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	ep = cloneEpisode(ep)
	return &ep, nil
}

// Keys implements Store.
func (s *JSONStore) Keys(_ context.Context, podcastID string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make(map[string]bool)
	for key := range s.episodes {
		if key.PodcastID == podcastID {
			keys[key.ID] = true
		}
	}
	return keys, nil
}

// Count implements Store.
func (s *JSONStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.episodes), nil
}

// UpdateBraggoscopeURLs implements Store.
func (s *JSONStore) UpdateBraggoscopeURLs(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for key, ep := range s.episodes {
		want := domain.BraggoscopeURL(ep.ID, ep.BroadcastDate)
		if ep.BraggoscopeURL == want {
			continue
		}
		ep.BraggoscopeURL = want
		s.episodes[key] = ep
		updated++
	}
	if updated == 0 {
		return 0, nil
	}
	if err := s.saveLocked(); err != nil {
		return 0, err
	}
	return updated, nil
}

// Close implements Store.
func (s *JSONStore) Close(context.Context) error {
	return nil
}

func (s *JSONStore) filter(keep func(domain.Episode) bool) []domain.Episode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Episode, 0, len(s.episodes))
	for _, ep := range s.episodes {
		if keep(ep) {
			out = append(out, cloneEpisode(ep))
		}
	}
	SortEpisodes(out)
	return out
}

// saveLocked writes the collection newest first. Caller holds mu.
func (s *JSONStore) saveLocked() error {
	episodes := make([]domain.Episode, 0, len(s.episodes))
	for _, ep := range s.episodes {
		episodes = append(episodes, ep)
	}
	SortEpisodes(episodes)

	records := make([]jsonRecord, len(episodes))
	for i, ep := range episodes {
		records[i] = toRecord(ep)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return eris.Wrap(err, "json store: encode")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return eris.Wrap(err, "json store: create dir")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "json store: write")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return eris.Wrap(err, "json store: replace")
	}
	return nil
}

func cloneEpisode(ep domain.Episode) domain.Episode {
	ep.Contributors = nonNil(ep.Contributors)
	ep.Categories = nonNil(ep.Categories)
	ep.ReadingList = nonNil(ep.ReadingList)
	return ep
}
