package store

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	supabase "github.com/supabase-community/supabase-go"

	"podcast-search/pkg/domain"
)

const supabaseTable = "episodes"

// supabasePageSize matches PostgREST's default max-rows. Reads page until an
// empty page, so a server with a lower cap still returns everything.
const supabasePageSize = 1000

// SupabaseRESTStore talks to the episodes table through PostgREST when only
// the project URL and API key are available. The table layout is the one
// SQLStore creates; create it once through the SQL editor or a direct
// connection.
type SupabaseRESTStore struct {
	client *supabase.Client
	mu     sync.Mutex
}

// NewSupabaseRESTStore wraps an initialized SDK client.
func NewSupabaseRESTStore(client *supabase.Client) (*SupabaseRESTStore, error) {
	if client == nil {
		return nil, eris.New("supabase store: SDK client not initialized")
	}
	return &SupabaseRESTStore{client: client}, nil
}

// Upsert implements Store.
func (s *SupabaseRESTStore) Upsert(ctx context.Context, ep *domain.Episode) (Outcome, error) {
	norm, err := normalize(ep)
	if err != nil {
		return 0, err
	}
	r, err := toRow(norm)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.Get(ctx, norm.Key()); err == nil {
		return SkippedDuplicate, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}

	_, _, err = s.client.From(supabaseTable).Insert(r, false, "", "minimal", "").Execute()
	if err != nil {
		// Another writer got there between the check and the insert.
		if isUniqueViolation(err) {
			return SkippedDuplicate, nil
		}
		return 0, eris.Wrapf(err, "supabase store: insert %s", norm.Key())
	}
	return Inserted, nil
}

// Reclassify implements Store.
func (s *SupabaseRESTStore) Reclassify(ctx context.Context, key domain.EpisodeKey, categories []string) error {
	encoded, err := encodeList(taxonomyOnly(categories))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var updated []row
	_, err = s.client.From(supabaseTable).
		Update(map[string]string{"categories": encoded}, "representation", "").
		Eq("podcast_id", key.PodcastID).
		Eq("id", key.ID).
		ExecuteTo(&updated)
	if err != nil {
		return eris.Wrapf(err, "supabase store: reclassify %s", key)
	}
	if len(updated) == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// All implements Store.
func (s *SupabaseRESTStore) All(context.Context) ([]domain.Episode, error) {
	var rows []row
	for offset := 0; ; {
		var page []row
		_, err := s.client.From(supabaseTable).Select("*", "", false).
			Order("podcast_id", nil).
			Order("id", nil).
			Range(offset, offset+supabasePageSize-1, "").
			ExecuteTo(&page)
		if err != nil {
			return nil, eris.Wrapf(err, "supabase store: select episodes from %d", offset)
		}
		if len(page) == 0 {
			break
		}
		rows = append(rows, page...)
		offset += len(page)
	}

	return episodesFromRows(rows)
}

// Unclassified implements Store.
func (s *SupabaseRESTStore) Unclassified(ctx context.Context) ([]domain.Episode, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, ep := range all {
		if !ep.Classified() {
			out = append(out, ep)
		}
	}
	return out, nil
}

// Get implements Store.
func (s *SupabaseRESTStore) Get(_ context.Context, key domain.EpisodeKey) (*domain.Episode, error) {
	var rows []row
	_, err := s.client.From(supabaseTable).Select("*", "", false).
		Eq("podcast_id", key.PodcastID).
		Eq("id", key.ID).
		ExecuteTo(&rows)
	if err != nil {
		return nil, eris.Wrapf(err, "supabase store: get %s", key)
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotFound
	}
	ep, err := rows[0].episode()
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

// Keys implements Store.
func (s *SupabaseRESTStore) Keys(_ context.Context, podcastID string) (map[string]bool, error) {
	keys := make(map[string]bool)
	for offset := 0; ; {
		var page []struct {
			ID string `json:"id"`
		}
		_, err := s.client.From(supabaseTable).Select("id", "", false).
			Eq("podcast_id", podcastID).
			Order("id", nil).
			Range(offset, offset+supabasePageSize-1, "").
			ExecuteTo(&page)
		if err != nil {
			return nil, eris.Wrapf(err, "supabase store: select keys from %d", offset)
		}
		if len(page) == 0 {
			return keys, nil
		}
		for _, r := range page {
			keys[r.ID] = true
		}
		offset += len(page)
	}
}

// Count implements Store.
func (s *SupabaseRESTStore) Count(context.Context) (int, error) {
	_, n, err := s.client.From(supabaseTable).Select("id", "exact", true).Execute()
	if err != nil {
		return 0, eris.Wrap(err, "supabase store: count")
	}
	return int(n), nil
}

// UpdateBraggoscopeURLs implements Store.
func (s *SupabaseRESTStore) UpdateBraggoscopeURLs(ctx context.Context) (int, error) {
	episodes, err := s.All(ctx)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for _, ep := range episodes {
		want := domain.BraggoscopeURL(ep.ID, ep.BroadcastDate)
		if ep.BraggoscopeURL == want {
			continue
		}
		_, _, err := s.client.From(supabaseTable).
			Update(map[string]string{"braggoscope_url": want}, "minimal", "").
			Eq("podcast_id", ep.PodcastID).
			Eq("id", ep.ID).
			Execute()
		if err != nil {
			return updated, eris.Wrapf(err, "supabase store: update braggoscope url %s", ep.Key())
		}
		updated++
	}
	return updated, nil
}

// Close implements Store.
func (s *SupabaseRESTStore) Close(context.Context) error {
	return nil
}

func episodesFromRows(rows []row) ([]domain.Episode, error) {
	episodes := make([]domain.Episode, 0, len(rows))
	for _, r := range rows {
		ep, err := r.episode()
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	SortEpisodes(episodes)
	return episodes, nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}
