package podcasts

import (
	"sort"

	"github.com/rotisserie/eris"

	"podcast-search/pkg/domain"
	"podcast-search/pkg/httpclient"
	"podcast-search/pkg/podcasts/inourtime"
)

// Registry is the closed table of podcasts the system ingests.
type Registry struct {
	podcasts map[string]Podcast
}

// NewRegistry builds a registry. Ids must be unique and every podcast needs
// a provider.
func NewRegistry(podcasts ...Podcast) (*Registry, error) {
	r := &Registry{podcasts: make(map[string]Podcast, len(podcasts))}
	for _, p := range podcasts {
		if p.ID == "" {
			return nil, eris.New("podcasts: empty podcast id")
		}
		if p.Provider == nil {
			return nil, eris.Errorf("podcasts: %s has no feed provider", p.ID)
		}
		if _, dup := r.podcasts[p.ID]; dup {
			return nil, eris.Errorf("podcasts: %s registered twice", p.ID)
		}
		r.podcasts[p.ID] = p
	}
	return r, nil
}

// Deps are the shared collaborators podcast implementations are built from.
type Deps struct {
	// Feeds fetches feed documents.
	Feeds httpclient.Fetcher
	// Pages fetches source pages; it should enforce per-host politeness.
	Pages httpclient.Fetcher
}

// Default returns the registry of every supported podcast.
func Default(deps Deps) *Registry {
	r, err := NewRegistry(
		Podcast{
			ID:       inourtime.PodcastID,
			Name:     "In Our Time",
			Provider: inourtime.NewFeedProvider(deps.Feeds, ""),
			Enricher: inourtime.NewEnricher(deps.Pages),
		},
	)
	if err != nil {
		// The table above is static.
		panic(err)
	}
	return r
}

// List returns the registered podcast ids, sorted.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.podcasts))
	for id := range r.podcasts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns the podcast registered under id, or domain.ErrUnknownPodcast.
func (r *Registry) Get(id string) (Podcast, error) {
	p, ok := r.podcasts[id]
	if !ok {
		return Podcast{}, domain.ErrUnknownPodcast
	}
	return p, nil
}

// Select resolves ids to podcasts, in the given order. An empty ids selects
// every podcast.
func (r *Registry) Select(ids ...string) ([]Podcast, error) {
	if len(ids) == 0 {
		ids = r.List()
	}
	out := make([]Podcast, 0, len(ids))
	for _, id := range ids {
		p, err := r.Get(id)
		if err != nil {
			return nil, eris.Wrapf(err, "podcasts: %s", id)
		}
		out = append(out, p)
	}
	return out, nil
}
