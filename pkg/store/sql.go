package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"podcast-search/pkg/db"
	"podcast-search/pkg/domain"
)

// Dialect selects placeholder syntax for the SQL store.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

const episodeColumns = `podcast_id, id, title, broadcast_date, contributors, description,
  source_url, categories, reading_list, braggoscope_url`

// SQLStore keeps episodes in a single table on SQLite, Postgres or Supabase.
// Writes are serialized through mu; the primary key makes duplicate inserts a
// no-op even across processes.
type SQLStore struct {
	provider db.DBProvider
	closer   func() error
	dialect  Dialect

	mu sync.Mutex
}

// NewSQLStore creates the schema if needed. closer, if non-nil, is called by
// Close to release the connection owned by the caller's client.
func NewSQLStore(ctx context.Context, provider db.DBProvider, dialect Dialect, closer func() error) (*SQLStore, error) {
	if provider == nil || provider.DB() == nil {
		return nil, eris.New("sql store: database not connected")
	}
	s := &SQLStore{provider: provider, dialect: dialect, closer: closer}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS episodes (
  podcast_id TEXT NOT NULL,
  id TEXT NOT NULL,
  title TEXT NOT NULL,
  broadcast_date TEXT NOT NULL DEFAULT '',
  contributors TEXT NOT NULL DEFAULT '[]',
  description TEXT NOT NULL DEFAULT '',
  source_url TEXT NOT NULL DEFAULT '',
  categories TEXT NOT NULL DEFAULT '[]',
  reading_list TEXT NOT NULL DEFAULT '[]',
  braggoscope_url TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (podcast_id, id)
)`
	const index = `CREATE INDEX IF NOT EXISTS idx_episodes_date ON episodes (broadcast_date)`

	for _, stmt := range []string{ddl, index} {
		if _, err := s.provider.DB().ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "sql store: create schema")
		}
	}
	return nil
}

// rebind rewrites '?' placeholders into $N for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Upsert implements Store.
func (s *SQLStore) Upsert(ctx context.Context, ep *domain.Episode) (Outcome, error) {
	norm, err := normalize(ep)
	if err != nil {
		return 0, err
	}
	r, err := toRow(norm)
	if err != nil {
		return 0, err
	}

	query := s.rebind(`
INSERT INTO episodes (` + episodeColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (podcast_id, id) DO NOTHING`)

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.provider.DB().ExecContext(ctx, query,
		r.PodcastID, r.ID, r.Title, r.BroadcastDate, r.Contributors, r.Description,
		r.SourceURL, r.Categories, r.ReadingList, r.BraggoscopeURL)
	if err != nil {
		return 0, eris.Wrapf(err, "sql store: insert episode %s", norm.Key())
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sql store: rows affected")
	}
	if affected == 0 {
		return SkippedDuplicate, nil
	}
	return Inserted, nil
}

// Reclassify implements Store.
func (s *SQLStore) Reclassify(ctx context.Context, key domain.EpisodeKey, categories []string) error {
	encoded, err := encodeList(taxonomyOnly(categories))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.provider.DB().ExecContext(ctx,
		s.rebind(`UPDATE episodes SET categories = ? WHERE podcast_id = ? AND id = ?`),
		encoded, key.PodcastID, key.ID)
	if err != nil {
		return eris.Wrapf(err, "sql store: reclassify %s", key)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sql store: rows affected")
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// All implements Store.
func (s *SQLStore) All(ctx context.Context) ([]domain.Episode, error) {
	return s.query(ctx, `SELECT `+episodeColumns+` FROM episodes
ORDER BY broadcast_date DESC, podcast_id, id`)
}

// Unclassified implements Store.
func (s *SQLStore) Unclassified(ctx context.Context) ([]domain.Episode, error) {
	return s.query(ctx, `SELECT `+episodeColumns+` FROM episodes
WHERE categories IN ('[]', '', 'null')
ORDER BY broadcast_date DESC, podcast_id, id`)
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, key domain.EpisodeKey) (*domain.Episode, error) {
	episodes, err := s.query(ctx, `SELECT `+episodeColumns+` FROM episodes
WHERE podcast_id = ? AND id = ?`, key.PodcastID, key.ID)
	if err != nil {
		return nil, err
	}
	if len(episodes) == 0 {
		return nil, domain.ErrNotFound
	}
	return &episodes[0], nil
}

// Keys implements Store.
func (s *SQLStore) Keys(ctx context.Context, podcastID string) (map[string]bool, error) {
	rows, err := s.provider.DB().QueryContext(ctx,
		s.rebind(`SELECT id FROM episodes WHERE podcast_id = ?`), podcastID)
	if err != nil {
		return nil, eris.Wrap(err, "sql store: query keys")
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sql store: scan key")
		}
		keys[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sql store: rows error")
	}
	return keys, nil
}

// Count implements Store.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.provider.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM episodes`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sql store: count")
	}
	return n, nil
}

// UpdateBraggoscopeURLs implements Store.
func (s *SQLStore) UpdateBraggoscopeURLs(ctx context.Context) (int, error) {
	episodes, err := s.All(ctx)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.provider.DB().BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, eris.Wrap(err, "sql store: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		s.rebind(`UPDATE episodes SET braggoscope_url = ? WHERE podcast_id = ? AND id = ?`))
	if err != nil {
		return 0, eris.Wrap(err, "sql store: prepare update")
	}
	defer stmt.Close()

	updated := 0
	for _, ep := range episodes {
		want := domain.BraggoscopeURL(ep.ID, ep.BroadcastDate)
		if ep.BraggoscopeURL == want {
			continue
		}
		zap.L().Info("updating braggoscope url",
			zap.String("episode_id", ep.ID),
			zap.String("from", ep.BraggoscopeURL),
			zap.String("to", want),
		)
		if _, err := stmt.ExecContext(ctx, want, ep.PodcastID, ep.ID); err != nil {
			return 0, eris.Wrapf(err, "sql store: update braggoscope url %s", ep.Key())
		}
		updated++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sql store: commit")
	}
	return updated, nil
}

// Close implements Store.
func (s *SQLStore) Close(context.Context) error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) ([]domain.Episode, error) {
	rows, err := s.provider.DB().QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, eris.Wrap(err, "sql store: query episodes")
	}
	defer rows.Close()

	var episodes []domain.Episode
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.PodcastID, &r.ID, &r.Title, &r.BroadcastDate, &r.Contributors,
			&r.Description, &r.SourceURL, &r.Categories, &r.ReadingList, &r.BraggoscopeURL); err != nil {
			return nil, eris.Wrap(err, "sql store: scan episode")
		}
		ep, err := r.episode()
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sql store: rows error")
	}
	return episodes, nil
}
