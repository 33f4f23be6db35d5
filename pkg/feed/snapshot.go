package feed

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"podcast-search/pkg/domain"
)

// CurrentPath is where the merged feed of a podcast is snapshotted.
func CurrentPath(dir, podcastID string) string {
	return filepath.Join(dir, podcastID+".json")
}

// HistoricPath is where the one-time historic feed of a podcast is kept.
func HistoricPath(dir, podcastID string) string {
	return filepath.Join(dir, podcastID+"_historic.json")
}

// LoadSnapshot reads feed items from a JSON file. A missing file is an empty
// snapshot, not an error.
func LoadSnapshot(path string) ([]domain.FeedItem, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "feed: read snapshot %s", path)
	}

	var items []domain.FeedItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, eris.Wrapf(err, "feed: decode snapshot %s", path)
	}
	return items, nil
}

// SaveSnapshot writes feed items to path through a temporary file and a
// rename, so readers never see a partial snapshot.
func SaveSnapshot(path string, items []domain.FeedItem) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "feed: create snapshot dir")
	}

	if items == nil {
		items = []domain.FeedItem{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return eris.Wrap(err, "feed: encode snapshot")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "feed: write snapshot")
	}
	if err := os.Rename(tmp, path); err != nil {
		return eris.Wrap(err, "feed: replace snapshot")
	}
	return nil
}
