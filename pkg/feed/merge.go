package feed

import (
	"sort"

	"podcast-search/pkg/domain"
)

// Merge combines the current and historic feeds, keeping one item per guid.
// When both feeds carry a guid the current feed's copy wins. The result is
// ordered newest first, with guid as the tie-break.
func Merge(current, historic []domain.FeedItem) []domain.FeedItem {
	byGUID := make(map[string]domain.FeedItem, len(current)+len(historic))
	for _, item := range historic {
		byGUID[item.GUID] = item
	}
	for _, item := range current {
		byGUID[item.GUID] = item
	}

	merged := make([]domain.FeedItem, 0, len(byGUID))
	for _, item := range byGUID {
		merged = append(merged, item)
	}
	SortNewestFirst(merged)
	return merged
}

// SortNewestFirst orders items by publication date descending.
func SortNewestFirst(items []domain.FeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Published.Equal(items[j].Published) {
			return items[i].Published.After(items[j].Published)
		}
		return items[i].GUID < items[j].GUID
	})
}

// SortOldestFirst orders items by publication date ascending, which is the
// order ingestion processes them in.
func SortOldestFirst(items []domain.FeedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].Published.Equal(items[j].Published) {
			return items[i].Published.Before(items[j].Published)
		}
		return items[i].GUID < items[j].GUID
	})
}
