package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when no episode matches a key.
	ErrNotFound = errors.New("episode not found")

	// ErrUnknownPodcast is returned by the registry for ids it does not list.
	ErrUnknownPodcast = errors.New("unknown podcast")
)

// FetchError reports a network or HTTP failure reaching a feed or source page.
// A FetchError from a feed provider aborts ingestion of that podcast for the
// current run only.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err is, or wraps, a FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
