// Package feeds provides discovery feed sources: streams of recent platform
// posts whose authors may be identities we have not verified yet. The
// scheduler polls these sources and routes unseen authors into verification.
package feeds

import (
	"context"
	"errors"
	"time"
)

// ErrFeedUnavailable means the feed could not be polled this cycle. Polling
// errors are transient; the caller retries on its next cycle.
var ErrFeedUnavailable = errors.New("feed unavailable")

// Entry is one feed item.
type Entry struct {
	ID          string
	Author      string
	Title       string
	PublishedAt time.Time
}

// Source is a pollable discovery feed.
type Source interface {
	// Name identifies the feed in logs and metrics.
	Name() string

	// Poll returns up to limit recent entries, newest first.
	Poll(ctx context.Context, limit int) ([]Entry, error)
}
