package watcher

import (
	"context"
	"time"
)

// Detector watches one directory for audio-file events and tracks each
// path until its size has stopped changing for the configured quiet
// interval. It performs no stage work itself.
type Detector interface {
	// Start blocks consuming filesystem events until ctx is cancelled.
	Start(ctx context.Context) error

	// Claim atomically removes and returns every tracked path considered
	// stable at now: last event older than the quiet interval, file still
	// present, size unchanged since last observation. Vanished files are
	// dropped silently; growing files stay pending.
	Claim(now time.Time) []string

	// Mark upserts a path into the pending set, as if an event arrived.
	Mark(path string)

	// PendingCount reports the number of tracked paths.
	PendingCount() int

	Stop() error
}
