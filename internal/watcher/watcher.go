package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/galencky/whisper-stt-project/internal/logger"
)

// pendingFile tracks one path between its first event and stabilization.
// Size is stat'd lazily rather than taken from event payloads, so coalesced
// or missed events cannot leave a stale observation behind.
type pendingFile struct {
	lastEvent time.Time
	size      int64
}

type implDetector struct {
	inboxDir string
	quiet    time.Duration
	exts     map[string]struct{}
	logger   logger.Logger
	watcher  *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*pendingFile
}

// Start scans the inbox once for files that predate the watch, then blocks
// consuming filesystem events until ctx is cancelled.
func (d *implDetector) Start(ctx context.Context) error {
	d.logger.Info(ctx, "Watching inbox: %s (quiet interval: %s)", d.inboxDir, d.quiet)

	d.scanExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info(ctx, "File watcher stopped")
			return ctx.Err()

		case event, ok := <-d.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if !d.isAudioFile(event.Name) {
				d.logger.Debug(ctx, "Ignoring non-audio file: %s", event.Name)
				continue
			}
			d.Mark(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			d.logger.Error(ctx, "Watcher error: %v", err)
		}
	}
}

// scanExisting seeds the pending set with files already sitting in the
// inbox at startup; fsnotify never reports those.
func (d *implDetector) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(d.inboxDir)
	if err != nil {
		d.logger.Warn(ctx, "Failed to scan inbox at startup: %v", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(d.inboxDir, e.Name())
		if d.isAudioFile(path) {
			d.Mark(path)
		}
	}
}

// Mark upserts a pending entry with the current wall clock and current
// on-disk size.
func (d *implDetector) Mark(path string) {
	info, err := os.Stat(path)
	if err != nil {
		// Event for a path that is already gone; nothing to track.
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.pending[path]
	if !ok {
		entry = &pendingFile{}
		d.pending[path] = entry
	}
	entry.lastEvent = time.Now()
	entry.size = info.Size()
}

// Claim drains every stable entry in a single critical section: claim and
// removal are one atomic step, so a concurrent event or a second tick can
// never observe a half-claimed item.
func (d *implDetector) Claim(now time.Time) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var stable []string
	for path, entry := range d.pending {
		if now.Sub(entry.lastEvent) < d.quiet {
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			// pending → vanished: the writer deleted it before it settled.
			delete(d.pending, path)
			continue
		}
		if info.Size() != entry.size {
			// Still growing despite no events; treat as a fresh event.
			entry.lastEvent = now
			entry.size = info.Size()
			continue
		}

		stable = append(stable, path)
		delete(d.pending, path)
	}

	sort.Strings(stable)
	return stable
}

func (d *implDetector) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop closes the underlying fsnotify watcher.
func (d *implDetector) Stop() error {
	return d.watcher.Close()
}

func (d *implDetector) isAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := d.exts[ext]
	return ok
}
