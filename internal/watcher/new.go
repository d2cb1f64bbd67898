package watcher

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/galencky/whisper-stt-project/internal/logger"
)

// Options configures a Detector.
type Options struct {
	// InboxDir is the single watched directory, non-recursive.
	InboxDir string

	// QuietInterval is how long a file must go without events or size
	// changes before Claim considers it stable.
	QuietInterval time.Duration

	// Extensions is the lower-case dotted extension allow-list.
	Extensions []string
}

// New creates a Detector watching opts.InboxDir.
func New(opts Options, log logger.Logger) (Detector, error) {
	if opts.QuietInterval <= 0 {
		return nil, errors.New("quiet interval must be positive")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	if err := fsw.Add(opts.InboxDir); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "watch %s", opts.InboxDir)
	}

	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		exts[ext] = struct{}{}
	}

	return &implDetector{
		inboxDir: opts.InboxDir,
		quiet:    opts.QuietInterval,
		exts:     exts,
		logger:   log,
		watcher:  fsw,
		pending:  make(map[string]*pendingFile),
	}, nil
}
