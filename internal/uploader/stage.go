package uploader

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/galencky/whisper-stt-project/internal/logger"
	"github.com/galencky/whisper-stt-project/internal/pipeline"
)

// Stage is the publishing step: markdown/<stem>.md is posted, then moved to
// uploaded/<stem>.md. Published links accumulate for the batch notification.
// Without a token the stage is skipped and items still complete.
type Stage struct {
	publisher   Publisher
	enabled     bool
	markdownDir string
	uploadedDir string
	logger      logger.Logger

	mu    sync.Mutex
	links []Link
}

func NewStage(publisher Publisher, enabled bool, markdownDir, uploadedDir string, log logger.Logger) *Stage {
	return &Stage{
		publisher:   publisher,
		enabled:     enabled,
		markdownDir: markdownDir,
		uploadedDir: uploadedDir,
		logger:      log,
	}
}

func (s *Stage) Name() string { return "upload" }

// Discover lists stems with a summary not yet uploaded.
func (s *Stage) Discover(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.markdownDir)
	if err != nil {
		return nil, errors.Wrap(err, "read markdown dir")
	}

	var stems []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".md")
		if _, err := os.Stat(filepath.Join(s.uploadedDir, e.Name())); err == nil {
			continue
		}
		stems = append(stems, stem)
	}
	sort.Strings(stems)
	return stems, nil
}

func (s *Stage) Process(ctx context.Context, stem string) error {
	if !s.enabled {
		return errors.Wrap(pipeline.ErrSkipped, "HACKMD_TOKEN not set")
	}

	mdPath := filepath.Join(s.markdownDir, stem+".md")
	data, err := os.ReadFile(mdPath)
	if err != nil {
		return errors.Wrapf(err, "read summary for %s", stem)
	}

	title := TitleFromStem(stem)
	url, err := s.publisher.Publish(ctx, title, string(data))
	if err != nil {
		return errors.Wrapf(err, "publish %s", stem)
	}
	s.logger.Info(ctx, "Uploaded %s -> %s", stem, url)

	s.mu.Lock()
	s.links = append(s.links, Link{Title: title, URL: url})
	s.mu.Unlock()

	dest := filepath.Join(s.uploadedDir, stem+".md")
	if err := os.Rename(mdPath, dest); err != nil {
		s.logger.Warn(ctx, "Failed to move %s to uploaded: %v", stem, err)
	}
	return nil
}

// TakeLinks returns the links published so far and resets the accumulator
// for the next batch.
func (s *Stage) TakeLinks() []Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	links := s.links
	s.links = nil
	return links
}
