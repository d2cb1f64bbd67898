package summarizer

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/galencky/whisper-stt-project/internal/logger"
)

// Stage is the summarization step: parsed/<stem>_parsed.txt in,
// markdown/<stem>.md out.
type Stage struct {
	summarizer  Summarizer
	parsedDir   string
	markdownDir string
	logger      logger.Logger
}

func NewStage(s Summarizer, parsedDir, markdownDir string, log logger.Logger) *Stage {
	return &Stage{
		summarizer:  s,
		parsedDir:   parsedDir,
		markdownDir: markdownDir,
		logger:      log,
	}
}

func (s *Stage) Name() string { return "summarize" }

// Probe fails when no Summarizer was configured (no Gemini API key).
// Summarization is a required stage, so this aborts the run at startup
// instead of failing every item later.
func (s *Stage) Probe(ctx context.Context) error {
	if s.summarizer == nil {
		return errors.New("GEMINI_API_KEY not configured")
	}
	return nil
}

// Discover lists stems with parsed text but no summary yet.
func (s *Stage) Discover(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.parsedDir)
	if err != nil {
		return nil, errors.Wrap(err, "read parsed dir")
	}

	var stems []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), "_parsed.txt") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), "_parsed.txt")
		if _, err := os.Stat(filepath.Join(s.markdownDir, stem+".md")); err == nil {
			continue
		}
		stems = append(stems, stem)
	}
	sort.Strings(stems)
	return stems, nil
}

func (s *Stage) Process(ctx context.Context, stem string) error {
	src := filepath.Join(s.parsedDir, stem+"_parsed.txt")
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrapf(err, "read parsed text for %s", stem)
	}

	speech := strings.TrimSpace(string(data))
	if speech == "" {
		return errors.Newf("parsed text for %s is empty", stem)
	}

	s.logger.Info(ctx, "Summarising %s ...", filepath.Base(src))
	summary, err := s.summarizer.Summarize(ctx, speech)
	if err != nil {
		return errors.Wrapf(err, "summarize %s", stem)
	}

	mdPath := filepath.Join(s.markdownDir, stem+".md")
	if err := os.WriteFile(mdPath, []byte(strings.TrimSpace(summary)+"\n"), 0644); err != nil {
		return errors.Wrapf(err, "write summary for %s", stem)
	}

	s.logger.Info(ctx, "Saved summary -> %s", filepath.Base(mdPath))
	return nil
}
