package transcriber

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/galencky/whisper-stt-project/internal/batch"
	"github.com/galencky/whisper-stt-project/internal/logger"
	"github.com/galencky/whisper-stt-project/internal/transcript"
)

// Stage is the transcription step: audio in inbox/, timestamped text out
// to transcripts/, originals moved to processed/ on success.
type Stage struct {
	transcriber    Transcriber
	inboxDir       string
	transcriptsDir string
	processedDir   string
	extensions     []string
	logger         logger.Logger
}

func NewStage(t Transcriber, inboxDir, transcriptsDir, processedDir string, extensions []string, log logger.Logger) *Stage {
	return &Stage{
		transcriber:    t,
		inboxDir:       inboxDir,
		transcriptsDir: transcriptsDir,
		processedDir:   processedDir,
		extensions:     extensions,
		logger:         log,
	}
}

func (s *Stage) Name() string { return "transcribe" }

func (s *Stage) Probe(ctx context.Context) error {
	return s.transcriber.Probe(ctx)
}

// Discover lists audio stems in the inbox without a transcript yet.
func (s *Stage) Discover(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.inboxDir)
	if err != nil {
		return nil, errors.Wrap(err, "read inbox")
	}

	seen := make(map[string]struct{})
	var stems []string
	for _, e := range entries {
		if e.IsDir() || !s.isAudio(e.Name()) {
			continue
		}
		stem := batch.Stem(e.Name())
		if _, dup := seen[stem]; dup {
			continue
		}
		seen[stem] = struct{}{}
		if _, err := os.Stat(filepath.Join(s.transcriptsDir, stem+".txt")); err == nil {
			continue
		}
		stems = append(stems, stem)
	}
	sort.Strings(stems)
	return stems, nil
}

// Process transcribes one item and moves its audio out of the inbox. The
// transcript write happens before the move, so a crash in between leaves
// the item re-runnable, never half-consumed.
func (s *Stage) Process(ctx context.Context, stem string) error {
	audioPath, err := s.findAudio(stem)
	if err != nil {
		return err
	}

	segments, err := s.transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		return errors.Wrapf(err, "transcribe %s", stem)
	}

	outPath := filepath.Join(s.transcriptsDir, stem+".txt")
	if err := transcript.WriteFile(outPath, segments); err != nil {
		return errors.Wrapf(err, "save transcript for %s", stem)
	}
	s.logger.Info(ctx, "Saved transcript -> %s", filepath.Base(outPath))

	dest := filepath.Join(s.processedDir, filepath.Base(audioPath))
	if err := os.Rename(audioPath, dest); err != nil {
		return errors.Wrapf(err, "move %s to processed", stem)
	}
	return nil
}

// findAudio resolves a stem back to its audio file in the inbox.
func (s *Stage) findAudio(stem string) (string, error) {
	entries, err := os.ReadDir(s.inboxDir)
	if err != nil {
		return "", errors.Wrap(err, "read inbox")
	}
	for _, e := range entries {
		if e.IsDir() || !s.isAudio(e.Name()) {
			continue
		}
		if batch.Stem(e.Name()) == stem {
			return filepath.Join(s.inboxDir, e.Name()), nil
		}
	}
	return "", errors.Newf("no audio for %s in inbox", stem)
}

func (s *Stage) isAudio(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range s.extensions {
		if ext == want {
			return true
		}
	}
	return false
}
