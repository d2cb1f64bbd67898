// Package parser reformats raw timestamped transcripts into readable
// blocks: one [HH:MM:SS.mmm] marker per fixed-size time bucket followed by
// a merged paragraph of every segment starting in that bucket.
package parser

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/galencky/whisper-stt-project/internal/logger"
	"github.com/galencky/whisper-stt-project/internal/transcript"
)

// BucketWidth is the grouping window. Bucket membership is integer
// division of elapsed seconds by this width.
const BucketWidth = 300 * time.Second

// Reformat merges segments into marker+paragraph blocks. Segment texts
// within one bucket are joined by single spaces in original order; a
// bucket change starts a new block headed by that segment's start time.
func Reformat(segments []transcript.Segment) string {
	if len(segments) == 0 {
		return ""
	}

	var blocks []string
	var paragraph strings.Builder
	lastBucket := -1

	flush := func() {
		if paragraph.Len() > 0 {
			blocks = append(blocks, strings.TrimSpace(paragraph.String()))
			paragraph.Reset()
		}
	}

	for _, seg := range segments {
		bucket := int(seg.Start / BucketWidth)
		if lastBucket == -1 || bucket != lastBucket {
			flush()
			blocks = append(blocks, "["+seg.StartString()+"]")
			lastBucket = bucket
		}
		paragraph.WriteString(strings.TrimSpace(seg.Text))
		paragraph.WriteString(" ")
	}
	flush()

	// Interleave marker, paragraph, blank line.
	var out []string
	for i := 0; i < len(blocks); i += 2 {
		out = append(out, blocks[i])
		if i+1 < len(blocks) {
			out = append(out, blocks[i+1], "")
		}
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Stage is the parse step of the pipeline: transcripts/<stem>.txt in,
// parsed/<stem>_parsed.txt out.
type Stage struct {
	transcriptsDir string
	parsedDir      string
	logger         logger.Logger
}

func NewStage(transcriptsDir, parsedDir string, log logger.Logger) *Stage {
	return &Stage{
		transcriptsDir: transcriptsDir,
		parsedDir:      parsedDir,
		logger:         log,
	}
}

func (s *Stage) Name() string { return "parse" }

// Discover lists stems with a transcript but no parsed output yet.
func (s *Stage) Discover(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.transcriptsDir)
	if err != nil {
		return nil, errors.Wrap(err, "read transcripts dir")
	}

	var stems []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".txt")
		if _, err := os.Stat(s.outputPath(stem)); err == nil {
			continue
		}
		stems = append(stems, stem)
	}
	sort.Strings(stems)
	return stems, nil
}

func (s *Stage) Process(ctx context.Context, stem string) error {
	src := filepath.Join(s.transcriptsDir, stem+".txt")
	segments, err := transcript.ParseFile(src)
	if err != nil {
		return errors.Wrapf(err, "read transcript for %s", stem)
	}

	out := s.outputPath(stem)
	if err := os.WriteFile(out, []byte(Reformat(segments)+"\n"), 0644); err != nil {
		return errors.Wrapf(err, "write parsed text for %s", stem)
	}

	s.logger.Info(ctx, "Parsed %s.txt -> %s", stem, filepath.Base(out))
	return nil
}

func (s *Stage) outputPath(stem string) string {
	return filepath.Join(s.parsedDir, stem+"_parsed.txt")
}
