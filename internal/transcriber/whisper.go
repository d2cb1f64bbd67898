package transcriber

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/galencky/whisper-stt-project/internal/logger"
	"github.com/galencky/whisper-stt-project/internal/transcript"
	"github.com/galencky/whisper-stt-project/pkg/executor"
)

// Options configures the whisper.cpp backend.
type Options struct {
	BinaryPath string
	ModelPath  string
	Language   string // empty = autodetect
	Threads    int
}

type implWhisper struct {
	opts   Options
	exec   executor.Executor
	logger logger.Logger
}

// New creates a Transcriber backed by the whisper.cpp CLI.
func New(opts Options, exec executor.Executor, log logger.Logger) Transcriber {
	if opts.Threads <= 0 {
		opts.Threads = 4
	}
	return &implWhisper{opts: opts, exec: exec, logger: log}
}

// Probe checks that the whisper binary and the model weights are present.
func (w *implWhisper) Probe(ctx context.Context) error {
	if _, err := exec.LookPath(w.opts.BinaryPath); err != nil {
		return errors.Wrapf(err, "whisper binary %q", w.opts.BinaryPath)
	}
	if _, err := os.Stat(w.opts.ModelPath); err != nil {
		return errors.Wrapf(err, "whisper model %q", w.opts.ModelPath)
	}
	return nil
}

// Transcribe runs whisper.cpp with JSON output and converts the result to
// timed segments.
func (w *implWhisper) Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error) {
	tmpDir, err := os.MkdirTemp("", "whisper-*")
	if err != nil {
		return nil, errors.Wrap(err, "create temp dir")
	}
	defer os.RemoveAll(tmpDir)

	outPrefix := filepath.Join(tmpDir, "result")

	args := []string{
		"-m", w.opts.ModelPath,
		"-f", audioPath,
		"-oj",
		"-of", outPrefix,
		"-t", strconv.Itoa(w.opts.Threads),
	}
	if w.opts.Language != "" {
		args = append(args, "-l", w.opts.Language)
	}

	start := time.Now()
	w.logger.Info(ctx, "Transcribing %s (%d threads)", filepath.Base(audioPath), w.opts.Threads)

	if _, err := w.exec.Execute(ctx, w.opts.BinaryPath, args...); err != nil {
		return nil, errors.Wrap(err, "whisper transcribe")
	}

	data, err := os.ReadFile(outPrefix + ".json")
	if err != nil {
		return nil, errors.Wrap(err, "read whisper output")
	}
	segments, err := parseWhisperJSON(data)
	if err != nil {
		return nil, err
	}

	w.logger.Info(ctx, "Transcription completed: %d segment(s) in %s",
		len(segments), time.Since(start).Round(time.Second))
	return segments, nil
}

// whisperOutput mirrors the relevant slice of whisper.cpp's -oj schema.
// Offsets are milliseconds.
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseWhisperJSON(data []byte) ([]transcript.Segment, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "parse whisper output")
	}

	segments := make([]transcript.Segment, 0, len(out.Transcription))
	for _, seg := range out.Transcription {
		segments = append(segments, transcript.Segment{
			Start: time.Duration(seg.Offsets.From) * time.Millisecond,
			End:   time.Duration(seg.Offsets.To) * time.Millisecond,
			Text:  seg.Text,
		})
	}
	return segments, nil
}
