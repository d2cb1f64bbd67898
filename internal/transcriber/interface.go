package transcriber

import (
	"context"

	"github.com/galencky/whisper-stt-project/internal/transcript"
)

// Transcriber converts one audio file into ordered timed segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]transcript.Segment, error)

	// Probe verifies the transcription resource is usable. Called once at
	// startup; a failure aborts the run before any batch is claimed.
	Probe(ctx context.Context) error
}
