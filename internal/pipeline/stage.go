package pipeline

import "context"

// Stage is one step of the pipeline. Stages communicate purely through the
// filesystem: each consumes the directory the previous stage wrote and
// produces artifacts in its own output directory, keyed by stem. Artifact
// existence is the only progress ledger, which keeps every stage
// independently re-runnable after a crash.
type Stage interface {
	Name() string

	// Discover lists the stems present in the stage's input directory and
	// not yet present in its output directory. Used by one-shot runs.
	Discover(ctx context.Context) ([]string, error)

	// Process advances one item through this stage. Returning ErrSkipped
	// (or an error wrapping it) leaves the item alive without producing
	// output; any other error is terminal for the item in this run.
	Process(ctx context.Context, stem string) error
}

// Prober is implemented by stages holding a required startup resource
// (the transcription model). A probe failure aborts the whole run before
// any batch is claimed.
type Prober interface {
	Probe(ctx context.Context) error
}
