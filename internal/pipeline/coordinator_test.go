package pipeline

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galencky/whisper-stt-project/internal/logger"
)

type fakeStage struct {
	name     string
	discover []string
	fail     map[string]error
	probeErr error
	seen     []string
}

func (s *fakeStage) Name() string { return s.name }

func (s *fakeStage) Discover(ctx context.Context) ([]string, error) {
	return s.discover, nil
}

func (s *fakeStage) Process(ctx context.Context, stem string) error {
	s.seen = append(s.seen, stem)
	if err, ok := s.fail[stem]; ok {
		return err
	}
	return nil
}

func (s *fakeStage) Probe(ctx context.Context) error { return s.probeErr }

type fakeTerminal struct {
	rec *RunRecord
}

func (t *fakeTerminal) Finalize(ctx context.Context, rec *RunRecord) error {
	t.rec = rec
	return nil
}

func TestRunAdvancesAllItems(t *testing.T) {
	s1 := &fakeStage{name: "transcribe"}
	s2 := &fakeStage{name: "parse"}
	term := &fakeTerminal{}
	c := NewCoordinator([]Stage{s1, s2}, term, logger.NewNop())

	rec, err := c.Run(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, rec.Completed)
	assert.Empty(t, rec.Failures)
	assert.Equal(t, []string{"a", "b", "c"}, s1.seen)
	assert.Equal(t, []string{"a", "b", "c"}, s2.seen)
	require.NotNil(t, term.rec, "terminal step must run")
}

func TestRunIsolatesPartialFailure(t *testing.T) {
	// Item b's summarization fails; a and c must still reach packaging.
	s1 := &fakeStage{name: "transcribe"}
	s2 := &fakeStage{name: "summarize", fail: map[string]error{
		"b": errors.New("quota exhausted"),
	}}
	s3 := &fakeStage{name: "upload"}
	term := &fakeTerminal{}
	c := NewCoordinator([]Stage{s1, s2, s3}, term, logger.NewNop())

	rec, err := c.Run(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c"}, rec.Completed)
	require.Len(t, rec.Failures, 1)
	assert.Equal(t, "b", rec.Failures[0].Stem)
	assert.Equal(t, "summarize", rec.Failures[0].Stage)
	assert.Equal(t, []string{"b"}, rec.Failed())

	// The failed item is excluded from the stage after the failure.
	assert.Equal(t, []string{"a", "c"}, s3.seen)
	assert.Equal(t, []string{"a", "c"}, term.rec.Completed)
}

func TestRunSkippedStageKeepsItemsAlive(t *testing.T) {
	s1 := &fakeStage{name: "summarize"}
	s2 := &fakeStage{name: "upload", fail: map[string]error{
		"a": errors.Wrap(ErrSkipped, "no token"),
		"b": errors.Wrap(ErrSkipped, "no token"),
	}}
	c := NewCoordinator([]Stage{s1, s2}, nil, logger.NewNop())

	rec, err := c.Run(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, rec.Completed,
		"missing configuration is a skip, not a failure")
	assert.Empty(t, rec.Failures)
}

func TestRunRecoversFromStagePanic(t *testing.T) {
	s := &panicStage{}
	c := NewCoordinator([]Stage{s}, nil, logger.NewNop())

	rec, err := c.Run(context.Background(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, rec.Completed)
	require.Len(t, rec.Failures, 1)
	assert.Equal(t, "a", rec.Failures[0].Stem)
}

type panicStage struct{}

func (s *panicStage) Name() string                              { return "explode" }
func (s *panicStage) Discover(ctx context.Context) ([]string, error) { return nil, nil }
func (s *panicStage) Process(ctx context.Context, stem string) error {
	if stem == "a" {
		panic("boom")
	}
	return nil
}

func TestProbeFailureAbortsBeforeAnyWork(t *testing.T) {
	s1 := &fakeStage{name: "transcribe", probeErr: errors.New("model missing"),
		discover: []string{"a"}}
	s2 := &fakeStage{name: "parse"}
	c := NewCoordinator([]Stage{s1, s2}, nil, logger.NewNop())

	_, err := c.RunAll(context.Background())
	require.Error(t, err)
	assert.Empty(t, s1.seen, "no item may be processed after a fatal startup error")
	assert.Empty(t, s2.seen)
}

func TestRunStageOneShot(t *testing.T) {
	s := &fakeStage{name: "parse", discover: []string{"x", "y"},
		fail: map[string]error{"y": errors.New("bad transcript")}}
	c := NewCoordinator([]Stage{s}, nil, logger.NewNop())

	rec, err := c.RunStage(context.Background(), "parse")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, rec.Completed)
	require.Len(t, rec.Failures, 1)
}

func TestRunStageUnknownName(t *testing.T) {
	c := NewCoordinator([]Stage{&fakeStage{name: "parse"}}, nil, logger.NewNop())
	_, err := c.RunStage(context.Background(), "publish")
	require.Error(t, err)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	s1 := &fakeStage{name: "one"}
	s2 := &fakeStage{name: "two"}
	c := NewCoordinator([]Stage{s1, s2}, nil, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Run(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s1.seen)
}
