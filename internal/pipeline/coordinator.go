package pipeline

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/galencky/whisper-stt-project/internal/logger"
)

// RunRecord tracks one coordinator invocation: which items reached full
// completion and which failed where. It lives only for the duration of the
// run; durable progress is whatever the stage directories contain.
type RunRecord struct {
	Completed []string
	Failures  []ItemFailure
}

// Failed lists the stems that died at some stage in this run.
func (r *RunRecord) Failed() []string {
	stems := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		stems = append(stems, f.Stem)
	}
	return stems
}

// Terminal is the packaging/notification/cleanup step invoked after the
// last stage of a full run.
type Terminal interface {
	Finalize(ctx context.Context, rec *RunRecord) error
}

// Coordinator drives a batch through the ordered stage list. Stages run in
// strict pipeline order for the whole batch — each stage loads its
// expensive resource once per invocation, so batching amortizes that cost.
type Coordinator struct {
	stages   []Stage
	terminal Terminal
	logger   logger.Logger
}

func NewCoordinator(stages []Stage, terminal Terminal, log logger.Logger) *Coordinator {
	return &Coordinator{
		stages:   stages,
		terminal: terminal,
		logger:   log,
	}
}

// Probe checks every stage that holds a required startup resource. Called
// before the first batch is claimed; a failure here is fatal and purges
// nothing.
func (c *Coordinator) Probe(ctx context.Context) error {
	for _, st := range c.stages {
		p, ok := st.(Prober)
		if !ok {
			continue
		}
		if err := p.Probe(ctx); err != nil {
			return errors.Wrapf(err, "stage %s startup", st.Name())
		}
	}
	return nil
}

// Run drives stems through every stage in order, then hands the completed
// set to the terminal step. An item's failure at stage K removes it from
// the set advanced to stage K+1 but never stops the other items.
func (c *Coordinator) Run(ctx context.Context, stems []string) (*RunRecord, error) {
	rec := &RunRecord{}
	alive := append([]string(nil), stems...)

	// A shutdown lets the current stage finish; killing it mid-flight
	// would leave the stage directories ambiguous. Cancellation is only
	// observed between stages.
	stageCtx := context.WithoutCancel(ctx)

	for _, st := range c.stages {
		if err := ctx.Err(); err != nil {
			c.logger.Warn(ctx, "Shutdown requested - batch stopped after stage, directories left for inspection")
			return rec, err
		}
		alive = c.runStage(stageCtx, st, alive, rec)
	}

	rec.Completed = alive
	c.logger.Info(ctx, "Batch finished: %d completed, %d failed",
		len(rec.Completed), len(rec.Failures))

	if c.terminal != nil {
		if err := c.terminal.Finalize(stageCtx, rec); err != nil {
			return rec, errors.Wrap(err, "finalize batch")
		}
	}
	return rec, nil
}

// runStage processes every alive item through one stage and returns the
// survivors. Per-item errors are caught here, at the narrowest point, and
// converted into a log entry plus exclusion from later stages.
func (c *Coordinator) runStage(ctx context.Context, st Stage, alive []string, rec *RunRecord) []string {
	if len(alive) == 0 {
		return alive
	}
	c.logger.Info(ctx, "Stage %s: %d item(s)", st.Name(), len(alive))

	survivors := alive[:0]
	for _, stem := range alive {
		err := c.processItem(ctx, st, stem)
		switch {
		case err == nil:
			survivors = append(survivors, stem)
		case errors.Is(err, ErrSkipped):
			c.logger.Warn(ctx, "Stage %s skipped for %s: %v", st.Name(), stem, err)
			survivors = append(survivors, stem)
		default:
			c.logger.Error(ctx, "Item %s failed at stage %s: %v", stem, st.Name(), err)
			rec.Failures = append(rec.Failures, ItemFailure{
				Stem:  stem,
				Stage: st.Name(),
				Err:   err,
			})
		}
	}
	return survivors
}

// processItem shields the coordinator loop from a panicking stage backend.
func (c *Coordinator) processItem(ctx context.Context, st Stage, stem string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("stage %s panicked on %s: %v", st.Name(), stem, r)
		}
	}()
	return st.Process(ctx, stem)
}

// RunStage executes a single named stage one-shot over whatever its input
// directory currently contains, with the same per-item failure isolation.
// No terminal step runs.
func (c *Coordinator) RunStage(ctx context.Context, name string) (*RunRecord, error) {
	st := c.stage(name)
	if st == nil {
		return nil, errors.Newf("unknown stage %q", name)
	}
	if p, ok := st.(Prober); ok {
		if err := p.Probe(ctx); err != nil {
			return nil, errors.Wrapf(err, "stage %s startup", st.Name())
		}
	}

	stems, err := st.Discover(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "discover stage %s input", st.Name())
	}
	if len(stems) == 0 {
		c.logger.Info(ctx, "Stage %s: nothing to do", st.Name())
		return &RunRecord{}, nil
	}

	rec := &RunRecord{}
	rec.Completed = c.runStage(ctx, st, stems, rec)
	return rec, nil
}

// RunAll executes the full chain one-shot, seeding the batch from the
// first stage's input directory, and finishes with the terminal step.
func (c *Coordinator) RunAll(ctx context.Context) (*RunRecord, error) {
	if len(c.stages) == 0 {
		return nil, errors.New("no stages configured")
	}
	if err := c.Probe(ctx); err != nil {
		return nil, err
	}
	stems, err := c.stages[0].Discover(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "discover inbox")
	}
	if len(stems) == 0 {
		c.logger.Info(ctx, "Inbox empty - nothing to transcribe")
		return &RunRecord{}, nil
	}
	return c.Run(ctx, stems)
}

func (c *Coordinator) stage(name string) Stage {
	for _, st := range c.stages {
		if st.Name() == name {
			return st
		}
	}
	return nil
}
