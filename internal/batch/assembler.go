package batch

import (
	"context"
	"time"

	"github.com/galencky/whisper-stt-project/internal/logger"
)

// Claimer is the slice of the stable-set detector the assembler needs.
type Claimer interface {
	Claim(now time.Time) []string
}

// Handler processes one claimed batch end to end.
type Handler func(ctx context.Context, b *Batch) error

// Assembler polls the detector on a fixed short interval and drains every
// currently-stable file into a single batch. The handler runs synchronously
// on the poll goroutine, so at most one batch is in flight at a time and a
// shutdown never interrupts a stage mid-flight.
type Assembler struct {
	claimer  Claimer
	interval time.Duration
	handler  Handler
	logger   logger.Logger
}

func NewAssembler(claimer Claimer, interval time.Duration, handler Handler, log logger.Logger) *Assembler {
	return &Assembler{
		claimer:  claimer,
		interval: interval,
		handler:  handler,
		logger:   log,
	}
}

// Run ticks until ctx is cancelled. Empty claims produce no batch.
func (a *Assembler) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			b := a.assemble(ctx, now)
			if b == nil {
				continue
			}
			a.logger.Info(ctx, "Processing batch of %d file(s) claimed at %s",
				b.Size(), b.ClaimedAt.Format("15:04:05"))
			if err := a.handler(ctx, b); err != nil {
				a.logger.Error(ctx, "Batch failed: %v", err)
			}
		}
	}
}

// assemble claims the current stable set and resolves it to unique stems.
// Duplicate stems (a.wav and a.mp3 settling together) cannot share stage
// artifacts; the first claimed path wins and the rest are dropped loudly.
func (a *Assembler) assemble(ctx context.Context, now time.Time) *Batch {
	paths := a.claimer.Claim(now)
	if len(paths) == 0 {
		return nil
	}

	b := &Batch{
		Paths:     make(map[string]string, len(paths)),
		ClaimedAt: now,
	}
	for _, path := range paths {
		stem := Stem(path)
		if existing, ok := b.Paths[stem]; ok {
			a.logger.Warn(ctx, "Duplicate stem %q: keeping %s, dropping %s", stem, existing, path)
			continue
		}
		b.Paths[stem] = path
		b.Stems = append(b.Stems, stem)
	}
	return b
}
