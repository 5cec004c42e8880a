package edit

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// BatchResult aggregates one batch run. Outcomes keep the input order so
// callers can correlate by position.
type BatchResult struct {
	Successful int
	Failed     int
	Outcomes   []Outcome
}

// Batch fans items out over a bounded worker pool. Items share nothing but
// the pool itself; one item's failure never stops the others.
type Batch struct {
	pipeline *Pipeline
	workers  int
	logger   zerolog.Logger
}

func NewBatch(pipeline *Pipeline, workers int, logger *zerolog.Logger) *Batch {
	if workers <= 0 {
		workers = 4
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Batch{pipeline: pipeline, workers: workers, logger: l}
}

// Run processes every item and returns one outcome per input position.
func (b *Batch) Run(ctx context.Context, items []Item) *BatchResult {
	outcomes := make([]Outcome, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			out, err := b.pipeline.Edit(gctx, item)
			if err != nil {
				b.logger.Warn().Err(err).Int("item", i).Msg("edit: batch item failed")
				outcomes[i] = Outcome{Err: err.Error()}
				return nil
			}
			outcomes[i] = *out
			return nil
		})
	}
	// Workers only ever return nil; failures live in the outcome slots.
	_ = g.Wait()

	result := &BatchResult{Outcomes: outcomes}
	for _, out := range outcomes {
		if out.Success {
			result.Successful++
		} else {
			result.Failed++
		}
	}
	b.logger.Info().Int("total", len(items)).Int("successful", result.Successful).Int("failed", result.Failed).Msg("edit: batch finished")
	return result
}
