package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"romgen/internal/emit"
	"romgen/internal/logging"
	"romgen/internal/modes"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome of one model in a batch.
type BatchItem struct {
	Model  int
	Result *Result
	Err    error
}

// RunBatch generates every hierarchy model in models with at most jobs runs
// in flight. Batch runs never display and never prompt: an ask overwrite
// policy is treated as never. One failing model does not stop the others;
// the returned error joins every failure.
func (r *Runner) RunBatch(ctx context.Context, base Options, models []int, jobs int) ([]BatchItem, error) {
	log := logging.Get(logging.CategoryPipeline)

	opts := base
	opts.Selection = modes.SelectHierarchy
	opts.DisplayInteractive = false
	if opts.Overwrite == emit.OverwriteAsk || opts.Overwrite == "" {
		opts.Overwrite = emit.OverwriteNever
	}

	items := make([]BatchItem, len(models))
	var (
		mu   sync.Mutex
		errs []error
	)

	eg, egCtx := errgroup.WithContext(ctx)
	if jobs > 0 {
		eg.SetLimit(jobs)
	}
	for i, model := range models {
		eg.Go(func() error {
			runOpts := opts
			runOpts.HierarchyIndex = model
			res, err := r.Run(egCtx, runOpts)
			items[i] = BatchItem{Model: model, Result: res, Err: err}
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("model %d: %w", model, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = eg.Wait()

	log.Info("batch complete",
		zap.Int("models", len(models)),
		zap.Int("failed", len(errs)),
		zap.Int("jobs", jobs))
	return items, errors.Join(errs...)
}

// ModelRange expands from..to (inclusive) into model numbers.
func ModelRange(from, to int) ([]int, error) {
	if from < 1 || to < from {
		return nil, &ConfigError{Option: "model range", Value: fmt.Sprintf("%d..%d", from, to), Err: modes.ErrInvalidModel}
	}
	out := make([]int, 0, to-from+1)
	for n := from; n <= to; n++ {
		out = append(out, n)
	}
	return out, nil
}
