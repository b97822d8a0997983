// Package batch provides a concurrency-bounded, delay-paced executor with
// per-item retry. Every external call site in a run goes through it.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Default configuration values.
const (
	DefaultBatchSize       = 10
	DefaultInterBatchDelay = 1 * time.Second
	DefaultMaxAttempts     = 3
	DefaultBaseDelay       = 500 * time.Millisecond
	DefaultMaxDelay        = 10 * time.Second
)

// ErrRetryExhausted marks an item that failed every attempt while fail-fast is active,
// or a stage in which every item failed.
var ErrRetryExhausted = errors.New("retries exhausted")

// Options configures a Batcher. Zero values take the defaults above.
type Options struct {
	Name            string // used in log fields
	BatchSize       int
	InterBatchDelay time.Duration
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	FailFast        bool // abort the run on the first exhausted item
	Logger          *zap.Logger
}

// Batcher executes work items in sequential batches.
type Batcher struct {
	name            string
	batchSize       int
	interBatchDelay time.Duration
	maxAttempts     int
	baseDelay       time.Duration
	maxDelay        time.Duration
	failFast        bool
	logger          *zap.Logger
	sleep           func(ctx context.Context, d time.Duration) error
}

// New creates a Batcher.
func New(opts Options) *Batcher {
	b := &Batcher{
		name:            opts.Name,
		batchSize:       opts.BatchSize,
		interBatchDelay: opts.InterBatchDelay,
		maxAttempts:     opts.MaxAttempts,
		baseDelay:       opts.BaseDelay,
		maxDelay:        opts.MaxDelay,
		failFast:        opts.FailFast,
		logger:          opts.Logger,
		sleep:           sleepContext,
	}
	if b.batchSize <= 0 {
		b.batchSize = DefaultBatchSize
	}
	if b.interBatchDelay < 0 {
		b.interBatchDelay = 0
	}
	if b.maxAttempts <= 0 {
		b.maxAttempts = DefaultMaxAttempts
	}
	if b.baseDelay <= 0 {
		b.baseDelay = DefaultBaseDelay
	}
	if b.maxDelay <= 0 {
		b.maxDelay = DefaultMaxDelay
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.name == "" {
		b.name = "batch"
	}
	b.logger = b.logger.With(zap.String("batcher", b.name))
	return b
}

// WithFailFast returns a copy of b with fail-fast set to v.
func (b *Batcher) WithFailFast(v bool) *Batcher {
	c := *b
	c.failFast = v
	return &c
}

// Named returns a copy of b that logs under name.
func (b *Batcher) Named(name string) *Batcher {
	c := *b
	c.name = name
	c.logger = b.logger.With(zap.String("stage", name))
	return &c
}

// Result is the outcome of one work item.
type Result[R any] struct {
	Value    R
	Err      error // non-nil after all attempts failed
	Attempts int
}

// Summary counts item outcomes.
type Summary struct {
	Succeeded int
	Failed    int
}

// AllFailed reports whether at least one item ran and none succeeded.
func (s Summary) AllFailed() bool {
	return s.Failed > 0 && s.Succeeded == 0
}

// Summarize counts successes and failures in results.
func Summarize[R any](results []Result[R]) Summary {
	var s Summary
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
		} else {
			s.Succeeded++
		}
	}
	return s
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Run executes op for every item. Items within a batch run concurrently; a batch
// starts only after the previous one settled and the inter-batch delay elapsed.
// results[i] always corresponds to items[i].
//
// Without fail-fast, item failures are logged and recorded in Result.Err and Run
// returns a nil error unless ctx is cancelled. With fail-fast, the first exhausted
// item aborts its batch and Run returns an error wrapping ErrRetryExhausted.
func Run[T, R any](ctx context.Context, b *Batcher, items []T, op func(context.Context, T) (R, error)) ([]Result[R], error) {
	results := make([]Result[R], len(items))

	for start := 0; start < len(items); start += b.batchSize {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		end := start + b.batchSize
		if end > len(items) {
			end = len(items)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				value, attempts, err := retry(gctx, b, func(c context.Context) (R, error) {
					return op(c, items[i])
				})
				results[i] = Result[R]{Value: value, Err: err, Attempts: attempts}
				if err == nil {
					return nil
				}
				b.logger.Warn("item failed after retries",
					zap.Int("index", i),
					zap.Int("attempts", attempts),
					zap.Error(err))
				if b.failFast {
					return fmt.Errorf("%w: %s item %d: %w", ErrRetryExhausted, b.name, i, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return results, err
		}

		if end < len(items) && b.interBatchDelay > 0 {
			if err := b.sleep(ctx, b.interBatchDelay); err != nil {
				return results, err
			}
		}
	}

	return results, nil
}

// retry runs op with capped exponential backoff: base, 2*base, 4*base ... up to
// maxDelay, for at most maxAttempts calls.
func retry[R any](ctx context.Context, b *Batcher, op func(context.Context) (R, error)) (R, int, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = b.baseDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = b.maxDelay
	policy.MaxElapsedTime = 0

	var (
		value    R
		attempts int
	)
	err := backoff.RetryNotify(func() error {
		attempts++
		v, err := op(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return backoff.Permanent(err)
			}
			return err
		}
		value = v
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(b.maxAttempts-1)), ctx),
		func(err error, next time.Duration) {
			b.logger.Debug("retrying", zap.Int("attempt", attempts), zap.Duration("backoff", next), zap.Error(err))
		})
	return value, attempts, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
