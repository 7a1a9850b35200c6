// Package retry wraps unreliable calls with bounded retries, exponential
// backoff and jitter.
package retry

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"shakeout/internal/ops"
)

// Executor runs operations under a Config. It holds only immutable settings
// and is safe for concurrent use as long as the injected random source is.
type Executor struct {
	logger    *zap.Logger
	sleep     ops.SleepFunc
	draw      func() float64
	retryable func(error) bool
	onRetry   func(cfg Config, attempt int, delay time.Duration, err error)
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger adds logging to retry attempts
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithSleep replaces the backoff wait.
func WithSleep(sleep ops.SleepFunc) Option {
	return func(e *Executor) {
		e.sleep = sleep
	}
}

// WithRand draws jitter from rng. rng must not be shared across goroutines.
func WithRand(rng *rand.Rand) Option {
	return func(e *Executor) {
		e.draw = rng.Float64
	}
}

// WithRetryable limits retries to failures for which fn returns true.
func WithRetryable(fn func(error) bool) Option {
	return func(e *Executor) {
		e.retryable = fn
	}
}

// OnRetry registers a hook called before each backoff wait.
func OnRetry(fn func(cfg Config, attempt int, delay time.Duration, err error)) Option {
	return func(e *Executor) {
		e.onRetry = fn
	}
}

// TransientOnly is a retryable predicate that accepts only transient fault
// kinds.
func TransientOnly(err error) bool {
	return ops.KindOf(err).Transient()
}

// NewExecutor creates an executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		logger:    zap.NewNop(),
		sleep:     ops.Sleep,
		draw:      rand.Float64,
		retryable: func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute invokes op up to cfg.MaxRetries+1 times. It returns the number of
// attempts made and nil on success, or an *ExhaustedError wrapping the last
// failure. Cancellation during a backoff wait returns ctx.Err().
func (e *Executor) Execute(ctx context.Context, cfg Config, op ops.Func) (int, error) {
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}

		attempts++
		err := op(ctx)
		if err == nil {
			if attempts > 1 {
				e.logger.Debug("operation succeeded after retry",
					zap.String("policy", cfg.Policy),
					zap.Int("attempt", attempts))
			}
			return attempts, nil
		}

		if attempts > cfg.MaxRetries || !e.retryable(err) {
			e.logger.Warn("operation failed after all retries",
				zap.String("policy", cfg.Policy),
				zap.Int("attempts", attempts),
				zap.Error(err))
			return attempts, &ExhaustedError{Policy: cfg.Policy, Attempts: attempts, Err: err}
		}

		delay := cfg.Backoff(attempts, e.draw())
		e.logger.Debug("operation failed, retrying",
			zap.String("policy", cfg.Policy),
			zap.Error(err),
			zap.Int("attempt", attempts),
			zap.Int("maxRetries", cfg.MaxRetries),
			zap.Duration("delay", delay))
		if e.onRetry != nil {
			e.onRetry(cfg, attempts, delay, err)
		}

		if err := e.sleep(ctx, delay); err != nil {
			return attempts, err
		}
	}
}

// Call is Execute for operations that produce a value.
func Call[T any](ctx context.Context, e *Executor, cfg Config, fn func(context.Context) (T, error)) (T, int, error) {
	var result T
	attempts, err := e.Execute(ctx, cfg, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, attempts, err
}
