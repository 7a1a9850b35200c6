package runner

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"shakeout/internal/metrics"
	"shakeout/internal/retry"
	"shakeout/internal/stats"
)

// Env is the run-scoped environment shared by every worker of one harness
// invocation. Nothing in it is package-level, so independent runs can
// proceed in parallel.
type Env struct {
	Logger   *zap.Logger
	Policies retry.Registry
	// Retryable optionally restricts which failures are retried.
	Retryable func(error) bool

	Metrics  *metrics.Registry
	Live     *stats.Live
	Executor *retry.Executor

	observer stats.Observer
	ready    bool
}

func NewEnv(logger *zap.Logger, policies retry.Registry) *Env {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Env{Logger: logger, Policies: policies}
}

// Init builds the per-run collectors and the retry executor.
func (e *Env) Init() error {
	if e.ready {
		return fmt.Errorf("environment already initialized")
	}
	if err := e.Policies.Validate(); err != nil {
		return fmt.Errorf("invalid retry policies: %w", err)
	}

	e.Metrics = metrics.New()
	e.Live = stats.NewLive()
	opts := []retry.Option{
		retry.WithLogger(e.Logger.Named("retry")),
		retry.OnRetry(func(cfg retry.Config, _ int, _ time.Duration, _ error) {
			e.Metrics.RecordRetry(cfg.Policy)
		}),
	}
	if e.Retryable != nil {
		opts = append(opts, retry.WithRetryable(e.Retryable))
	}
	e.Executor = retry.NewExecutor(opts...)
	e.observer = stats.Observers{e.Live, e.Metrics}
	e.ready = true
	e.Logger.Debug("run environment initialized", zap.Strings("policies", e.Policies.Names()))
	return nil
}

// Observe forwards a sample to the live stats and metrics.
func (e *Env) Observe(s stats.Sample) {
	if e.observer != nil {
		e.observer.Observe(s)
	}
}

// Teardown releases the environment. It is safe to call more than once.
func (e *Env) Teardown() {
	if !e.ready {
		return
	}
	e.ready = false
	e.observer = nil
	_ = e.Logger.Sync()
}
