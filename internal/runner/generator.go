// Package runner drives virtual users against the operation catalog in load,
// stress and endurance modes.
package runner

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shakeout/internal/ops"
	"shakeout/internal/stats"
)

// Binder turns a catalog entry into a callable for one worker.
type Binder func(spec ops.Spec, rng *rand.Rand) ops.Func

// UserResult is everything one virtual user produced. It is owned by the
// worker until the worker returns.
type UserResult struct {
	UserID   int
	Samples  []stats.Sample
	Failures int
}

// Generator is the virtual-user engine.
type Generator struct {
	cfg      Config
	env      *Env
	selector ops.Selector
	bind     Binder
	sleep    ops.SleepFunc
	seedBase int64
	streams  atomic.Int64
	drain    func()
}

// Option configures a Generator.
type Option func(*Generator)

// WithBinder replaces the simulated operations, e.g. with fixed stubs.
func WithBinder(b Binder) Option {
	return func(g *Generator) {
		g.bind = b
	}
}

// WithSleep replaces think-time and simulated-latency waits.
func WithSleep(s ops.SleepFunc) Option {
	return func(g *Generator) {
		g.sleep = s
	}
}

func NewGenerator(cfg Config, env *Env, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid runner config: %w", err)
	}
	if env == nil || env.Executor == nil {
		return nil, fmt.Errorf("runner environment is not initialized")
	}

	g := &Generator{cfg: cfg, env: env, sleep: ops.Sleep, seedBase: cfg.Seed}
	if g.seedBase == 0 {
		g.seedBase = time.Now().UnixNano()
	}
	if cfg.Weighted {
		g.selector = ops.NewWeighted(cfg.Catalog)
	} else {
		g.selector = ops.Uniform{Catalog: cfg.Catalog}
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.bind == nil {
		sleep := g.sleep
		g.bind = func(spec ops.Spec, rng *rand.Rand) ops.Func {
			return spec.Bind(rng, sleep)
		}
	}
	return g, nil
}

// WithDrainHook registers fn to be called once the final batch of work has
// been issued and the generator is only waiting for it to finish.
func WithDrainHook(fn func()) Option {
	return func(g *Generator) {
		g.drain = fn
	}
}

func (g *Generator) draining() {
	if g.drain != nil {
		g.drain()
	}
}

// reserve claims n worker streams and returns the first stream index.
func (g *Generator) reserve(n int) int64 {
	return g.streams.Add(int64(n)) - int64(n)
}

func (g *Generator) rngFor(stream int64) *rand.Rand {
	return rand.New(rand.NewSource(g.seedBase + stream*7919))
}

// NewMetadata stamps a fresh run identifier.
func NewMetadata(mode Mode) Metadata {
	return Metadata{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now(),
	}
}

// execute runs one operation, through the retry policy when enabled, and
// returns its sample. Failures are recorded, never returned.
func (g *Generator) execute(ctx context.Context, userID int, spec ops.Spec, fn ops.Func) stats.Sample {
	start := time.Now()
	var (
		attempts int
		err      error
	)
	if g.cfg.Retry {
		attempts, err = g.env.Executor.Execute(ctx, g.env.Policies.For(spec.Policy), fn)
	} else {
		attempts, err = 1, fn(ctx)
	}

	s := stats.Sample{
		Operation: spec.Name,
		Duration:  time.Since(start),
		Succeeded: err == nil,
		ErrorKind: ops.KindOf(err),
		Attempts:  attempts,
		UserID:    userID,
		Timestamp: start,
	}
	if err != nil {
		g.env.Logger.Debug("operation failed",
			zap.String("operation", spec.Name),
			zap.Int("user", userID),
			zap.Error(err))
	}
	return s
}

func (g *Generator) think(ctx context.Context, rng *rand.Rand) error {
	d := g.cfg.ThinkMin
	if span := g.cfg.ThinkMax - g.cfg.ThinkMin; span > 0 {
		d += time.Duration(rng.Int63n(int64(span) + 1))
	}
	if d <= 0 {
		return ctx.Err()
	}
	return g.sleep(ctx, d)
}
