package runner

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shakeout/internal/stats"
)

// RunLoad starts concurrency virtual users and waits for all of them. Each
// user executes requestsPerUser operations, or a random count in
// [MinOps, MaxOps] when requestsPerUser is zero. The returned duration is the
// wall-clock time from the first spawn to the last worker finishing.
//
// Operation failures are recorded in the results; only cancellation of ctx
// returns an error, together with whatever the users completed.
func (g *Generator) RunLoad(ctx context.Context, concurrency, requestsPerUser int) ([]UserResult, time.Duration, error) {
	return g.runLoad(ctx, concurrency, requestsPerUser, true)
}

func (g *Generator) runLoad(ctx context.Context, concurrency, requestsPerUser int, final bool) ([]UserResult, time.Duration, error) {
	if concurrency < 1 {
		return nil, 0, fmt.Errorf("concurrency must be positive, got %d", concurrency)
	}
	if requestsPerUser < 0 {
		return nil, 0, fmt.Errorf("requests per user must not be negative, got %d", requestsPerUser)
	}

	first := g.reserve(concurrency)
	results := make([]UserResult, concurrency)
	eg, egCtx := errgroup.WithContext(ctx)

	start := time.Now()
	for i := 0; i < concurrency; i++ {
		i := i
		rng := g.rngFor(first + int64(i))
		eg.Go(func() error {
			return g.runUser(egCtx, i, requestsPerUser, rng, &results[i])
		})
	}
	if final {
		g.draining()
	}
	err := eg.Wait()
	elapsed := time.Since(start)

	g.env.Logger.Debug("load run finished",
		zap.Int("users", concurrency),
		zap.Duration("elapsed", elapsed))
	return results, elapsed, err
}

// runUser is one virtual user. It writes only to out.
func (g *Generator) runUser(ctx context.Context, id, count int, rng *rand.Rand, out *UserResult) error {
	if count == 0 {
		count = g.cfg.MinOps + rng.Intn(g.cfg.MaxOps-g.cfg.MinOps+1)
	}
	out.UserID = id
	out.Samples = make([]stats.Sample, 0, count)

	for j := 0; j < count; j++ {
		spec := g.selector.Pick(rng)
		s := g.execute(ctx, id, spec, g.bind(spec, rng))
		if err := ctx.Err(); err != nil {
			return err
		}
		if !s.Succeeded {
			out.Failures++
		}
		out.Samples = append(out.Samples, s)
		g.env.Observe(s)

		if j < count-1 {
			if err := g.think(ctx, rng); err != nil {
				return err
			}
		}
	}
	return nil
}
