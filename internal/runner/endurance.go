package runner

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"shakeout/internal/stats"
)

// EnduranceResult is the outcome of a fixed-rate run.
type EnduranceResult struct {
	Metadata  Metadata
	Report    stats.Report
	Samples   []stats.Sample
	TargetRPS float64
	// ActualRPS is total requests over the wall clock, drain included.
	ActualRPS float64
}

// RunEndurance issues the endurance operation at targetRPS until duration
// has passed, then waits for in-flight requests to finish.
func (g *Generator) RunEndurance(ctx context.Context, duration time.Duration, targetRPS float64) (EnduranceResult, error) {
	if duration <= 0 {
		return EnduranceResult{}, fmt.Errorf("duration must be positive, got %s", duration)
	}
	if targetRPS <= 0 {
		return EnduranceResult{}, fmt.Errorf("target rps must be positive, got %.2f", targetRPS)
	}
	spec, err := g.cfg.EnduranceOperation()
	if err != nil {
		return EnduranceResult{}, err
	}

	meta := NewMetadata(ModeEndurance)
	meta.Operation = spec.Name
	meta.TargetRPS = targetRPS
	meta.Duration = duration
	meta.PlannedSeconds = duration.Seconds()

	limiter := rate.NewLimiter(rate.Limit(targetRPS), 1)
	issueCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	// single collector; issuers only send
	results := make(chan stats.Sample, 256)
	collected := make(chan []stats.Sample)
	go func() {
		var all []stats.Sample
		for s := range results {
			all = append(all, s)
		}
		collected <- all
	}()

	issuer := g.rngFor(g.reserve(1))
	var wg sync.WaitGroup
	start := time.Now()
	issued := 0
	for {
		if err := limiter.Wait(issueCtx); err != nil {
			break
		}
		id := issued
		issued++
		rng := rand.New(rand.NewSource(issuer.Int63()))
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := g.execute(ctx, id, spec, g.bind(spec, rng))
			g.env.Observe(s)
			results <- s
		}()
	}
	g.draining()
	wg.Wait()
	close(results)
	samples := <-collected
	elapsed := time.Since(start)

	res := EnduranceResult{
		Metadata:  meta,
		Report:    stats.Aggregate(samples, elapsed),
		Samples:   samples,
		TargetRPS: targetRPS,
	}
	if elapsed > 0 {
		res.ActualRPS = float64(len(samples)) / elapsed.Seconds()
	}
	g.env.Logger.Info("endurance run finished",
		zap.Int("issued", issued),
		zap.Float64("target_rps", targetRPS),
		zap.Float64("actual_rps", res.ActualRPS))

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}
