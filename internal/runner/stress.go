package runner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"shakeout/internal/stats"
)

// StepResult is the aggregate of one stress step.
type StepResult struct {
	Metadata Metadata
	Report   stats.Report
	Samples  []stats.Sample
}

// Steps lists the concurrency levels of a stress run.
func Steps(maxConcurrency, stepSize int) ([]int, error) {
	if stepSize <= 0 {
		return nil, fmt.Errorf("step size must be positive, got %d", stepSize)
	}
	if maxConcurrency < stepSize {
		return nil, fmt.Errorf("max concurrency %d is below step size %d", maxConcurrency, stepSize)
	}
	steps := make([]int, 0, maxConcurrency/stepSize)
	for c := stepSize; c <= maxConcurrency; c += stepSize {
		steps = append(steps, c)
	}
	return steps, nil
}

// RunStress runs a load step at every concurrency level from stepSize to
// maxConcurrency, pausing SettleTime between steps.
func (g *Generator) RunStress(ctx context.Context, maxConcurrency, stepSize int) ([]StepResult, error) {
	steps, err := Steps(maxConcurrency, stepSize)
	if err != nil {
		return nil, err
	}

	out := make([]StepResult, 0, len(steps))
	for i, c := range steps {
		g.env.Logger.Info("stress step starting",
			zap.Int("step", i+1),
			zap.Int("of", len(steps)),
			zap.Int("users", c))

		meta := NewMetadata(ModeStress)
		meta.Concurrency = c
		meta.RequestsPerUser = g.cfg.StressRequestsPerUser

		users, elapsed, err := g.runLoad(ctx, c, g.cfg.StressRequestsPerUser, i == len(steps)-1)
		if err != nil {
			return out, err
		}
		samples := stats.Merge(userSamples(users)...)
		out = append(out, StepResult{
			Metadata: meta,
			Report:   stats.Aggregate(samples, elapsed),
			Samples:  samples,
		})

		if i < len(steps)-1 && g.cfg.SettleTime > 0 {
			if err := g.sleep(ctx, g.cfg.SettleTime); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

func userSamples(users []UserResult) [][]stats.Sample {
	sets := make([][]stats.Sample, len(users))
	for i := range users {
		sets[i] = users[i].Samples
	}
	return sets
}

// MergeUsers concatenates the samples of every user in user order.
func MergeUsers(users []UserResult) []stats.Sample {
	return stats.Merge(userSamples(users)...)
}
