// Package ops defines the operation under test and the catalog of simulated
// operations the harness draws from.
package ops

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Func is the operation under test: it either succeeds or returns a failure,
// normally a *Fault.
type Func func(ctx context.Context) error

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc. It is a passive wait that never blocks
// other goroutines.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Spec is an immutable catalog entry describing one simulated operation.
type Spec struct {
	Name               string        `yaml:"name" json:"name"`
	LatencyMin         time.Duration `yaml:"latency_min" json:"latencyMin"`
	LatencyMax         time.Duration `yaml:"latency_max" json:"latencyMax"`
	FailureProbability float64       `yaml:"failure_probability" json:"failureProbability"`
	FailureKind        Kind          `yaml:"failure_kind" json:"failureKind"`
	Policy             string        `yaml:"policy" json:"policy"`
	Weight             int           `yaml:"weight" json:"weight"`
}

// Validate checks a single entry.
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("operation name is required")
	}
	if s.LatencyMin < 0 || s.LatencyMax < 0 {
		return fmt.Errorf("operation %q: latency must not be negative", s.Name)
	}
	if s.LatencyMax < s.LatencyMin {
		return fmt.Errorf("operation %q: latency_max %s is below latency_min %s", s.Name, s.LatencyMax, s.LatencyMin)
	}
	if s.FailureProbability < 0 || s.FailureProbability > 1 {
		return fmt.Errorf("operation %q: failure_probability %.3f outside [0,1]", s.Name, s.FailureProbability)
	}
	if s.FailureProbability > 0 && !s.FailureKind.Valid() {
		return fmt.Errorf("operation %q: unknown failure_kind %q", s.Name, s.FailureKind)
	}
	if s.Weight < 0 {
		return fmt.Errorf("operation %q: weight must not be negative", s.Name)
	}
	return nil
}

// Latency draws a simulated latency uniformly from [LatencyMin, LatencyMax].
func (s Spec) Latency(rng *rand.Rand) time.Duration {
	span := s.LatencyMax - s.LatencyMin
	if span <= 0 {
		return s.LatencyMin
	}
	return s.LatencyMin + time.Duration(rng.Int63n(int64(span)+1))
}

// Bind turns the entry into a callable. rng must be owned by the calling
// worker; a *rand.Rand is not safe for concurrent use.
func (s Spec) Bind(rng *rand.Rand, sleep SleepFunc) Func {
	if sleep == nil {
		sleep = Sleep
	}
	return func(ctx context.Context) error {
		if d := s.Latency(rng); d > 0 {
			if err := sleep(ctx, d); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if s.FailureProbability > 0 && rng.Float64() < s.FailureProbability {
			kind := s.FailureKind
			if kind == KindNone {
				kind = KindInternal
			}
			return NewFault(kind, s.Name, "simulated failure")
		}
		return nil
	}
}
