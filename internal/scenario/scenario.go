// Package scenario replays one failure per fault class through the retry
// executor and reports whether each class recovered.
//
// The simulation is deterministic: every stub fails exactly once with its
// target kind and then succeeds. It is a regression fixture for the retry
// policies, not a fuzzer, and should not be generalized into one.
package scenario

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"shakeout/internal/ops"
	"shakeout/internal/retry"
)

// Status is the result of one scenario.
type Status string

const (
	StatusRecovered Status = "recovered"
	StatusFailed    Status = "failed"
)

// Scenario is one fault class and the policy expected to absorb it.
type Scenario struct {
	Name             string
	Kind             ops.Kind
	Policy           string
	ExpectedBehavior string
	recovery         string
}

// Outcome is what running a Scenario produced.
type Outcome struct {
	Name             string   `json:"name"`
	Kind             ops.Kind `json:"kind"`
	Policy           string   `json:"policy"`
	Status           Status   `json:"status"`
	Message          string   `json:"message"`
	Attempts         int      `json:"attempts"`
	ExpectedBehavior string   `json:"expectedBehavior"`
}

// Catalog lists the fault classes in the order they are run.
func Catalog() []Scenario {
	return []Scenario{
		{
			Name:             "rate_limit",
			Kind:             ops.KindRateLimit,
			Policy:           retry.PolicyInference,
			ExpectedBehavior: "retry with backoff, serve cached response meanwhile",
			recovery:         "rate limit simulated and recovered",
		},
		{
			Name:             "connection_loss",
			Kind:             ops.KindConnectionLoss,
			Policy:           retry.PolicyDatastore,
			ExpectedBehavior: "automatic retry, local cache",
			recovery:         "datastore connection loss simulated and recovered",
		},
		{
			Name:             "timeout",
			Kind:             ops.KindTimeout,
			Policy:           retry.PolicyFileTransfer,
			ExpectedBehavior: "retry with progress, chunked upload",
			recovery:         "upload timeout simulated and recovered",
		},
		{
			Name:             "credential_expired",
			Kind:             ops.KindCredentialExpired,
			Policy:           retry.PolicyIdentity,
			ExpectedBehavior: "automatic token refresh, local fallback",
			recovery:         "expired credential simulated and token refreshed",
		},
	}
}

// Simulator runs the scenario catalog.
type Simulator struct {
	executor *retry.Executor
	registry retry.Registry
	logger   *zap.Logger
}

func NewSimulator(executor *retry.Executor, registry retry.Registry, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{executor: executor, registry: registry, logger: logger}
}

// Run executes every scenario in order. It only returns an error when ctx is
// done; a scenario that does not recover is reported as StatusFailed.
func (s *Simulator) Run(ctx context.Context) ([]Outcome, error) {
	scenarios := Catalog()
	out := make([]Outcome, 0, len(scenarios))
	for _, sc := range scenarios {
		o, err := s.RunOne(ctx, sc)
		if err != nil {
			return out, err
		}
		out = append(out, o)
	}
	return out, nil
}

// RunOne executes a single scenario.
func (s *Simulator) RunOne(ctx context.Context, sc Scenario) (Outcome, error) {
	s.logger.Info("simulating failure scenario",
		zap.String("scenario", sc.Name),
		zap.String("policy", sc.Policy))

	failed := false
	stub := func(context.Context) error {
		if !failed {
			failed = true
			return ops.NewFault(sc.Kind, sc.Name, "injected failure")
		}
		return nil
	}

	attempts, err := s.executor.Execute(ctx, s.registry.For(sc.Policy), stub)
	o := Outcome{
		Name:             sc.Name,
		Kind:             sc.Kind,
		Policy:           sc.Policy,
		Attempts:         attempts,
		ExpectedBehavior: sc.ExpectedBehavior,
	}
	switch {
	case err == nil:
		o.Status = StatusRecovered
		o.Message = sc.recovery
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return o, fmt.Errorf("scenario %s interrupted: %w", sc.Name, err)
	default:
		o.Status = StatusFailed
		o.Message = err.Error()
		s.logger.Warn("failure scenario did not recover",
			zap.String("scenario", sc.Name),
			zap.Error(err))
	}
	return o, nil
}

// AllRecovered reports whether every outcome recovered.
func AllRecovered(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if o.Status != StatusRecovered {
			return false
		}
	}
	return true
}
