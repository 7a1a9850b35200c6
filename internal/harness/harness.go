// Package harness owns one resilience run from setup to report: it probes the
// target, runs the selected mode, aggregates once all workers are done and
// builds the report.
package harness

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"shakeout/internal/report"
	"shakeout/internal/runner"
	"shakeout/internal/scenario"
	"shakeout/internal/stats"
)

// SimulatedTarget labels reports of runs without a network target.
const SimulatedTarget = "simulated"

// Request describes what to run.
type Request struct {
	Mode     runner.Mode
	Target   string
	Endpoint string

	Users           int
	RequestsPerUser int
	MaxUsers        int
	Step            int
	Duration        time.Duration
	RPS             float64

	// Scenarios also runs the failure scenario simulator.
	Scenarios    bool
	ProbeTimeout time.Duration

	Runner runner.Config
}

// Result is what a successful run produced.
type Result struct {
	Document report.Document
	Samples  []stats.Sample
}

// Harness drives a single run. It is single-use.
type Harness struct {
	env     *runner.Env
	logger  *zap.Logger
	client  *http.Client
	genOpts []runner.Option
	onState func(from, to State)

	mu      sync.Mutex
	state   State
	started bool
	history []State
}

// Option configures a Harness.
type Option func(*Harness)

func WithHTTPClient(c *http.Client) Option {
	return func(h *Harness) {
		h.client = c
	}
}

// WithGeneratorOptions forwards options to the load generator.
func WithGeneratorOptions(opts ...runner.Option) Option {
	return func(h *Harness) {
		h.genOpts = append(h.genOpts, opts...)
	}
}

// WithStateHook is called after every transition.
func WithStateHook(fn func(from, to State)) Option {
	return func(h *Harness) {
		h.onState = fn
	}
}

func New(env *runner.Env, opts ...Option) *Harness {
	h := &Harness{
		env:     env,
		logger:  env.Logger.Named("harness"),
		client:  &http.Client{},
		state:   Idle,
		history: []State{Idle},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// State returns the current state.
func (h *Harness) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// History returns every state visited, in order.
func (h *Harness) History() []State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]State(nil), h.history...)
}

func (h *Harness) transition(to State) error {
	h.mu.Lock()
	from := h.state
	if !CanTransition(from, to) {
		h.mu.Unlock()
		return fmt.Errorf("invalid transition %s -> %s", from, to)
	}
	h.state = to
	h.history = append(h.history, to)
	h.mu.Unlock()

	h.logger.Info("state changed", zap.Stringer("from", from), zap.Stringer("to", to))
	if h.onState != nil {
		h.onState(from, to)
	}
	return nil
}

func (h *Harness) fail(stage string, err error) error {
	f := &Fault{Stage: stage, Err: err}
	h.logger.Error("run aborted", zap.String("stage", stage), zap.Error(err))
	if terr := h.transition(Failed); terr != nil {
		return fmt.Errorf("%w (%v)", f, terr)
	}
	return f
}

// Run executes req. A setup problem returns a *Fault and leaves the harness
// Failed; no worker has started in that case. Cancellation of ctx mid-run
// still aggregates and reports what completed, and returns ctx's error with
// the result.
func (h *Harness) Run(ctx context.Context, req Request) (Result, error) {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return Result{}, fmt.Errorf("harness already used")
	}
	h.started = true
	h.mu.Unlock()

	if err := h.env.Init(); err != nil {
		return Result{}, h.fail("init", err)
	}
	defer h.env.Teardown()

	gen, err := h.setup(ctx, req)
	if err != nil {
		return Result{}, err
	}

	if err := h.transition(Running); err != nil {
		return Result{}, err
	}
	entries, samples, runErr := h.dispatch(ctx, gen, req)
	if h.State() == Running {
		if err := h.transition(AwaitingCompletion); err != nil {
			return Result{}, err
		}
	}

	var outcomes []scenario.Outcome
	if req.Scenarios && runErr == nil {
		sim := scenario.NewSimulator(h.env.Executor, h.env.Policies, h.env.Logger.Named("scenario"))
		outcomes, runErr = sim.Run(ctx)
	}

	if err := h.transition(Aggregating); err != nil {
		return Result{}, err
	}
	target := req.Target
	if target == "" {
		target = SimulatedTarget
	}
	doc := report.Build(target, entries, outcomes)
	if err := h.transition(Reported); err != nil {
		return Result{}, err
	}
	return Result{Document: doc, Samples: samples}, runErr
}

// setup validates the request and probes the target. Every error it returns
// is a *Fault.
func (h *Harness) setup(ctx context.Context, req Request) (*runner.Generator, error) {
	opts := append([]runner.Option{runner.WithDrainHook(h.onDrain)}, h.genOpts...)
	gen, err := runner.NewGenerator(req.Runner, h.env, opts...)
	if err != nil {
		return nil, h.fail("config", err)
	}

	switch req.Mode {
	case runner.ModeLoad:
		if req.Users < 1 {
			return nil, h.fail("config", fmt.Errorf("users must be positive, got %d", req.Users))
		}
		if req.RequestsPerUser < 0 {
			return nil, h.fail("config", fmt.Errorf("requests per user must not be negative"))
		}
	case runner.ModeStress:
		if _, err := runner.Steps(req.MaxUsers, req.Step); err != nil {
			return nil, h.fail("config", err)
		}
	case runner.ModeEndurance:
		if _, err := req.Runner.EnduranceOperation(); err != nil {
			return nil, h.fail("config", err)
		}
		if req.Duration <= 0 || req.RPS <= 0 {
			return nil, h.fail("config", fmt.Errorf("endurance needs a positive duration and rate"))
		}
	default:
		return nil, h.fail("config", fmt.Errorf("unknown mode %q", req.Mode))
	}

	if Probeable(req.Target) {
		timeout := req.ProbeTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		if err := Probe(ctx, h.client, req.Target, req.Endpoint, timeout); err != nil {
			return nil, h.fail("probe", err)
		}
		h.logger.Info("target reachable", zap.String("target", req.Target))
	}
	return gen, nil
}

func (h *Harness) onDrain() {
	if h.State() == Running {
		_ = h.transition(AwaitingCompletion)
	}
}

func (h *Harness) dispatch(ctx context.Context, gen *runner.Generator, req Request) ([]report.Entry, []stats.Sample, error) {
	switch req.Mode {
	case runner.ModeStress:
		steps, err := gen.RunStress(ctx, req.MaxUsers, req.Step)
		var samples []stats.Sample
		for _, s := range steps {
			samples = append(samples, s.Samples...)
		}
		return report.StressEntries(steps), samples, err

	case runner.ModeEndurance:
		res, err := gen.RunEndurance(ctx, req.Duration, req.RPS)
		return []report.Entry{report.EnduranceEntry(res)}, res.Samples, err

	default:
		meta := runner.NewMetadata(runner.ModeLoad)
		meta.Concurrency = req.Users
		meta.RequestsPerUser = req.RequestsPerUser
		users, elapsed, err := gen.RunLoad(ctx, req.Users, req.RequestsPerUser)
		samples := runner.MergeUsers(users)
		return []report.Entry{report.LoadEntry(meta, stats.Aggregate(samples, elapsed))}, samples, err
	}
}
