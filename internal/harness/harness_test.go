package harness

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"shakeout/internal/ops"
	"shakeout/internal/retry"
	"shakeout/internal/runner"
)

func testEnv() *runner.Env {
	return runner.NewEnv(zap.NewNop(), retry.DefaultRegistry().Scaled(0))
}

func instantRunner() runner.Config {
	cfg := runner.DefaultConfig()
	cfg.Catalog = ops.Catalog{{Name: "noop", Policy: retry.PolicyDatastore}}
	cfg.ThinkMin, cfg.ThinkMax = 0, 0
	cfg.SettleTime = 0
	cfg.Seed = 7
	return cfg
}

func loadRequest(target string) Request {
	return Request{
		Mode:            runner.ModeLoad,
		Target:          target,
		Endpoint:        "/health",
		Users:           10,
		RequestsPerUser: 5,
		ProbeTimeout:    time.Second,
		Runner:          instantRunner(),
	}
}

// countingBinder counts operation invocations across all workers.
func countingBinder(n *atomic.Int64) runner.Option {
	return runner.WithBinder(func(spec ops.Spec, _ *rand.Rand) ops.Func {
		return func(context.Context) error {
			n.Add(1)
			return nil
		}
	})
}

func TestHarness_LoadRun(t *testing.T) {
	// Arrange
	var seen []State
	h := New(testEnv(), WithStateHook(func(_, to State) { seen = append(seen, to) }))

	// Act
	res, err := h.Run(context.Background(), loadRequest(""))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, Reported, h.State())
	assert.Equal(t, []State{Idle, Running, AwaitingCompletion, Aggregating, Reported}, h.History())
	assert.Equal(t, []State{Running, AwaitingCompletion, Aggregating, Reported}, seen)
	assert.Equal(t, SimulatedTarget, res.Document.Target)
	require.Len(t, res.Document.DetailedResults, 1)
	entry := res.Document.DetailedResults[0]
	assert.Equal(t, 50, entry.TotalRequests)
	assert.Equal(t, 100.0, entry.SuccessRate)
	assert.Equal(t, 10, entry.Concurrency)
	assert.Len(t, res.Samples, 50)
}

func TestHarness_ReachableTarget(t *testing.T) {
	var probes atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		probes.Add(1)
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := New(testEnv(), WithHTTPClient(srv.Client()))
	res, err := h.Run(context.Background(), loadRequest(srv.URL))

	require.NoError(t, err)
	assert.Equal(t, Reported, h.State())
	assert.Equal(t, srv.URL, res.Document.Target)
	assert.Equal(t, int64(1), probes.Load())
}

func TestHarness_UnreachableTarget(t *testing.T) {
	// Arrange
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()
	var calls atomic.Int64
	h := New(testEnv(), WithGeneratorOptions(countingBinder(&calls)))

	// Act
	_, err := h.Run(context.Background(), loadRequest(target))

	// Assert
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHarnessFault)
	var fault *Fault
	require.True(t, errors.As(err, &fault))
	assert.Equal(t, "probe", fault.Stage)
	assert.Equal(t, Failed, h.State())
	assert.Equal(t, []State{Idle, Failed}, h.History())
	assert.Zero(t, calls.Load(), "no worker may start")
}

func TestHarness_UnhealthyTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h := New(testEnv(), WithHTTPClient(srv.Client()))
	_, err := h.Run(context.Background(), loadRequest(srv.URL))

	assert.ErrorIs(t, err, ErrHarnessFault)
	assert.Equal(t, Failed, h.State())
}

func TestHarness_InvalidConfig(t *testing.T) {
	cases := map[string]func(*Request){
		"stress step":        func(r *Request) { r.Mode, r.MaxUsers, r.Step = runner.ModeStress, 10, 0 },
		"endurance op":       func(r *Request) { r.Mode, r.Duration, r.RPS, r.Runner.Operation = runner.ModeEndurance, time.Second, 5, "missing" },
		"endurance rate":     func(r *Request) { r.Mode, r.Duration, r.RPS = runner.ModeEndurance, time.Second, 0 },
		"no users":           func(r *Request) { r.Users = 0 },
		"empty catalog":      func(r *Request) { r.Runner.Catalog = nil },
		"unknown mode":       func(r *Request) { r.Mode = "soak" },
		"bad retry policies": func(r *Request) {},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			env := testEnv()
			if name == "bad retry policies" {
				env = runner.NewEnv(zap.NewNop(), retry.NewRegistry("missing"))
			}
			req := loadRequest("")
			mutate(&req)

			h := New(env)
			_, err := h.Run(context.Background(), req)

			assert.ErrorIs(t, err, ErrHarnessFault)
			assert.Equal(t, Failed, h.State())
		})
	}
}

func TestHarness_SingleUse(t *testing.T) {
	h := New(testEnv())
	_, err := h.Run(context.Background(), loadRequest(""))
	require.NoError(t, err)

	_, err = h.Run(context.Background(), loadRequest(""))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrHarnessFault)
}

func TestHarness_StressWithScenarios(t *testing.T) {
	req := loadRequest("")
	req.Mode = runner.ModeStress
	req.MaxUsers, req.Step = 20, 10
	req.Scenarios = true

	h := New(testEnv())
	res, err := h.Run(context.Background(), req)

	require.NoError(t, err)
	require.Len(t, res.Document.DetailedResults, 2)
	assert.Equal(t, 20, res.Document.DetailedResults[1].Concurrency)
	assert.Equal(t, 2, res.Document.Summary.TotalTests)
	assert.Equal(t, 150, res.Document.Summary.TotalRequests)
	assert.Len(t, res.Document.FailureScenarios, 4)
	assert.Equal(t, []State{Idle, Running, AwaitingCompletion, Aggregating, Reported}, h.History())
}

func TestHarness_Endurance(t *testing.T) {
	req := loadRequest("")
	req.Mode = runner.ModeEndurance
	req.Duration = 300 * time.Millisecond
	req.RPS = 20

	h := New(testEnv())
	res, err := h.Run(context.Background(), req)

	require.NoError(t, err)
	require.Len(t, res.Document.DetailedResults, 1)
	entry := res.Document.DetailedResults[0]
	assert.Equal(t, runner.ModeEndurance, entry.Mode)
	assert.Equal(t, "noop", entry.Operation)
	assert.Greater(t, entry.ActualRPS, 0.0)
}

func TestHarness_CancelledRunStillReports(t *testing.T) {
	req := loadRequest("")
	req.Runner.ThinkMin, req.Runner.ThinkMax = time.Hour, time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	h := New(testEnv())
	res, err := h.Run(ctx, req)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrHarnessFault)
	assert.Equal(t, Reported, h.State())
	assert.Equal(t, 10, res.Document.Summary.TotalRequests)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(Idle, Running))
	assert.True(t, CanTransition(Idle, Failed))
	assert.True(t, CanTransition(Aggregating, Reported))
	assert.False(t, CanTransition(Idle, Reported))
	assert.False(t, CanTransition(Running, Failed))
	assert.False(t, CanTransition(Reported, Running))
	assert.False(t, CanTransition(Failed, Idle))
	assert.True(t, Reported.Terminal())
	assert.Equal(t, "awaiting_completion", AwaitingCompletion.String())
}

func TestProbeable(t *testing.T) {
	assert.True(t, Probeable("http://localhost:8080"))
	assert.True(t, Probeable("https://example.com/api"))
	assert.False(t, Probeable(""))
	assert.False(t, Probeable("sim://local"))
	assert.False(t, Probeable("localhost:8080"))
}
