package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shakeout/internal/cli"
	"shakeout/internal/config"
	"shakeout/internal/harness"
	"shakeout/internal/report"
	"shakeout/internal/runner"
	"shakeout/internal/stats"
	"shakeout/internal/tui"
)

func runHarness(cmd *cobra.Command, s config.Settings, logger *zap.Logger) error {
	catalog, err := loadCatalog(s.Catalog)
	if err != nil {
		return err
	}

	req := buildRequest(s)
	req.Runner.Catalog = catalog

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	env := runner.NewEnv(logger, policies(s))
	mon := &monitor{settings: s, plan: planFor(s), cancelRun: cancelRun, logger: logger}
	h := harness.New(env, harness.WithStateHook(func(from, to harness.State) {
		switch to {
		case harness.Running:
			mon.start(runCtx, env)
		case harness.Aggregating, harness.Failed:
			mon.stop()
		}
	}))

	if !s.TUI {
		cli.PrintHeader(os.Stdout, s)
	}

	res, runErr := h.Run(runCtx, req)
	mon.stop()
	if errors.Is(runErr, harness.ErrHarnessFault) {
		return runErr
	}
	if h.State() != harness.Reported {
		return runErr
	}

	fmt.Print(res.Document.Text())

	if s.Output != "" {
		if err := res.Document.WriteFile(s.Output); err != nil {
			return err
		}
		fmt.Printf("\n💾 Report saved to %s\n", s.Output)
	}
	if s.SamplesCSV != "" {
		if err := report.WriteSamplesCSV(s.SamplesCSV, res.Samples); err != nil {
			return err
		}
		fmt.Printf("💾 Samples saved to %s\n", s.SamplesCSV)
	}

	if runErr != nil {
		logger.Warn("run interrupted, report covers completed work", zap.Error(runErr))
	}
	return nil
}

func buildRequest(s config.Settings) harness.Request {
	rc := runner.DefaultConfig()
	rc.Weighted = s.Weighted
	rc.Operation = s.Operation
	rc.MinOps = s.MinOps
	rc.MaxOps = s.MaxOps
	rc.ThinkMin = s.ThinkMin
	rc.ThinkMax = s.ThinkMax
	rc.StressRequestsPerUser = s.StressRequests
	rc.SettleTime = s.Settle
	rc.Retry = s.Retry
	rc.Seed = s.Seed

	return harness.Request{
		Mode:            runner.Mode(s.Mode()),
		Target:          s.URL,
		Endpoint:        s.Endpoint,
		Users:           s.Users,
		RequestsPerUser: s.Requests,
		MaxUsers:        s.MaxUsers,
		Step:            s.Step,
		Duration:        s.Duration,
		RPS:             s.RPS,
		Scenarios:       s.Scenarios,
		ProbeTimeout:    s.ProbeTimeout,
		Runner:          rc,
	}
}

// planFor estimates the size of the run for the progress display. Load runs
// with a random request count use the midpoint of the range.
func planFor(s config.Settings) stats.Plan {
	switch s.Mode() {
	case "endurance":
		return stats.Plan{Duration: s.Duration}
	case "stress":
		steps, err := runner.Steps(s.MaxUsers, s.Step)
		if err != nil {
			return stats.Plan{}
		}
		var total uint64
		for _, n := range steps {
			total += uint64(n * s.StressRequests)
		}
		return stats.Plan{Expected: total}
	default:
		per := s.Requests
		if per == 0 {
			per = (s.MinOps + s.MaxOps) / 2
		}
		return stats.Plan{Expected: uint64(s.Users * per)}
	}
}

// monitor runs the progress display and metrics endpoint while the harness
// is in flight.
type monitor struct {
	settings  config.Settings
	plan      stats.Plan
	cancelRun context.CancelFunc
	logger    *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	display sync.WaitGroup
	server  sync.WaitGroup
	started bool
}

func (m *monitor) start(ctx context.Context, env *runner.Env) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	if addr := m.settings.MetricsAddr; addr != "" {
		m.server.Add(1)
		go func() {
			defer m.server.Done()
			if err := env.Metrics.Serve(ctx, addr, m.logger); err != nil {
				m.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	m.display.Add(1)
	if m.settings.TUI {
		title := fmt.Sprintf("SHAKEOUT %s TEST", strings.ToUpper(m.settings.Mode()))
		done := m.done
		go func() {
			defer m.display.Done()
			if err := tui.Run(ctx, env.Live, title, m.plan, m.cancelRun, done); err != nil {
				m.logger.Error("dashboard failed", zap.Error(err))
			}
		}()
		return
	}
	go func() {
		defer m.display.Done()
		cli.Watch(ctx, os.Stdout, env.Live, m.plan)
	}()
}

// stop closes the display and waits for it. Safe to call more than once.
func (m *monitor) stop() {
	m.mu.Lock()
	if !m.started || m.cancel == nil {
		m.mu.Unlock()
		return
	}
	close(m.done)
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	// The dashboard quits on done; the progress line stops with its context.
	if !m.settings.TUI {
		cancel()
	}
	m.display.Wait()
	cancel()
	m.server.Wait()
}
