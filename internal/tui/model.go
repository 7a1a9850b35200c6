// Package tui renders the live run dashboard.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"shakeout/internal/stats"
	"shakeout/internal/tui/components"
	"shakeout/internal/tui/styles"
)

const tickInterval = 200 * time.Millisecond

type snapshotMsg stats.Snapshot

type doneMsg struct{}

// Model is the bubbletea model of the dashboard.
type Model struct {
	Title    string
	Plan     stats.Plan
	Stats    stats.Snapshot
	Progress progress.Model

	RpsLine     components.Sparkline
	LatencyLine components.Sparkline

	LastUpdate time.Time
	LastReqs   uint64

	Width    int
	Quitting bool
	Finished bool

	cancel func()
}

// NewModel builds the dashboard. cancel is called when the user quits early.
func NewModel(title string, plan stats.Plan, cancel func()) Model {
	return Model{
		Title:       title,
		Plan:        plan,
		Progress:    progress.New(progress.WithDefaultGradient()),
		RpsLine:     components.NewSparkline(40, "RPS", styles.Active),
		LatencyLine: components.NewSparkline(40, "Latency P90 (ms)", styles.Warn),
		LastUpdate:  time.Now(),
		cancel:      cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		now := time.Now()
		dt := now.Sub(m.LastUpdate).Seconds()
		if dt < 0.01 {
			dt = 0.01
		}

		snap := stats.Snapshot(msg)
		m.RpsLine.Add(float64(snap.Requests-m.LastReqs) / dt)
		m.LatencyLine.Add(snap.P90Ms)

		m.Stats = snap
		m.LastReqs = snap.Requests
		m.LastUpdate = now
		return m, m.Progress.SetPercent(m.Plan.Fraction(snap))

	case doneMsg:
		m.Finished = true
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.Quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Progress.Width = msg.Width - 4

		half := (msg.Width / 2) - 4
		if half < 10 {
			half = 10
		}
		m.RpsLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.Quitting {
		return "Stopping run, aggregating partial results...\n"
	}

	s := strings.Builder{}
	s.WriteString(styles.Title.Render(m.Title))
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render(fmt.Sprintf("Elapsed: %s", m.Stats.Elapsed.Round(time.Second))))
	s.WriteString("\n\n")

	errRate := m.Stats.ErrorRate()
	col1 := fmt.Sprintf("REQ: %d\nRPS: %.1f", m.Stats.Requests, m.Stats.RPS())
	col2 := fmt.Sprintf("ERR: %.2f%%\nFAIL: %d", errRate, m.Stats.Fail)
	col3 := fmt.Sprintf("OK: %d\nRETRIED: %d", m.Stats.Success, m.Stats.Retried)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(styles.ErrorRate(errRate).Render(col2)),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RpsLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	latencies := fmt.Sprintf(
		"P50: %.2f ms  |  P90: %.2f ms  |  P99: %.2f ms  |  Max: %.2f ms",
		m.Stats.P50Ms, m.Stats.P90Ms, m.Stats.P99Ms, m.Stats.MaxMs,
	)
	s.WriteString(styles.Box.Render(latencies))
	s.WriteString("\n\n")
	s.WriteString(m.Progress.View())
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render("Press q to stop"))
	return s.String()
}

// Run shows the dashboard until done is closed or the user quits. Quitting
// calls cancel so the run can wind down.
func Run(ctx context.Context, live *stats.Live, title string, plan stats.Plan, cancel func(), done <-chan struct{}) error {
	p := tea.NewProgram(NewModel(title, plan, cancel), tea.WithAltScreen(), tea.WithContext(ctx))

	updates := make(chan stats.Snapshot, 10)
	tickCtx, stop := context.WithCancel(ctx)
	defer stop()
	live.StartTickLoop(tickCtx, tickInterval, updates)

	go func() {
		for {
			select {
			case s := <-updates:
				p.Send(snapshotMsg(s))
			case <-done:
				p.Send(snapshotMsg(live.Snapshot()))
				p.Send(doneMsg{})
				return
			case <-tickCtx.Done():
				return
			}
		}
	}()

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
