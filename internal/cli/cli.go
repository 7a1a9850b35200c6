// Package cli renders headless progress for runs without the dashboard.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"shakeout/internal/config"
	"shakeout/internal/stats"
)

const tickInterval = 200 * time.Millisecond

// PrintHeader describes the run about to start.
func PrintHeader(w io.Writer, s config.Settings) {
	target := s.URL
	if target == "" {
		target = "simulated"
	}

	fmt.Fprintf(w, "\n🚀 STARTING SHAKEOUT %s TEST\n", strings.ToUpper(s.Mode()))
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Target     : %s\n", target)
	switch s.Mode() {
	case "stress":
		fmt.Fprintf(w, "Users      : up to %d, step %d, %d requests each\n", s.MaxUsers, s.Step, s.StressRequests)
	case "endurance":
		fmt.Fprintf(w, "Rate       : %.1f req/s for %s\n", s.RPS, s.Duration)
	default:
		requests := fmt.Sprintf("%d", s.Requests)
		if s.Requests == 0 {
			requests = fmt.Sprintf("%d-%d", s.MinOps, s.MaxOps)
		}
		fmt.Fprintf(w, "Users      : %d x %s requests\n", s.Users, requests)
	}
	fmt.Fprintf(w, "Retry      : %t (scale %.2f)\n", s.Retry, s.RetryScale)
	fmt.Fprintf(w, "======================================================================\n\n")
}

// ProgressBar draws pct in [0,1] as a bar of width cells.
func ProgressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

// Line formats one progress update.
func Line(s stats.Snapshot, plan stats.Plan) string {
	pct := plan.Fraction(s)
	return fmt.Sprintf("\r%s %3.0f%% | %s | RPS: %.1f | OK: %d | Err: %d | Retried: %d",
		ProgressBar(pct, 20), pct*100,
		s.Elapsed.Round(time.Second),
		s.RPS(),
		s.Success,
		s.Fail,
		s.Retried,
	)
}

// Watch prints a progress line every tick until ctx is done, then a final
// line and a newline.
func Watch(ctx context.Context, w io.Writer, live *stats.Live, plan stats.Plan) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprint(w, Line(live.Snapshot(), plan))
			fmt.Fprintln(w)
			return
		case <-ticker.C:
			fmt.Fprint(w, Line(live.Snapshot(), plan))
		}
	}
}
