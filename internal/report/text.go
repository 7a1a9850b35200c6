package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"shakeout/internal/ops"
	"shakeout/internal/runner"
	"shakeout/internal/scenario"
)

const rule = "======================================================================"

var (
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
)

// Text renders the human-readable report.
func (d Document) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "\n%s\n", headingStyle.Render("📊 RESILIENCE TEST RESULTS"))
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "Run ID         : %s\n", d.RunID)
	fmt.Fprintf(&b, "Target         : %s\n", d.Target)
	fmt.Fprintf(&b, "Timestamp      : %s\n", d.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "Tests          : %d\n", d.Summary.TotalTests)
	fmt.Fprintf(&b, "Total Requests : %d\n", d.Summary.TotalRequests)
	fmt.Fprintf(&b, "Failures       : %d\n", d.Summary.TotalFailures)
	fmt.Fprintf(&b, "Avg Success    : %.2f%%\n", d.Summary.AvgSuccessRate)
	fmt.Fprintf(&b, "Avg Response   : %.2f ms\n", d.Summary.AvgResponseTime)
	fmt.Fprintf(&b, "Max Response   : %.2f ms\n", d.Summary.MaxResponseTime)

	for i, e := range d.DetailedResults {
		fmt.Fprintf(&b, "\n%s\n", headingStyle.Render(fmt.Sprintf("⏱️  %s", entryTitle(i, e))))
		fmt.Fprintf(&b, "   Requests : %d (ok %d, failed %d, retried %d)\n",
			e.TotalRequests, e.SuccessfulRequests, e.FailedRequests, e.RetriedRequests)
		fmt.Fprintf(&b, "   Success  : %.2f%%\n", e.SuccessRate)
		fmt.Fprintf(&b, "   RPS      : %.2f", e.RequestsPerSecond)
		if e.Mode == runner.ModeEndurance {
			fmt.Fprintf(&b, " (target %.2f, actual %.2f)", e.TargetRPS, e.ActualRPS)
		}
		fmt.Fprintf(&b, "\n")
		fmt.Fprintf(&b, "   Min/Avg/Max : %.2f / %.2f / %.2f ms\n", e.MinMs, e.AvgMs, e.MaxMs)
		fmt.Fprintf(&b, "   P50/P95/P99 : %.2f / %.2f / %.2f ms\n", e.MedianMs, e.P95Ms, e.P99Ms)
	}

	fmt.Fprintf(&b, "\n%s\n", headingStyle.Render("❌ FAILURE SUMMARY"))
	if len(d.Summary.ErrorsByKind) == 0 {
		fmt.Fprintf(&b, "   none\n")
	}
	for _, k := range sortedKinds(d.Summary.ErrorsByKind) {
		fmt.Fprintf(&b, "   %d x %s\n", d.Summary.ErrorsByKind[k], k)
	}

	if len(d.FailureScenarios) > 0 {
		fmt.Fprintf(&b, "\n%s\n", headingStyle.Render("🧪 FAILURE SCENARIOS"))
		for _, o := range d.FailureScenarios {
			status := okStyle.Render(string(o.Status))
			if o.Status != scenario.StatusRecovered {
				status = failStyle.Render(string(o.Status))
			}
			fmt.Fprintf(&b, "   %-20s %s after %d attempt(s): %s\n", o.Name, status, o.Attempts, o.Message)
		}
	}
	fmt.Fprintf(&b, "%s\n", rule)
	return b.String()
}

func entryTitle(i int, e Entry) string {
	switch e.Mode {
	case runner.ModeStress:
		return fmt.Sprintf("STRESS STEP %d: %d users x %d requests", i+1, e.Concurrency, e.RequestsPerUser)
	case runner.ModeEndurance:
		return fmt.Sprintf("ENDURANCE: %s for %.0fs", e.Operation, e.PlannedSeconds)
	default:
		if e.RequestsPerUser == 0 {
			return fmt.Sprintf("LOAD: %d users x random requests", e.Concurrency)
		}
		return fmt.Sprintf("LOAD: %d users x %d requests", e.Concurrency, e.RequestsPerUser)
	}
}

func sortedKinds(m map[ops.Kind]int) []ops.Kind {
	kinds := make([]ops.Kind, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if m[kinds[i]] != m[kinds[j]] {
			return m[kinds[i]] > m[kinds[j]]
		}
		return kinds[i] < kinds[j]
	})
	return kinds
}
