// Package report turns aggregated runs into the final JSON document, the
// human-readable summary and optional raw-sample exports.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"shakeout/internal/ops"
	"shakeout/internal/runner"
	"shakeout/internal/scenario"
	"shakeout/internal/stats"
)

// Entry is one element of detailedResults: the run metadata and its
// aggregate side by side.
type Entry struct {
	runner.Metadata
	stats.Report
	ActualRPS float64 `json:"actualRequestsPerSecond,omitempty"`
}

// Summary rolls every entry of the document up.
type Summary struct {
	TotalTests      int              `json:"totalTests"`
	AvgSuccessRate  float64          `json:"avgSuccessRate"`
	AvgResponseTime float64          `json:"avgResponseTime"`
	MaxResponseTime float64          `json:"maxResponseTime"`
	TotalRequests   int              `json:"totalRequests"`
	TotalFailures   int              `json:"totalFailures"`
	ErrorsByKind    map[ops.Kind]int `json:"errorsByKind"`
}

// Document is the structured report of a harness invocation.
type Document struct {
	RunID            string             `json:"runId"`
	Timestamp        time.Time          `json:"timestamp"`
	Target           string             `json:"target"`
	Summary          Summary            `json:"summary"`
	DetailedResults  []Entry            `json:"detailedResults"`
	FailureScenarios []scenario.Outcome `json:"failureScenarios,omitempty"`
}

// Build assembles the document. Response times are in milliseconds.
func Build(target string, entries []Entry, scenarios []scenario.Outcome) Document {
	if entries == nil {
		entries = []Entry{}
	}
	return Document{
		RunID:            uuid.NewString(),
		Timestamp:        time.Now().UTC(),
		Target:           target,
		Summary:          summarize(entries),
		DetailedResults:  entries,
		FailureScenarios: scenarios,
	}
}

func summarize(entries []Entry) Summary {
	s := Summary{TotalTests: len(entries), ErrorsByKind: map[ops.Kind]int{}}
	if len(entries) == 0 {
		return s
	}
	var rate, avg float64
	for _, e := range entries {
		rate += e.SuccessRate
		avg += e.AvgMs
		if e.MaxMs > s.MaxResponseTime {
			s.MaxResponseTime = e.MaxMs
		}
		s.TotalRequests += e.TotalRequests
		s.TotalFailures += e.FailedRequests
		for k, n := range e.ErrorsByKind {
			s.ErrorsByKind[k] += n
		}
	}
	s.AvgSuccessRate = rate / float64(len(entries))
	s.AvgResponseTime = avg / float64(len(entries))
	return s
}

// LoadEntry wraps a load run.
func LoadEntry(meta runner.Metadata, r stats.Report) Entry {
	return Entry{Metadata: meta, Report: r}
}

// StressEntries wraps every stress step.
func StressEntries(steps []runner.StepResult) []Entry {
	out := make([]Entry, len(steps))
	for i, s := range steps {
		out[i] = Entry{Metadata: s.Metadata, Report: s.Report}
	}
	return out
}

// EnduranceEntry wraps an endurance run and its achieved rate.
func EnduranceEntry(res runner.EnduranceResult) Entry {
	return Entry{Metadata: res.Metadata, Report: res.Report, ActualRPS: res.ActualRPS}
}

// JSON renders the document with indentation.
func (d Document) JSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// WriteFile writes the document as indented JSON.
func (d Document) WriteFile(path string) error {
	data, err := d.JSON()
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report '%s': %w", path, err)
	}
	return nil
}
