package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shakeout/internal/ops"
	"shakeout/internal/runner"
	"shakeout/internal/scenario"
	"shakeout/internal/stats"
)

func sampleEntries() []Entry {
	load := runner.NewMetadata(runner.ModeLoad)
	load.Concurrency, load.RequestsPerUser = 10, 5
	endurance := runner.NewMetadata(runner.ModeEndurance)
	endurance.Operation, endurance.TargetRPS, endurance.PlannedSeconds = "create_item", 20, 60

	return []Entry{
		LoadEntry(load, stats.Report{
			TotalRequests: 50, SuccessfulRequests: 45, FailedRequests: 5,
			SuccessRate: 90, AvgMs: 100, MaxMs: 400,
			ErrorsByKind: map[ops.Kind]int{ops.KindTimeout: 3, ops.KindInternal: 2},
		}),
		EnduranceEntry(runner.EnduranceResult{
			Metadata: endurance,
			Report: stats.Report{
				TotalRequests: 100, SuccessfulRequests: 99, FailedRequests: 1,
				SuccessRate: 99, AvgMs: 200, MaxMs: 900,
				ErrorsByKind: map[ops.Kind]int{ops.KindTimeout: 1},
			},
			TargetRPS: 20,
			ActualRPS: 19.5,
		}),
	}
}

func TestBuildSummary(t *testing.T) {
	doc := Build("http://localhost:8080", sampleEntries(), nil)

	assert.NotEmpty(t, doc.RunID)
	assert.Equal(t, 2, doc.Summary.TotalTests)
	assert.InDelta(t, 94.5, doc.Summary.AvgSuccessRate, 1e-9)
	assert.InDelta(t, 150.0, doc.Summary.AvgResponseTime, 1e-9)
	assert.Equal(t, 900.0, doc.Summary.MaxResponseTime)
	assert.Equal(t, 150, doc.Summary.TotalRequests)
	assert.Equal(t, 6, doc.Summary.TotalFailures)
	assert.Equal(t, map[ops.Kind]int{ops.KindTimeout: 4, ops.KindInternal: 2}, doc.Summary.ErrorsByKind)
}

func TestBuildEmpty(t *testing.T) {
	doc := Build("sim://local", nil, nil)

	assert.Zero(t, doc.Summary.TotalTests)
	assert.Zero(t, doc.Summary.AvgSuccessRate)
	assert.NotNil(t, doc.DetailedResults)
	assert.NotNil(t, doc.Summary.ErrorsByKind)
}

func TestDocumentJSON(t *testing.T) {
	outcomes := []scenario.Outcome{{Name: "rate_limit", Status: scenario.StatusRecovered, Attempts: 2}}
	doc := Build("http://localhost:8080", sampleEntries(), outcomes)

	data, err := doc.JSON()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"runId", "timestamp", "target", "summary", "detailedResults", "failureScenarios"} {
		assert.Contains(t, raw, key)
	}

	summary := raw["summary"].(map[string]any)
	for _, key := range []string{"totalTests", "avgSuccessRate", "avgResponseTime", "maxResponseTime", "totalRequests", "totalFailures", "errorsByKind"} {
		assert.Contains(t, summary, key)
	}

	results := raw["detailedResults"].([]any)
	require.Len(t, results, 2)
	load := results[0].(map[string]any)
	for _, key := range []string{"runId", "mode", "concurrentUsers", "totalRequests", "successRate", "p95ResponseTime", "p99ResponseTime", "errorsByKind"} {
		assert.Contains(t, load, key)
	}
	assert.NotContains(t, load, "actualRequestsPerSecond")
	endurance := results[1].(map[string]any)
	assert.Equal(t, 19.5, endurance["actualRequestsPerSecond"])
	assert.Equal(t, 20.0, endurance["targetRequestsPerSecond"])
}

func TestErrorsByKindAlwaysPresent(t *testing.T) {
	entry := LoadEntry(runner.NewMetadata(runner.ModeLoad), stats.Aggregate([]stats.Sample{{Succeeded: true}}, time.Second))
	data, err := Build("sim://local", []Entry{entry}, nil).JSON()
	require.NoError(t, err)

	assert.Contains(t, string(data), `"errorsByKind": {}`)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	doc := Build("http://localhost:8080", sampleEntries(), nil)

	require.NoError(t, doc.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var back Document
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, doc.RunID, back.RunID)
	assert.Equal(t, 150, back.Summary.TotalRequests)
}

func TestWriteSamplesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.csv")
	samples := []stats.Sample{
		{Operation: "create_item", Duration: 12 * time.Millisecond, Succeeded: true, Attempts: 1, UserID: 3, Timestamp: time.UnixMilli(1700000000000)},
		{Operation: "upload_file", Duration: 900 * time.Millisecond, ErrorKind: ops.KindTimeout, Attempts: 4, UserID: 1},
	}

	require.NoError(t, WriteSamplesCSV(path, samples))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "timeStamp", rows[0][0])
	assert.Equal(t, []string{"1700000000000", "12", "create_item", "200", "OK", "User-3", "true", "", "1"}, rows[1])
	assert.Equal(t, "timeout", rows[2][7])
	assert.Equal(t, "4", rows[2][8])
}

func TestText(t *testing.T) {
	outcomes := []scenario.Outcome{
		{Name: "rate_limit", Status: scenario.StatusRecovered, Attempts: 2, Message: "recovered"},
		{Name: "timeout", Status: scenario.StatusFailed, Attempts: 1, Message: "gave up"},
	}
	text := Build("http://localhost:8080", sampleEntries(), outcomes).Text()

	assert.Contains(t, text, "Total Requests : 150")
	assert.Contains(t, text, "LOAD: 10 users x 5 requests")
	assert.Contains(t, text, "ENDURANCE: create_item for 60s")
	assert.Contains(t, text, "actual 19.50")
	assert.Contains(t, text, "4 x timeout")
	assert.Contains(t, text, "2 x internal")
	assert.Contains(t, text, "rate_limit")
	assert.Contains(t, text, "gave up")
}
