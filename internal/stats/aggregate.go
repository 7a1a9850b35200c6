package stats

import (
	"sort"
	"time"

	"shakeout/internal/ops"
)

// Report is the derived summary of one run or one stress step. Latencies are
// in milliseconds.
type Report struct {
	TotalRequests      int              `json:"totalRequests"`
	SuccessfulRequests int              `json:"successfulRequests"`
	FailedRequests     int              `json:"failedRequests"`
	SuccessRate        float64          `json:"successRate"`
	DurationSeconds    float64          `json:"durationSeconds"`
	RequestsPerSecond  float64          `json:"requestsPerSecond"`
	MinMs              float64          `json:"minResponseTime"`
	MaxMs              float64          `json:"maxResponseTime"`
	AvgMs              float64          `json:"avgResponseTime"`
	MedianMs           float64          `json:"medianResponseTime"`
	P95Ms              float64          `json:"p95ResponseTime"`
	P99Ms              float64          `json:"p99ResponseTime"`
	RetriedRequests    int              `json:"retriedRequests"`
	ErrorsByKind       map[ops.Kind]int `json:"errorsByKind"`
}

// Aggregate reduces the full sample set of a run. Percentiles are computed
// over all samples sorted together, never per worker. The input slice is not
// reordered.
func Aggregate(samples []Sample, elapsed time.Duration) Report {
	r := Report{
		TotalRequests:   len(samples),
		DurationSeconds: elapsed.Seconds(),
		ErrorsByKind:    map[ops.Kind]int{},
	}
	if len(samples) == 0 {
		return r
	}

	durations := make([]float64, len(samples))
	var sum float64
	for i, s := range samples {
		if s.Succeeded {
			r.SuccessfulRequests++
		} else {
			r.FailedRequests++
			kind := s.ErrorKind
			if kind == ops.KindNone {
				kind = ops.KindUnknown
			}
			r.ErrorsByKind[kind]++
		}
		if s.Attempts > 1 {
			r.RetriedRequests++
		}
		ms := toMs(s.Duration)
		durations[i] = ms
		sum += ms
	}
	sort.Float64s(durations)

	r.SuccessRate = float64(r.SuccessfulRequests) / float64(r.TotalRequests) * 100
	if elapsed > 0 {
		r.RequestsPerSecond = float64(r.TotalRequests) / elapsed.Seconds()
	}
	r.MinMs = durations[0]
	r.MaxMs = durations[len(durations)-1]
	r.AvgMs = sum / float64(len(durations))
	r.MedianMs = Percentile(durations, 50)
	r.P95Ms = Percentile(durations, 95)
	r.P99Ms = Percentile(durations, 99)
	return r
}

// Percentile returns the p-th percentile of an ascending slice using linear
// interpolation between the two closest ranks. An empty slice yields 0.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}

	index := (p / 100) * float64(n-1)
	lower := int(index)
	upper := lower + 1
	if upper >= n {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Merge concatenates per-worker sample sets in worker order.
func Merge(sets ...[]Sample) []Sample {
	total := 0
	for _, s := range sets {
		total += len(s)
	}
	out := make([]Sample, 0, total)
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
