package stats

import (
	"context"
	"sync/atomic"
	"time"
)

// Live holds approximate real-time counters for progress output. It is fed
// through Observe and is never used to build the final report.
type Live struct {
	requests uint64
	success  uint64
	fail     uint64
	retried  uint64
	started  time.Time

	// Latency histogram (microseconds)
	latency *SafeHistogram
}

func NewLive() *Live {
	return &Live{latency: NewSafeHistogram(), started: time.Now()}
}

// Observe implements Observer.
func (l *Live) Observe(s Sample) {
	atomic.AddUint64(&l.requests, 1)
	if s.Succeeded {
		atomic.AddUint64(&l.success, 1)
	} else {
		atomic.AddUint64(&l.fail, 1)
	}
	if s.Attempts > 1 {
		atomic.AddUint64(&l.retried, 1)
	}
	l.latency.RecordDuration(s.Duration)
}

// Snapshot is a point-in-time copy for the UI.
type Snapshot struct {
	Requests uint64
	Success  uint64
	Fail     uint64
	Retried  uint64
	Elapsed  time.Duration

	// Pre-calculated percentiles for the UI (cheap copy)
	P50Ms float64
	P90Ms float64
	P99Ms float64
	MaxMs float64
}

// ErrorRate is the failure percentage so far.
func (s Snapshot) ErrorRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Fail) / float64(s.Requests) * 100
}

// RPS is the observed request rate since the live stats were created.
func (s Snapshot) RPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Requests) / s.Elapsed.Seconds()
}

func (l *Live) Snapshot() Snapshot {
	return Snapshot{
		Requests: atomic.LoadUint64(&l.requests),
		Success:  atomic.LoadUint64(&l.success),
		Fail:     atomic.LoadUint64(&l.fail),
		Retried:  atomic.LoadUint64(&l.retried),
		Elapsed:  time.Since(l.started),
		P50Ms:    l.latency.QuantileMs(50),
		P90Ms:    l.latency.QuantileMs(90),
		P99Ms:    l.latency.QuantileMs(99),
		MaxMs:    l.latency.MaxMs(),
	}
}

// StartTickLoop pushes a snapshot to updates every interval until ctx is
// done. Sends never block; a full channel drops the update.
func (l *Live) StartTickLoop(ctx context.Context, interval time.Duration, updates chan<- Snapshot) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case updates <- l.Snapshot():
				default:
				}
			}
		}
	}()
}

// Plan is the expected size of a run, used to render progress.
type Plan struct {
	// Expected is the total number of requests when it is known up front.
	Expected uint64
	// Duration is the planned wall-clock length of a timed run.
	Duration time.Duration
}

// Fraction estimates completion in [0,1].
func (p Plan) Fraction(s Snapshot) float64 {
	var f float64
	switch {
	case p.Expected > 0:
		f = float64(s.Requests) / float64(p.Expected)
	case p.Duration > 0:
		f = float64(s.Elapsed) / float64(p.Duration)
	}
	if f > 1 {
		return 1
	}
	return f
}
