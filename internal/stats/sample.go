// Package stats reduces raw request samples into aggregate reports and keeps
// approximate live counters for progress displays.
package stats

import (
	"time"

	"shakeout/internal/ops"
)

// Sample is one executed operation as seen by the virtual user.
type Sample struct {
	Operation string        `json:"operation"`
	Duration  time.Duration `json:"duration"`
	Succeeded bool          `json:"succeeded"`
	ErrorKind ops.Kind      `json:"errorKind,omitempty"`
	Attempts  int           `json:"attempts"`
	UserID    int           `json:"userId"`
	Timestamp time.Time     `json:"timestamp"`
}

// Observer receives samples as they are produced. Implementations must be
// safe for concurrent use.
type Observer interface {
	Observe(Sample)
}

// Observers fans a sample out to several observers.
type Observers []Observer

func (o Observers) Observe(s Sample) {
	for _, obs := range o {
		obs.Observe(s)
	}
}
