package runner

import (
	"fmt"
	"time"

	"shakeout/internal/ops"
)

// Mode selects how the generator drives virtual users.
type Mode string

const (
	ModeLoad      Mode = "load"
	ModeStress    Mode = "stress"
	ModeEndurance Mode = "endurance"
)

// Config controls how virtual users pick and pace operations. Values are
// read-only once the generator is built.
type Config struct {
	Catalog ops.Catalog
	// Weighted switches selection from uniform to catalog weights.
	Weighted bool
	// Operation is the single operation issued in endurance mode. Empty
	// means the first catalog entry.
	Operation string

	// Per-user operation count when RunLoad is given zero.
	MinOps int
	MaxOps int

	ThinkMin time.Duration
	ThinkMax time.Duration

	StressRequestsPerUser int
	SettleTime            time.Duration

	// Retry wraps every operation in the policy named by its catalog entry.
	Retry bool
	// Seed makes worker randomness reproducible when non-zero.
	Seed int64
}

func DefaultConfig() Config {
	return Config{
		Catalog:               ops.DefaultCatalog(),
		MinOps:                10,
		MaxOps:                50,
		ThinkMin:              100 * time.Millisecond,
		ThinkMax:              500 * time.Millisecond,
		StressRequestsPerUser: 5,
		SettleTime:            2 * time.Second,
		Retry:                 true,
	}
}

func (c Config) Validate() error {
	if err := c.Catalog.Validate(); err != nil {
		return err
	}
	if c.Operation != "" {
		if _, ok := c.Catalog.Lookup(c.Operation); !ok {
			return fmt.Errorf("operation %q is not in the catalog", c.Operation)
		}
	}
	if c.MinOps < 1 || c.MaxOps < c.MinOps {
		return fmt.Errorf("operations per user must satisfy 1 <= min (%d) <= max (%d)", c.MinOps, c.MaxOps)
	}
	if c.ThinkMin < 0 || c.ThinkMax < c.ThinkMin {
		return fmt.Errorf("think time must satisfy 0 <= min (%s) <= max (%s)", c.ThinkMin, c.ThinkMax)
	}
	if c.StressRequestsPerUser < 1 {
		return fmt.Errorf("stress requests per user must be positive")
	}
	if c.SettleTime < 0 {
		return fmt.Errorf("settle time must not be negative")
	}
	return nil
}

// EnduranceOperation resolves the operation used in endurance mode.
func (c Config) EnduranceOperation() (ops.Spec, error) {
	if c.Operation == "" {
		if len(c.Catalog) == 0 {
			return ops.Spec{}, fmt.Errorf("catalog is empty")
		}
		return c.Catalog[0], nil
	}
	s, ok := c.Catalog.Lookup(c.Operation)
	if !ok {
		return ops.Spec{}, fmt.Errorf("operation %q is not in the catalog", c.Operation)
	}
	return s, nil
}

// Metadata describes one measured run or stress step.
type Metadata struct {
	RunID           string        `json:"runId"`
	Mode            Mode          `json:"mode"`
	Concurrency     int           `json:"concurrentUsers,omitempty"`
	RequestsPerUser int           `json:"requestsPerUser,omitempty"`
	Operation       string        `json:"operation,omitempty"`
	TargetRPS       float64       `json:"targetRequestsPerSecond,omitempty"`
	Duration        time.Duration `json:"-"`
	PlannedSeconds  float64       `json:"plannedDurationSeconds,omitempty"`
	StartedAt       time.Time     `json:"startedAt"`
}
