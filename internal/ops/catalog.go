package ops

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Catalog is the ordered set of operations a run draws from.
type Catalog []Spec

// DefaultCatalog mirrors the workload mix of the collaborators being
// simulated: item creation, messaging, file transfer, a conflict-prone move
// and an approval step.
func DefaultCatalog() Catalog {
	return Catalog{
		{
			Name:               "create_item",
			LatencyMin:         50 * time.Millisecond,
			LatencyMax:         200 * time.Millisecond,
			FailureProbability: 0.05,
			FailureKind:        KindInternal,
			Policy:             "datastore",
			Weight:             3,
		},
		{
			Name:               "send_message",
			LatencyMin:         100 * time.Millisecond,
			LatencyMax:         500 * time.Millisecond,
			FailureProbability: 0.02,
			FailureKind:        KindRateLimit,
			Policy:             "inference",
			Weight:             2,
		},
		{
			Name:               "upload_file",
			LatencyMin:         200 * time.Millisecond,
			LatencyMax:         time.Second,
			FailureProbability: 0.03,
			FailureKind:        KindTimeout,
			Policy:             "file_transfer",
			Weight:             1,
		},
		{
			Name:               "move_item",
			LatencyMin:         50 * time.Millisecond,
			LatencyMax:         150 * time.Millisecond,
			FailureProbability: 0.01,
			FailureKind:        KindConflict,
			Policy:             "datastore",
			Weight:             2,
		},
		{
			Name:               "approve_item",
			LatencyMin:         100 * time.Millisecond,
			LatencyMax:         300 * time.Millisecond,
			FailureProbability: 0.02,
			FailureKind:        KindTimeout,
			Policy:             "identity",
			Weight:             1,
		},
	}
}

// Validate rejects empty catalogs, duplicate names and malformed entries.
func (c Catalog) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("catalog is empty")
	}
	seen := make(map[string]bool, len(c))
	for _, s := range c {
		if err := s.Validate(); err != nil {
			return err
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate operation %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// Lookup returns the entry with the given name.
func (c Catalog) Lookup(name string) (Spec, bool) {
	for _, s := range c {
		if s.Name == name {
			return s, true
		}
	}
	return Spec{}, false
}

// Names lists the operation names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name
	}
	return names
}

type catalogFile struct {
	Operations Catalog `yaml:"operations"`
}

// LoadCatalog reads a YAML catalog of the form
//
//	operations:
//	  - name: create_item
//	    latency_min: 50ms
//	    latency_max: 200ms
//	    failure_probability: 0.05
//	    failure_kind: internal
//	    policy: datastore
//	    weight: 3
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog '%s': %w", path, err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog '%s': %w", path, err)
	}
	if err := f.Operations.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog '%s': %w", path, err)
	}
	return f.Operations, nil
}
