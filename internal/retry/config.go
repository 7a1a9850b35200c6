package retry

import (
	"fmt"
	"sort"
	"time"
)

// Config is the backoff configuration for one category of call site. It is
// passed by value and never mutated.
type Config struct {
	Policy     string        `mapstructure:"policy" json:"policy"`
	MaxRetries int           `mapstructure:"max_retries" json:"maxRetries"`
	BaseDelay  time.Duration `mapstructure:"base_delay" json:"baseDelay"`
	MaxDelay   time.Duration `mapstructure:"max_delay" json:"maxDelay"`
	// Jitter is the upper bound of the uniform random term added to each
	// delay. Zero disables jitter.
	Jitter time.Duration `mapstructure:"jitter" json:"jitter"`
}

// DefaultJitter matches the one second jitter window of the collaborators'
// client libraries.
const DefaultJitter = time.Second

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("policy %q: max_retries must not be negative", c.Policy)
	}
	if c.BaseDelay < 0 || c.MaxDelay < 0 || c.Jitter < 0 {
		return fmt.Errorf("policy %q: delays must not be negative", c.Policy)
	}
	if c.MaxDelay < c.BaseDelay {
		return fmt.Errorf("policy %q: max_delay %s is below base_delay %s", c.Policy, c.MaxDelay, c.BaseDelay)
	}
	return nil
}

// Backoff returns the wait before retry k (1-indexed) given a jitter draw in
// [0,1): min(BaseDelay * 2^(k-1) + jitter, MaxDelay).
func (c Config) Backoff(k int, draw float64) time.Duration {
	if k < 1 {
		k = 1
	}
	delay := c.BaseDelay
	for i := 1; i < k && delay < c.MaxDelay; i++ {
		delay *= 2
	}
	if delay >= c.MaxDelay {
		return c.MaxDelay
	}
	delay += time.Duration(draw * float64(c.Jitter))
	if delay > c.MaxDelay {
		return c.MaxDelay
	}
	return delay
}

// Scaled returns a copy with every delay multiplied by f.
func (c Config) Scaled(f float64) Config {
	c.BaseDelay = scale(c.BaseDelay, f)
	c.MaxDelay = scale(c.MaxDelay, f)
	c.Jitter = scale(c.Jitter, f)
	return c
}

func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}

// Policy names used by the default catalog.
const (
	PolicyInference    = "inference"
	PolicyDatastore    = "datastore"
	PolicyFileTransfer = "file_transfer"
	PolicyIdentity     = "identity"
)

// Registry maps policy names to configurations. Unknown names fall back to
// the Fallback policy.
type Registry struct {
	policies map[string]Config
	fallback string
}

// DefaultRegistry returns the built-in policies.
func DefaultRegistry() Registry {
	return NewRegistry(PolicyDatastore,
		Config{Policy: PolicyInference, MaxRetries: 3, BaseDelay: time.Second, MaxDelay: 60 * time.Second, Jitter: DefaultJitter},
		Config{Policy: PolicyDatastore, MaxRetries: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 30 * time.Second, Jitter: DefaultJitter},
		Config{Policy: PolicyFileTransfer, MaxRetries: 3, BaseDelay: 2 * time.Second, MaxDelay: 120 * time.Second, Jitter: DefaultJitter},
		Config{Policy: PolicyIdentity, MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Jitter: DefaultJitter},
	)
}

// NewRegistry builds a registry. fallback must name one of the configs.
func NewRegistry(fallback string, configs ...Config) Registry {
	r := Registry{policies: make(map[string]Config, len(configs)), fallback: fallback}
	for _, c := range configs {
		r.policies[c.Policy] = c
	}
	return r
}

// For returns the named policy, or the fallback when the name is unknown.
func (r Registry) For(name string) Config {
	if c, ok := r.policies[name]; ok {
		return c
	}
	return r.policies[r.fallback]
}

// Has reports whether name is registered.
func (r Registry) Has(name string) bool {
	_, ok := r.policies[name]
	return ok
}

// Names lists the registered policies in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r.policies))
	for n := range r.policies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Scaled returns a new registry with every policy's delays multiplied by f.
func (r Registry) Scaled(f float64) Registry {
	out := Registry{policies: make(map[string]Config, len(r.policies)), fallback: r.fallback}
	for n, c := range r.policies {
		out.policies[n] = c.Scaled(f)
	}
	return out
}

// WithMaxRetries returns a new registry where every policy allows n retries.
func (r Registry) WithMaxRetries(n int) Registry {
	out := Registry{policies: make(map[string]Config, len(r.policies)), fallback: r.fallback}
	for name, c := range r.policies {
		c.MaxRetries = n
		out.policies[name] = c
	}
	return out
}

// Validate checks every policy and that the fallback exists.
func (r Registry) Validate() error {
	if !r.Has(r.fallback) {
		return fmt.Errorf("fallback policy %q is not registered", r.fallback)
	}
	for _, n := range r.Names() {
		if err := r.policies[n].Validate(); err != nil {
			return err
		}
	}
	return nil
}
