package harness

import (
	"errors"
	"fmt"
)

// ErrHarnessFault matches any *Fault.
var ErrHarnessFault = errors.New("harness fault")

// Fault is a setup-level failure that aborted the run before any worker
// started. It is never folded into request statistics.
type Fault struct {
	Stage string
	Err   error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("harness %s failed: %v", f.Stage, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

func (f *Fault) Is(target error) bool { return target == ErrHarnessFault }
