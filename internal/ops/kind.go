package ops

import (
	"context"
	"errors"
	"fmt"
)

// Kind tags a failure so callers can branch on data instead of error types.
type Kind string

const (
	KindNone              Kind = ""
	KindRateLimit         Kind = "rate_limit"
	KindConnectionLoss    Kind = "connection_loss"
	KindTimeout           Kind = "timeout"
	KindCredentialExpired Kind = "credential_expired"
	KindConflict          Kind = "conflict"
	KindInternal          Kind = "internal"
	KindUnknown           Kind = "unknown"
)

// Transient reports whether the kind is expected to clear up on retry.
func (k Kind) Transient() bool {
	switch k {
	case KindRateLimit, KindConnectionLoss, KindTimeout, KindCredentialExpired:
		return true
	}
	return false
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindRateLimit, KindConnectionLoss, KindTimeout, KindCredentialExpired,
		KindConflict, KindInternal, KindUnknown:
		return true
	}
	return false
}

// Fault is the failure value returned by an operation under test.
type Fault struct {
	Kind      Kind
	Operation string
	Msg       string
}

func (f *Fault) Error() string {
	if f.Operation == "" {
		return fmt.Sprintf("%s: %s", f.Kind, f.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", f.Operation, f.Kind, f.Msg)
}

// NewFault builds a fault of the given kind.
func NewFault(kind Kind, op, msg string) *Fault {
	return &Fault{Kind: kind, Operation: op, Msg: msg}
}

// KindOf extracts the failure kind from err. Errors that carry no Fault are
// reported as KindUnknown; a nil error is KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}
