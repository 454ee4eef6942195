package cache

import "fmt"

// constError gives sentinel errors a stable identity that also satisfies
// errors.Is against a wrapped, more specific message.
type constError string

func (e constError) Error() string { return string(e) }

const (
	// ErrNilKey names a nil-key argument error. No operation in this
	// package returns it: Cache methods accept any key value, including
	// the zero value of a pointer-shaped key type.
	ErrNilKey = constError("cache: nil key")
	// ErrNegativeWeight names a negative weigher result. Put does not
	// return it: Options.weightOf clamps a negative weight to 0.
	ErrNegativeWeight = constError("cache: weigher returned a negative weight")
	// ErrInvalidMaximum is returned by SetMaximum for a negative bound.
	ErrInvalidMaximum = constError("cache: maximum must be >= 0")
	// ErrNoLoader is returned by Get/GetAll when no loader was configured.
	ErrNoLoader = constError("cache: no loader configured")
	// ErrClosed names a cache marked invalid after an internal invariant
	// violation. No operation returns it: nothing in this package marks a
	// cache invalid.
	ErrClosed = constError("cache: invalid after internal invariant violation")
)

func negativeWeightError(weight int) error {
	return fmt.Errorf("%w: got %d", ErrNegativeWeight, weight)
}

// InvariantError describes a structural bug in the coordinator (a
// queue/store inconsistency, or a sketch index overflow). No code path in
// this package constructs or raises it, and a Cache does not record or
// re-raise invariant violations.
type InvariantError struct {
	Op      string
	Message string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("cache: invariant violated during %s: %s", e.Op, e.Message)
}

func invariantError(op, format string, args ...any) *InvariantError {
	return &InvariantError{Op: op, Message: fmt.Sprintf(format, args...)}
}
