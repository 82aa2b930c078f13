package affect

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnhandledCombination is returned in strict mode when the current state
// holds a pair of kinds the order table has no entry for.
var ErrUnhandledCombination = errors.New("unhandled affect combination")

// ErrClockRewind is returned when a target is asked to apply an affect at a
// time earlier than its clock.
var ErrClockRewind = errors.New("simulation clock moved backwards")

// ErrTargetNotFound is returned when a target ID is not registered.
var ErrTargetNotFound = errors.New("target not found")

// ErrTargetExists is returned when creating a target whose ID is taken.
var ErrTargetExists = errors.New("target already exists")

// InvariantViolation reports an input that breaks an engine contract, such as
// combining affects of different kinds. The engine never recovers from it.
type InvariantViolation struct {
	Op     string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Detail)
}

// IsInvariantViolation reports whether err is, or wraps, an *InvariantViolation.
func IsInvariantViolation(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}
