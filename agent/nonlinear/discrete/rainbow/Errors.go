package rainbow

import (
	"errors"
	"fmt"
)

// ShapeError reports that an approximator returned an output whose
// shape violates its contract. A ShapeError aborts the learning step.
type ShapeError struct {
	Op   string
	What string
	Want []int
	Have []int
}

// Error satisfies the error interface
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: invalid %s shape\n\twant(%v)\n\thave(%v)", e.Op,
		e.What, e.Want, e.Have)
}

// IsShapeError returns whether err reports an approximator output of
// the wrong shape
func IsShapeError(err error) bool {
	var shape *ShapeError
	return errors.As(err, &shape)
}

// checkShape returns a *ShapeError if have != want
func checkShape(op, what string, have []int, want ...int) error {
	if len(have) != len(want) {
		return &ShapeError{Op: op, What: what, Want: want, Have: have}
	}
	for i := range want {
		if have[i] != want[i] {
			return &ShapeError{Op: op, What: what, Want: want, Have: have}
		}
	}
	return nil
}
