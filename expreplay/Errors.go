package expreplay

import (
	"errors"
	"fmt"
)

// InsufficientDataError reports that more transitions were requested
// from a replay memory than it currently holds.
type InsufficientDataError struct {
	Op        string
	Requested int
	Available int
}

// Error satisifes the error interface
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data in replay memory"+
		"\n\twant(<=%v)\n\thave(%v)", e.Op, e.Available, e.Requested)
}

// IsInsufficientData returns whether or not an error reports that
// there are too few transitions in a replay memory to draw the
// requested batch.
func IsInsufficientData(err error) bool {
	var insufficient *InsufficientDataError
	return errors.As(err, &insufficient)
}
