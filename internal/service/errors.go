package service

import (
	"errors"
	"fmt"
)

// ErrNothingPending is returned by a flush when the user has no accumulated
// digest queue. Nothing to send is not a failure.
var ErrNothingPending = errors.New("no pending digest")

// NotFoundError is returned when a requested resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
