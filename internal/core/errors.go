package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotScheduled reports that an operation expected an Execution in
	// the scheduled state.
	ErrNotScheduled = errors.New("durableflow: execution is not scheduled")
	// ErrNotWaiting mirrors ErrNotScheduled for the waiting state.
	ErrNotWaiting = errors.New("durableflow: execution is not waiting")
	// ErrInvalidFunctionName rejects names Register can't accept.
	ErrInvalidFunctionName = errors.New("durableflow: invalid function name")
	ErrFunctionNameTooLong = errors.New("durableflow: function name too long")
	ErrArgsTooLarge        = errors.New("durableflow: call arguments exceed size limit")
	ErrCodeTooLarge        = errors.New("durableflow: program code exceeds size limit")
	ErrUnknownFunction     = errors.New("durableflow: no function registered with that name")
)

// NotFoundError is returned when an id passed to a Storage or Service
// method does not refer to any row.
type NotFoundError struct {
	Kind string // "execution", "call", "job_handle"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("durableflow: %s %q not found", e.Kind, e.ID)
}

// ConflictError is returned when a conditional Storage update didn't apply
// because the row had already moved on, or an idempotent completion was
// supplied a result that disagrees with the one already recorded.
type ConflictError struct {
	Kind   string // "claim", "completion"
	Detail string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("durableflow: %s conflict: %s", e.Kind, e.Detail)
}

// IsConflict reports whether err is (or wraps) a *ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsNotFound reports whether err is (or wraps) a *NotFoundError.
func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}
