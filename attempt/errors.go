package attempt

import (
	"errors"
	"fmt"
)

var (
	// ErrTestNotFound covers both a missing test and an unpublished one;
	// students cannot tell the two apart.
	ErrTestNotFound = errors.New("test not found or not published")

	// ErrAlreadyAttempted blocks a second attempt on a test that does not
	// allow unlimited attempts.
	ErrAlreadyAttempted = errors.New("test already attempted")

	ErrProfileIncomplete = errors.New("student profile is missing a name")
	ErrSessionNotFound   = errors.New("attempt session not found")
	ErrSessionClosed     = errors.New("attempt session is no longer active")
)

// PersistenceError wraps a store failure. After a finalization failure the
// session keeps its answers and stays retryable, so the student's work is
// not lost.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
