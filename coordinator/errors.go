package coordinator

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("coordinator closed")

// TransientServiceError wraps a failure of the authoritative processor. The
// coordinator logs it and carries on with its cached state.
type TransientServiceError struct {
	Op  string
	Err error
}

func (e *TransientServiceError) Error() string {
	return fmt.Sprintf("gamification %s: %v", e.Op, e.Err)
}

func (e *TransientServiceError) Unwrap() error { return e.Err }
