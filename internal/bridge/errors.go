package bridge

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownMember = errors.New("bridge: unknown member")
	ErrNotCallable   = errors.New("bridge: member is not callable")
	ErrNilFacade     = errors.New("bridge: builder returned no facade")
)

// ArgumentError reports arguments that do not fit a member's signature.
// It is returned before anything is submitted to the loop.
type ArgumentError struct {
	Member string
	// Index is the offending argument, or -1 for a wrong argument count.
	Index int
	Err   error
}

func (e *ArgumentError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("bridge: %s: %v", e.Member, e.Err)
	}
	return fmt.Sprintf("bridge: %s argument %d: %v", e.Member, e.Index, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }
