package loop

import (
	"errors"
	"fmt"
)

var (
	// ErrStopped is returned when work is submitted to a loop that has been
	// asked to stop, and for queued tasks that never got to start.
	ErrStopped = errors.New("loop: execution context stopped")

	// ErrAlreadyRunning is returned by Start and RunUntilComplete when another
	// goroutine is already driving the scheduler.
	ErrAlreadyRunning = errors.New("loop: scheduler already running")
)

// PanicError wraps a panic recovered from a task.
type PanicError struct {
	Task  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("loop: task %s panicked: %v", e.Task, e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
