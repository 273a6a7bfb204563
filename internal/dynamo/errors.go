package dynamo

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState means a state went NaN or infinite, usually because
	// the step is too large for the servo gains.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	ErrParameterBounds  = errors.New("dynamo: parameter out of valid bounds")
	ErrUnknownParameter = errors.New("dynamo: unknown parameter")

	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrNotSettled is returned when a move reaches its time limit before
	// the carriage came to rest on target.
	ErrNotSettled = errors.New("dynamo: run ended before settling")
)

// SimulationError records where in a run an integration failed.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("%v at step %d (t=%.4fs)", e.Wrapped, e.Step, e.Time)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
