package hardware

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAxis   = errors.New("hardware: invalid axis")
	ErrInvalidMount  = errors.New("hardware: invalid mount")
	ErrInvalidConfig = errors.New("hardware: invalid config")

	// ErrClosed is returned by operations on an API whose backend has been
	// released.
	ErrClosed = errors.New("hardware: api closed")

	// ErrHalted is returned by a move interrupted by Halt.
	ErrHalted = errors.New("hardware: motion halted")

	// ErrMoveTimeout is returned when simulated motion does not settle.
	ErrMoveTimeout = errors.New("hardware: move did not settle")

	// ErrDesynced is returned when replies owed to earlier commands never
	// arrived, so new replies cannot be matched to their requests.
	ErrDesynced = errors.New("hardware: controller replies out of step")

	ErrPortLocked   = errors.New("hardware: port is locked by another process")
	ErrUnknownModel = errors.New("hardware: unknown pipette model")
)

// HandshakeError reports that the robot could not be brought up, either
// because the link failed or because instrument detection failed.
type HandshakeError struct {
	Port  string
	Mount string
	Err   error
}

func (e *HandshakeError) Error() string {
	if e.Mount != "" {
		return fmt.Sprintf("hardware: handshake with %s failed on %s mount: %v", e.Port, e.Mount, e.Err)
	}
	return fmt.Sprintf("hardware: handshake with %s failed: %v", e.Port, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// ControllerError is an error line returned by the motion controller.
type ControllerError struct {
	Command string
	Reply   string
}

func (e *ControllerError) Error() string {
	return fmt.Sprintf("hardware: controller rejected %q: %s", e.Command, e.Reply)
}
