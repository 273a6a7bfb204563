package hotswap

import (
	"errors"
	"fmt"

	"github.com/san-kum/otbridge/internal/hardware"
)

// ErrUnbound is returned by operations that need a loop before SetLoop.
var ErrUnbound = errors.New("hotswap: adapter is not bound to a loop")

// InvalidAxisNameError reports an axis name that does not resolve.
type InvalidAxisNameError struct {
	Name string
}

func (e *InvalidAxisNameError) Error() string {
	return fmt.Sprintf("hotswap: invalid axis name %q", e.Name)
}

func (e *InvalidAxisNameError) Unwrap() error { return hardware.ErrInvalidAxis }
