package bridge

import (
	"github.com/san-kum/otbridge/internal/logging"
	"github.com/san-kum/otbridge/internal/loop"
)

// Option configures a Bridge.
type Option func(*options)

type options struct {
	loop   *loop.Loop
	logger *logging.Logger
	name   string
}

// WithLoop binds the facade to an existing loop instead of a new one. The
// bridge starts it if it is idle and stops it on Join.
func WithLoop(l *loop.Loop) Option {
	return func(o *options) {
		o.loop = l
	}
}

// WithLogger sets the logger for the bridge and for a loop it creates.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithName names the loop the bridge creates.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}
