package hotswap

import (
	"github.com/san-kum/otbridge/internal/hardware"
	"github.com/san-kum/otbridge/internal/logging"
	"github.com/san-kum/otbridge/internal/transport"
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger for the adapter and the APIs it builds.
func WithLogger(logger *logging.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithConfig sets the robot configuration of the initial simulator. Later
// APIs copy theirs from the API they replace.
func WithConfig(cfg hardware.Config) Option {
	return func(a *Adapter) {
		a.initial = cfg
	}
}

// WithSimulatedInstruments sets what the simulators report as attached.
func WithSimulatedInstruments(instruments map[hardware.Mount]hardware.Instrument) Option {
	return func(a *Adapter) {
		a.simInstruments = instruments
	}
}

// WithDialer sets how Connect opens ports.
func WithDialer(d transport.Dialer) Option {
	return func(a *Adapter) {
		a.dialer = d
	}
}

// WithLockDir sets where port lock files are created.
func WithLockDir(dir string) Option {
	return func(a *Adapter) {
		a.lockDir = dir
	}
}
