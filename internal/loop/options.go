package loop

import "github.com/san-kum/otbridge/internal/logging"

// Option configures a Loop.
type Option func(*config)

type config struct {
	name      string
	logger    *logging.Logger
	queueSize int
}

const defaultQueueSize = 64

// WithName sets the loop name used in logs and panic reports.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithLogger sets the logger for the loop.
func WithLogger(logger *logging.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithQueueSize sets the initial capacity of the ready queue.
// Values <= 0 fall back to the default.
func WithQueueSize(n int) Option {
	return func(c *config) {
		c.queueSize = n
	}
}
