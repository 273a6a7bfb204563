package protocol

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/san-kum/otbridge/internal/bridge"
	"github.com/san-kum/otbridge/internal/logging"
)

// DefaultParams names the positional parameters of the robot commands so
// JSON params objects can be mapped onto them.
var DefaultParams = map[string][]string{
	"home":             {"axes"},
	"move_to":          {"mount", "point"},
	"move_rel":         {"mount", "delta"},
	"move_plunger":     {"mount", "position"},
	"current_position": {"mount"},
	"disengage_axes":   {"axes"},
	"delay":            {"seconds"},
	"connect":          {"port", "force"},
}

// StepError reports the command a protocol failed on.
type StepError struct {
	Index   int
	Command string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("protocol: step %d (%s): %v", e.Index+1, e.Command, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Step is the outcome of one command.
type Step struct {
	Index    int
	Command  string
	Result   []any
	Duration time.Duration
}

// Report summarizes a run.
type Report struct {
	Steps   []Step
	Elapsed time.Duration
}

// Dispatcher runs protocols against a bridge.
type Dispatcher struct {
	b      *bridge.Bridge
	params map[string][]string
	logger *logging.Logger
	onStep func(Step)
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithParams names the parameters of a command, adding to or replacing
// the DefaultParams entry.
func WithParams(command string, names ...string) Option {
	return func(d *Dispatcher) {
		d.params[command] = names
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithStepHook calls fn after every successful command.
func WithStepHook(fn func(Step)) Option {
	return func(d *Dispatcher) {
		d.onStep = fn
	}
}

func NewDispatcher(b *bridge.Bridge, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		b:      b,
		params: make(map[string][]string, len(DefaultParams)),
		logger: logging.NopLogger(),
	}
	for k, v := range DefaultParams {
		d.params[k] = v
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithComponent("protocol")
	return d
}

// Check resolves every command and maps its arguments without running
// anything.
func (d *Dispatcher) Check(p *Protocol) error {
	for i, c := range p.Commands {
		m, err := d.b.Member(c.Name)
		if err != nil {
			return &StepError{Index: i, Command: c.Name, Err: err}
		}
		if !m.Callable() {
			return &StepError{Index: i, Command: c.Name, Err: bridge.ErrNotCallable}
		}
		if _, err := d.args(c); err != nil {
			return &StepError{Index: i, Command: c.Name, Err: err}
		}
	}
	return nil
}

// Run checks p and then executes its commands in order, stopping at the
// first failure.
func (d *Dispatcher) Run(ctx context.Context, p *Protocol) (*Report, error) {
	if err := d.Check(p); err != nil {
		return nil, err
	}

	start := time.Now()
	rep := &Report{}
	for i, c := range p.Commands {
		if err := ctx.Err(); err != nil {
			return rep, &StepError{Index: i, Command: c.Name, Err: err}
		}
		args, _ := d.args(c)

		t0 := time.Now()
		out, err := d.b.Call(ctx, c.Name, args...)
		if err != nil {
			d.logger.Warn("command failed", "step", i+1, "command", c.Name, "error", err)
			return rep, &StepError{Index: i, Command: c.Name, Err: err}
		}

		step := Step{Index: i, Command: c.Name, Result: out, Duration: time.Since(t0)}
		rep.Steps = append(rep.Steps, step)
		d.logger.Debug("command done", "step", i+1, "command", c.Name, "took", step.Duration.String())
		if d.onStep != nil {
			d.onStep(step)
		}
	}
	rep.Elapsed = time.Since(start)
	d.logger.Info("protocol complete", "steps", len(rep.Steps), "elapsed", rep.Elapsed.String())
	return rep, nil
}

// args maps a command's params onto positional arguments. Trailing
// parameters may be omitted; a gap may not.
func (d *Dispatcher) args(c Command) ([]any, error) {
	if len(c.Args) > 0 || len(c.Params) == 0 {
		return c.Args, nil
	}

	names, ok := d.params[c.Name]
	if !ok {
		return nil, fmt.Errorf("no parameter names known for %q", c.Name)
	}

	used := 0
	var args []any
	for _, name := range names {
		v, ok := c.Params[name]
		if !ok {
			break
		}
		args = append(args, v)
		used++
	}
	if used != len(c.Params) {
		return nil, fmt.Errorf("unexpected parameters %s (takes %s)",
			strings.Join(extra(c.Params, names[:used]), ", "), strings.Join(names, ", "))
	}
	return args, nil
}

func extra(params map[string]any, used []string) []string {
	var out []string
	for k := range params {
		found := false
		for _, u := range used {
			if k == u {
				found = true
				break
			}
		}
		if !found {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
