package hardware

import (
	"fmt"
	"time"

	"github.com/san-kum/otbridge/internal/control"
	"github.com/san-kum/otbridge/internal/dynamo"
	"github.com/san-kum/otbridge/internal/integrators"
	"github.com/san-kum/otbridge/internal/logging"
	"github.com/san-kum/otbridge/internal/loop"
	"github.com/san-kum/otbridge/internal/metrics"
	"github.com/san-kum/otbridge/internal/physics"
	"github.com/san-kum/otbridge/internal/sim"
)

// SimulatorOptions configures BuildSimulator.
type SimulatorOptions struct {
	Config Config
	// Instruments are reported by CacheInstruments as if attached.
	Instruments map[Mount]Instrument
	Logger      *logging.Logger
}

// BuildSimulator builds an API backed by the simulated gantry. A zero
// Config selects DefaultConfig.
func BuildSimulator(opts SimulatorOptions) (*API, error) {
	cfg := opts.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b, err := newSimBackend(cfg, opts.Instruments)
	if err != nil {
		return nil, err
	}
	api := newAPI("simulator", b, true, "", cfg, opts.Logger)
	b.emit = api.emit
	// Simulated instruments need no handshake.
	for m, inst := range b.instruments {
		api.instruments[m] = inst
	}
	return api, nil
}

// NewSimulator is BuildSimulator for a configuration already known to be
// valid, such as one copied from another API. It panics otherwise.
func NewSimulator(opts SimulatorOptions) *API {
	api, err := BuildSimulator(opts)
	if err != nil {
		panic(fmt.Sprintf("hardware: simulator with invalid config: %v", err))
	}
	return api
}

type simBackend struct {
	cfg         GantryConfig
	home0       AxisValues
	gantry      *physics.Gantry
	integ       dynamo.Integrator
	servo       *control.Servo
	instruments map[Mount]Instrument

	// motion serializes moves; Halt and position reads skip it.
	motion  *loop.Mutex
	state   dynamo.State
	clock   float64
	haltGen uint64

	last map[string]float64
	emit func(Sample)
}

func newSimBackend(cfg Config, instruments map[Mount]Instrument) (*simBackend, error) {
	integ, err := integrators.ByName(cfg.Gantry.Integrator)
	if err != nil {
		return nil, err
	}

	g := physics.NewGantry(NumAxes)
	for i := 0; i < NumAxes; i++ {
		g.Masses[i] = cfg.Gantry.Mass
		g.Damping[i] = cfg.Gantry.Damping
	}
	g.MaxForce = cfg.Gantry.MaxForce

	start := cfg.HomePosition[:]
	servo := control.NewServo(NumAxes, cfg.Gantry.Gains)
	servo.SetTargets(start)
	for i := 0; i < NumAxes; i++ {
		servo.SetEngaged(i, false)
	}

	attached := make(map[Mount]Instrument, len(instruments))
	for m, inst := range instruments {
		if inst.Attached() && inst.TipLength == 0 {
			inst.TipLength, _ = TipLength(inst.Name)
		}
		attached[m] = inst
	}

	return &simBackend{
		cfg:         cfg.Gantry,
		home0:       cfg.HomePosition,
		gantry:      g,
		integ:       integ,
		servo:       servo,
		instruments: attached,
		motion:      loop.NewMutex(),
		state:       dynamo.NewState(start...),
		emit:        func(Sample) {},
	}, nil
}

func (b *simBackend) home(co loop.Co, axes []Axis) error {
	targets := make(map[Axis]float64, len(axes))
	for _, ax := range axes {
		targets[ax] = b.home0[ax]
	}
	return b.move(co, targets)
}

func (b *simBackend) move(co loop.Co, targets map[Axis]float64) error {
	if err := b.motion.Lock(co); err != nil {
		return err
	}
	defer b.motion.Unlock()

	gen := b.haltGen
	for ax, v := range targets {
		b.servo.SetTarget(int(ax), v)
		b.servo.SetEngaged(int(ax), true)
	}

	s := sim.New(b.gantry, b.integ, b.servo)
	for _, m := range metrics.Standard(b.gantry) {
		s.AddMetric(m)
	}
	cfg := dynamo.Config{Dt: b.cfg.Dt, Duration: b.cfg.MaxMoveDuration, ValidateState: true}

	var interrupt error
	steps := 0
	res, err := s.RunWithCallback(co.Context(), b.state, cfg, func(x dynamo.State, u dynamo.Control, t float64) bool {
		b.state = x
		if b.servo.Settled(x, b.cfg.PositionTolerance, b.cfg.VelocityTolerance) {
			return false
		}
		steps++
		if steps%b.cfg.StepsPerYield != 0 {
			return true
		}
		b.emit(b.sample(x, b.clock+t))
		if interrupt = b.pace(co); interrupt != nil {
			return false
		}
		if b.haltGen != gen {
			interrupt = ErrHalted
			return false
		}
		return true
	})
	if res != nil {
		b.clock += res.Elapsed
		b.state = res.Final
		b.last = res.Metrics
	}

	switch {
	case err != nil:
		return err
	case interrupt != nil:
		return interrupt
	case !res.Stopped:
		return fmt.Errorf("%w after %.1fs: %w", ErrMoveTimeout, res.Elapsed, dynamo.ErrNotSettled)
	}
	return nil
}

func (b *simBackend) pace(co loop.Co) error {
	if !b.cfg.RealTime {
		return co.Yield()
	}
	d := time.Duration(b.cfg.Dt * float64(b.cfg.StepsPerYield) * float64(time.Second))
	return co.Sleep(d)
}

func (b *simBackend) sample(x dynamo.State, t float64) Sample {
	s := Sample{Elapsed: t}
	for i := 0; i < NumAxes; i++ {
		s.Positions[i] = x.Position(i)
	}
	return s
}

func (b *simBackend) position(co loop.Co) ([NumAxes]float64, error) {
	return b.sample(b.state, b.clock).Positions, nil
}

func (b *simBackend) disengage(co loop.Co, axes []Axis) error {
	for _, ax := range axes {
		b.servo.SetEngaged(int(ax), false)
	}
	return nil
}

func (b *simBackend) halt(co loop.Co) error {
	b.haltGen++
	for i := 0; i < NumAxes; i++ {
		b.servo.SetTarget(i, b.state.Position(i))
	}
	return nil
}

func (b *simBackend) readInstrument(co loop.Co, m Mount) (Instrument, error) {
	return b.instruments[m], nil
}

func (b *simBackend) elapsed() float64 { return b.clock }

func (b *simBackend) close() error { return nil }

// LastMoveMetrics returns the metrics of the most recent simulated move,
// or nil for controller-backed APIs.
func (a *API) LastMoveMetrics(co loop.Co) map[string]float64 {
	sb, ok := a.backend.(*simBackend)
	if !ok || sb.last == nil {
		return nil
	}
	out := make(map[string]float64, len(sb.last))
	for k, v := range sb.last {
		out[k] = v
	}
	return out
}
