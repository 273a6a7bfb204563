// Package hardware is the asynchronous control API of the robot.
//
// An API is backed either by a simulated gantry or by a motion controller
// reached over a transport. Methods whose first parameter is a loop.Co are
// asynchronous operations and must run on the loop the API is bound to;
// every other method may be called from any goroutine.
package hardware

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/otbridge/internal/logging"
	"github.com/san-kum/otbridge/internal/loop"
)

type backend interface {
	home(co loop.Co, axes []Axis) error
	move(co loop.Co, targets map[Axis]float64) error
	position(co loop.Co) ([NumAxes]float64, error)
	disengage(co loop.Co, axes []Axis) error
	halt(co loop.Co) error
	readInstrument(co loop.Co, m Mount) (Instrument, error)
	elapsed() float64
	close() error
}

// API is the robot control facade.
type API struct {
	// Name identifies the instance in logs, for example "simulator" or
	// "controller:tcp://10.0.0.5:3333".
	Name string

	backend   backend
	simulator bool
	port      string
	logger    *logging.Logger

	mu          sync.RWMutex
	loop        *loop.Loop
	cfg         Config
	instruments map[Mount]Instrument
	observers   map[int]func(Sample)
	nextObs     int
	paused      chan struct{}
	engaged     [NumAxes]bool

	inflight int
	retired  bool
	closed   bool

	motion atomic.Uint64
}

func newAPI(name string, b backend, simulator bool, port string, cfg Config, logger *logging.Logger) *API {
	if logger == nil {
		logger = logging.NopLogger()
	}
	a := &API{
		Name:        name,
		backend:     b,
		simulator:   simulator,
		port:        port,
		logger:      logger.With("api", name),
		cfg:         cfg,
		instruments: make(map[Mount]Instrument),
		observers:   make(map[int]func(Sample)),
	}
	return a
}

// Loop returns the loop the API is bound to, or nil.
func (a *API) Loop() *loop.Loop {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loop
}

// SetLoop binds the API to l. Internally scheduled work, such as the idle
// motor timeout, runs there.
func (a *API) SetLoop(l *loop.Loop) {
	a.mu.Lock()
	a.loop = l
	a.mu.Unlock()
}

// Config returns a copy of the robot configuration.
func (a *API) Config() Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

func (a *API) IsSimulator() bool { return a.simulator }

// Port is the port a controller-backed API was dialed on. It is empty for
// simulators.
func (a *API) Port() string { return a.port }

// Elapsed is the backend clock in seconds. Simulators report simulated
// time.
func (a *API) Elapsed() float64 { return a.backend.elapsed() }

// AttachedInstruments returns the instruments found by the last
// CacheInstruments. Mounts with nothing attached map to a zero Instrument.
func (a *API) AttachedInstruments() map[Mount]Instrument {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[Mount]Instrument, len(Mounts()))
	for _, m := range Mounts() {
		out[m] = a.instruments[m]
	}
	return out
}

// Observe registers fn to receive position samples while the robot moves.
// fn runs on the loop and must not block. The returned func unregisters it.
func (a *API) Observe(fn func(Sample)) (cancel func()) {
	a.mu.Lock()
	id := a.nextObs
	a.nextObs++
	a.observers[id] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.observers, id)
		a.mu.Unlock()
	}
}

func (a *API) emit(s Sample) {
	a.mu.RLock()
	fns := make([]func(Sample), 0, len(a.observers))
	for _, fn := range a.observers {
		fns = append(fns, fn)
	}
	a.mu.RUnlock()
	for _, fn := range fns {
		fn(s)
	}
}

// EngagedAxes lists the motors currently powered, in axis order.
func (a *API) EngagedAxes() []Axis {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var out []Axis
	for i, on := range a.engaged {
		if on {
			out = append(out, Axis(i))
		}
	}
	return out
}

func (a *API) setEngaged(on bool, axes ...Axis) {
	a.mu.Lock()
	for _, ax := range axes {
		a.engaged[ax] = on
	}
	a.mu.Unlock()
}

// IsPaused reports whether motion is paused.
func (a *API) IsPaused() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.paused != nil
}

// Retire marks the API as swapped out. Operations already running finish
// normally; the backend is released once the last one returns.
func (a *API) Retire() {
	a.mu.Lock()
	a.retired = true
	release := a.inflight == 0 && !a.closed
	if release {
		a.closed = true
	}
	a.mu.Unlock()

	if release {
		a.release()
	}
}

// Retired reports whether Retire has been called.
func (a *API) Retired() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.retired
}

// Closed reports whether the backend has been released.
func (a *API) Closed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closed
}

// Close releases the backend immediately.
func (a *API) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()
	return a.backend.close()
}

func (a *API) release() {
	if err := a.backend.close(); err != nil {
		a.logger.Warn("failed to release backend", "error", err)
		return
	}
	a.logger.Debug("backend released")
}

// Acquire keeps the backend open until release is called, even if the API
// is retired in between. Callers take it before queueing an operation so
// the operation still runs against this API after a swap. release is safe
// to call more than once.
func (a *API) Acquire() (release func(), err error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(a.exit) }, nil
}

func (a *API) enter() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	a.inflight++
	return nil
}

func (a *API) exit() {
	a.mu.Lock()
	a.inflight--
	release := a.retired && a.inflight == 0 && !a.closed
	if release {
		a.closed = true
	}
	a.mu.Unlock()

	if release {
		a.release()
	}
}

func (a *API) waitResumed(co loop.Co) error {
	a.mu.RLock()
	gate := a.paused
	a.mu.RUnlock()
	if gate == nil {
		return nil
	}
	return co.Await(gate)
}

func (a *API) moved(co loop.Co) {
	seq := a.motion.Add(1)

	if pos, err := a.backend.position(co); err == nil {
		a.emit(Sample{Elapsed: a.backend.elapsed(), Positions: pos})
	}

	idle := a.Config().IdleTimeout
	l := a.Loop()
	if idle <= 0 || l == nil {
		return
	}
	err := l.Go("idle-timeout", func(co loop.Co) error {
		if err := co.Sleep(idle); err != nil {
			return err
		}
		if a.motion.Load() != seq {
			return nil
		}
		a.logger.Info("idle timeout, disengaging motors", "after", idle.String())
		return a.DisengageAxes(co, Axes())
	})
	if err != nil {
		a.logger.Debug("idle timeout not scheduled", "error", err)
	}
}

// Home moves the given axes, or every axis, to their home positions.
func (a *API) Home(co loop.Co, axes ...Axis) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	if len(axes) == 0 {
		axes = Axes()
	}
	if err := validAxes(axes); err != nil {
		return err
	}
	if err := a.waitResumed(co); err != nil {
		return err
	}
	a.logger.Debug("home", "axes", axisList(axes))
	if err := a.backend.home(co, axes); err != nil {
		return err
	}
	a.setEngaged(true, axes...)
	a.moved(co)
	return nil
}

// MoveTo moves the carriage so that the mount sits at p.
func (a *API) MoveTo(co loop.Co, mount Mount, p Point) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	if err := a.waitResumed(co); err != nil {
		return err
	}
	targets := map[Axis]float64{AxisX: p.X, AxisY: p.Y, mount.Axis(): p.Z}
	a.logger.Debug("move", "mount", mount.String(), "to", p.String())
	if err := a.backend.move(co, targets); err != nil {
		return err
	}
	a.setEngaged(true, AxisX, AxisY, mount.Axis())
	a.moved(co)
	return nil
}

// MoveRel moves the mount by delta from where it is now.
func (a *API) MoveRel(co loop.Co, mount Mount, delta Point) error {
	cur, err := a.CurrentPosition(co, mount)
	if err != nil {
		return err
	}
	return a.MoveTo(co, mount, cur.Add(delta))
}

// MovePlunger drives the mount's plunger to position, in millimetres of
// plunger travel.
func (a *API) MovePlunger(co loop.Co, mount Mount, position float64) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	if err := a.waitResumed(co); err != nil {
		return err
	}
	if err := a.backend.move(co, map[Axis]float64{mount.PlungerAxis(): position}); err != nil {
		return err
	}
	a.setEngaged(true, mount.PlungerAxis())
	a.moved(co)
	return nil
}

// CurrentPosition returns where the mount is.
func (a *API) CurrentPosition(co loop.Co, mount Mount) (Point, error) {
	if err := a.enter(); err != nil {
		return Point{}, err
	}
	defer a.exit()

	pos, err := a.backend.position(co)
	if err != nil {
		return Point{}, err
	}
	return Point{X: pos[AxisX], Y: pos[AxisY], Z: pos[mount.Axis()]}, nil
}

// Positions returns every axis position.
func (a *API) Positions(co loop.Co) (map[Axis]float64, error) {
	if err := a.enter(); err != nil {
		return nil, err
	}
	defer a.exit()

	pos, err := a.backend.position(co)
	if err != nil {
		return nil, err
	}
	out := make(map[Axis]float64, NumAxes)
	for i, v := range pos {
		out[Axis(i)] = v
	}
	return out, nil
}

// DisengageAxes cuts power to the given motors.
func (a *API) DisengageAxes(co loop.Co, axes []Axis) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	if err := validAxes(axes); err != nil {
		return err
	}
	a.logger.Debug("disengage", "axes", axisList(axes))
	if err := a.backend.disengage(co, axes); err != nil {
		return err
	}
	a.setEngaged(false, axes...)
	return nil
}

// Halt stops all motion. A move in progress fails with ErrHalted.
func (a *API) Halt(co loop.Co) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	a.logger.Info("halt")
	return a.backend.halt(co)
}

// CacheInstruments reads what is attached to each mount and remembers it.
// Failures are reported as *HandshakeError.
func (a *API) CacheInstruments(co loop.Co) error {
	if err := a.enter(); err != nil {
		return err
	}
	defer a.exit()

	found := make(map[Mount]Instrument, 2)
	for _, m := range Mounts() {
		inst, err := a.backend.readInstrument(co, m)
		if err != nil {
			return &HandshakeError{Port: a.portName(), Mount: m.String(), Err: err}
		}
		found[m] = inst
	}

	a.mu.Lock()
	a.instruments = found
	a.mu.Unlock()
	a.logger.Info("instruments cached",
		"left", found[MountLeft].Name,
		"right", found[MountRight].Name)
	return nil
}

// Delay suspends for the given number of seconds.
func (a *API) Delay(co loop.Co, seconds float64) error {
	if seconds < 0 {
		return fmt.Errorf("hardware: negative delay %g", seconds)
	}
	return co.Sleep(time.Duration(seconds * float64(time.Second)))
}

// Pause holds subsequent motion until Resume.
func (a *API) Pause(co loop.Co) error {
	a.mu.Lock()
	if a.paused == nil {
		a.paused = make(chan struct{})
	}
	a.mu.Unlock()
	a.logger.Info("paused")
	return nil
}

// Resume releases motion held by Pause.
func (a *API) Resume(co loop.Co) error {
	a.mu.Lock()
	if a.paused != nil {
		close(a.paused)
		a.paused = nil
	}
	a.mu.Unlock()
	a.logger.Info("resumed")
	return nil
}

func (a *API) portName() string {
	if a.port == "" {
		return a.Name
	}
	return a.port
}

func validAxes(axes []Axis) error {
	for _, ax := range axes {
		if !ax.Valid() {
			return fmt.Errorf("%w: %d", ErrInvalidAxis, int(ax))
		}
	}
	return nil
}

func axisList(axes []Axis) string {
	s := ""
	for _, ax := range axes {
		s += ax.String()
	}
	return s
}
