package hotswap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/san-kum/otbridge/internal/hardware"
	"github.com/san-kum/otbridge/internal/logging"
	"github.com/san-kum/otbridge/internal/loop"
	"github.com/san-kum/otbridge/internal/transport"
)

// PipetteRecord describes what is attached to one mount.
type PipetteRecord struct {
	Model       string `json:"model"`
	ID          string `json:"id"`
	MountAxis   string `json:"mount_axis"`
	PlungerAxis string `json:"plunger_axis"`
	// TipLength is set exactly when Model is non-empty.
	TipLength *float64 `json:"tip_length,omitempty"`
}

// Adapter is a swappable handle over a hardware API.
type Adapter struct {
	api  atomic.Pointer[hardware.API]
	loop atomic.Pointer[loop.Loop]

	// swapMu serializes Connect and Disconnect.
	swapMu sync.Mutex

	obsMu     sync.Mutex
	observers map[int]func(hardware.Sample)
	nextObs   int
	unobserve func()

	initial        hardware.Config
	simInstruments map[hardware.Mount]hardware.Instrument
	dialer         transport.Dialer
	lockDir        string
	base           *logging.Logger
	logger         *logging.Logger
}

// New returns an Adapter holding a simulator bound to l. l may be nil, in
// which case the adapter is bound later by SetLoop, usually by a bridge.
func New(l *loop.Loop, opts ...Option) (*Adapter, error) {
	a := &Adapter{observers: make(map[int]func(hardware.Sample))}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.NopLogger()
	}
	a.base = a.logger
	a.logger = a.base.WithComponent("hotswap")

	sim, err := hardware.BuildSimulator(hardware.SimulatorOptions{
		Config:      a.initial,
		Instruments: a.simInstruments,
		Logger:      a.base,
	})
	if err != nil {
		return nil, err
	}
	a.loop.Store(l)
	a.swap(sim)
	return a, nil
}

// SetLoop binds the adapter and the API it holds to l.
func (a *Adapter) SetLoop(l *loop.Loop) {
	a.loop.Store(l)
	a.api.Load().SetLoop(l)
}

// Loop returns the loop the adapter is bound to.
func (a *Adapter) Loop() *loop.Loop { return a.loop.Load() }

// Current returns the API held right now. Callers that make several reads
// should take one snapshot and use it throughout.
func (a *Adapter) Current() *hardware.API { return a.api.Load() }

// Target returns Current for member forwarding.
func (a *Adapter) Target() any { return a.api.Load() }

// IsConnected reports whether the held API drives real hardware.
func (a *Adapter) IsConnected() bool { return !a.api.Load().IsSimulator() }

// Connect dials the controller on port and swaps it in once its
// instruments have been read. On failure the current API stays in place
// and the error is a *hardware.HandshakeError. Connect blocks on the loop
// and must not be called from a task running on it.
func (a *Adapter) Connect(ctx context.Context, port string, force bool) error {
	a.swapMu.Lock()
	defer a.swapMu.Unlock()

	if port == "" {
		return &hardware.HandshakeError{Err: fmt.Errorf("%w: no port given", hardware.ErrInvalidConfig)}
	}
	l := a.Loop()
	if l == nil {
		return ErrUnbound
	}

	opts := hardware.ControllerOptions{
		Port:    port,
		Force:   force,
		Config:  a.Current().Config(),
		Dialer:  a.dialer,
		LockDir: a.lockDir,
		Logger:  a.base,
	}
	a.logger.Info("connecting", "port", port, "force", force)

	fut, err := l.SubmitNamed(ctx, "connect", func(co loop.Co) (any, error) {
		api, err := hardware.BuildController(co, opts)
		if err != nil {
			return nil, err
		}
		api.SetLoop(l)
		if err := api.CacheInstruments(co); err != nil {
			_ = api.Close()
			return nil, err
		}
		return api, nil
	})
	if err != nil {
		return err
	}

	v, err := fut.Wait(ctx)
	if err != nil {
		go discard(fut)
		a.logger.Warn("connect failed", "port", port, "error", err)
		return handshakeError(port, err)
	}

	next := v.(*hardware.API)
	a.swap(next)
	a.logger.Info("connected", "port", port, "instruments", describe(next.AttachedInstruments()))
	return nil
}

// Disconnect swaps in a new simulator with the current configuration.
func (a *Adapter) Disconnect() {
	a.swapMu.Lock()
	defer a.swapMu.Unlock()

	cur := a.Current()
	sim := hardware.NewSimulator(hardware.SimulatorOptions{
		Config:      cur.Config(),
		Instruments: a.simInstruments,
		Logger:      a.base,
	})
	a.swap(sim)
	a.logger.Info("disconnected", "from", cur.Name)
}

// swap installs next and retires the API it replaces.
func (a *Adapter) swap(next *hardware.API) {
	next.SetLoop(a.Loop())

	a.obsMu.Lock()
	cancel := next.Observe(a.emit)
	prev := a.unobserve
	a.unobserve = cancel
	old := a.api.Swap(next)
	a.obsMu.Unlock()

	if prev != nil {
		prev()
	}
	if old != nil {
		old.Retire()
	}
}

// Observe registers fn for position samples from whichever API is held.
func (a *Adapter) Observe(fn func(hardware.Sample)) (cancel func()) {
	a.obsMu.Lock()
	id := a.nextObs
	a.nextObs++
	a.observers[id] = fn
	a.obsMu.Unlock()

	return func() {
		a.obsMu.Lock()
		delete(a.observers, id)
		a.obsMu.Unlock()
	}
}

func (a *Adapter) emit(s hardware.Sample) {
	a.obsMu.Lock()
	fns := make([]func(hardware.Sample), 0, len(a.observers))
	for _, fn := range a.observers {
		fns = append(fns, fn)
	}
	a.obsMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// AttachedPipettes describes both mounts of the current API, keyed by
// mount name.
func (a *Adapter) AttachedPipettes() map[string]PipetteRecord {
	api := a.Current()
	out := make(map[string]PipetteRecord, len(hardware.Mounts()))
	for m, inst := range api.AttachedInstruments() {
		rec := PipetteRecord{
			Model:       inst.Name,
			ID:          inst.ID,
			MountAxis:   strings.ToLower(m.Axis().String()),
			PlungerAxis: strings.ToLower(m.PlungerAxis().String()),
		}
		if inst.Name != "" {
			tip := inst.TipLength
			rec.TipLength = &tip
		}
		out[m.String()] = rec
	}
	return out
}

// DisengageAxes resolves names, ignoring case, and disengages them on the
// current API in one call. Nothing is called if any name is unknown.
func (a *Adapter) DisengageAxes(co loop.Co, names []string) error {
	axes := make([]hardware.Axis, 0, len(names))
	for _, name := range names {
		ax, err := hardware.ParseAxis(name)
		if err != nil {
			return &InvalidAxisNameError{Name: name}
		}
		axes = append(axes, ax)
	}
	return a.Current().DisengageAxes(co, axes)
}

// Stop halts the current API and waits for the halt to complete. The API
// is leased before the halt is queued, so a swap in between still halts
// the API that was current when Stop was called.
func (a *Adapter) Stop(ctx context.Context) error {
	l := a.Loop()
	if l == nil {
		return ErrUnbound
	}
	api, release, err := a.lease()
	if err != nil {
		return err
	}
	fut, err := l.SubmitNamed(ctx, "halt", func(co loop.Co) (any, error) {
		return nil, api.Halt(co)
	})
	if err != nil {
		release()
		return err
	}
	go func() {
		<-fut.Done()
		release()
	}()
	_, err = fut.Wait(ctx)
	return err
}

// lease acquires the current API. A swap between the read and the lease
// closes the old API, in which case the new one is taken.
func (a *Adapter) lease() (*hardware.API, func(), error) {
	api := a.Current()
	release, err := api.Acquire()
	if errors.Is(err, hardware.ErrClosed) {
		if next := a.Current(); next != api {
			api = next
			release, err = api.Acquire()
		}
	}
	if err != nil {
		return nil, nil, err
	}
	return api, release, nil
}

// Close releases the current API's backend.
func (a *Adapter) Close() error {
	return a.Current().Close()
}

func handshakeError(port string, err error) error {
	var he *hardware.HandshakeError
	if errors.As(err, &he) || errors.Is(err, loop.ErrStopped) {
		return err
	}
	return &hardware.HandshakeError{Port: port, Err: err}
}

// discard closes an API that finished building after its caller gave up.
func discard(fut *loop.Future) {
	v, err := fut.Result()
	if err != nil {
		return
	}
	if api, ok := v.(*hardware.API); ok {
		_ = api.Close()
	}
}

func describe(inst map[hardware.Mount]hardware.Instrument) string {
	parts := make([]string, 0, len(inst))
	for _, m := range hardware.Mounts() {
		name := inst[m].Name
		if name == "" {
			name = "-"
		}
		parts = append(parts, m.String()+"="+name)
	}
	return strings.Join(parts, " ")
}
