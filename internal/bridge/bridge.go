package bridge

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"

	"github.com/san-kum/otbridge/internal/logging"
	"github.com/san-kum/otbridge/internal/loop"
)

// Facade is an object whose asynchronous operations run on a loop.
type Facade interface {
	// SetLoop binds the facade to the loop its operations will run on.
	SetLoop(l *loop.Loop)
}

// Forwarder is implemented by facades that delegate unknown members to
// another object. Target is consulted on every lookup, so a forwarder
// may swap its target at any time.
type Forwarder interface {
	Target() any
}

// Leaser is implemented by receivers that must stay usable while a call to
// them waits on the loop. Acquire is taken when the call is queued and
// released once it has finished.
type Leaser interface {
	Acquire() (release func(), err error)
}

// Bridge makes a Facade callable from any goroutine.
type Bridge struct {
	facade Facade
	recv   reflect.Value
	table  *table
	self   *table

	loop   *loop.Loop
	logger *logging.Logger
}

// New binds facade to a loop and starts the loop if it is idle. The facade
// must not be used directly afterwards except through its own synchronous
// members.
func New(facade Facade, opts ...Option) (*Bridge, error) {
	if facade == nil {
		panic("bridge: nil facade")
	}
	cfg := options{name: "bridge"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NopLogger()
	}

	l := cfg.loop
	if l == nil {
		l = loop.New(loop.WithName(cfg.name), loop.WithLogger(cfg.logger))
	}
	if l.Stopped() {
		return nil, loop.ErrStopped
	}

	facade.SetLoop(l)
	if l.State() == loop.StateIdle {
		if err := l.Start(); err != nil && !errors.Is(err, loop.ErrAlreadyRunning) {
			return nil, err
		}
	}

	b := &Bridge{
		facade: facade,
		recv:   reflect.ValueOf(facade),
		table:  tableFor(reflect.TypeOf(facade)),
		self:   tableFor(reflect.TypeOf((*Bridge)(nil))),
		loop:   l,
		logger: cfg.logger.WithComponent("bridge"),
	}
	runtime.SetFinalizer(b, (*Bridge).teardown)

	b.logger.Debug("facade bound", "type", b.table.typ.String(), "loop", l.Name())
	return b, nil
}

// Build constructs a facade with a plain function and binds it.
func Build[F Facade](ctx context.Context, build func() (F, error), opts ...Option) (*Bridge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := build()
	if err != nil {
		return nil, err
	}
	if any(f) == nil {
		return nil, ErrNilFacade
	}
	return New(f, opts...)
}

// BuildAsync runs build to completion on a private loop, then binds the
// result to the bridge's own loop. Errors from build are returned
// unchanged.
func BuildAsync[F Facade](ctx context.Context, build func(co loop.Co) (F, error), opts ...Option) (*Bridge, error) {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}
	bl := loop.New(loop.WithName("build"), loop.WithLogger(cfg.logger))
	defer bl.Join()

	v, err := bl.RunUntilComplete(ctx, func(co loop.Co) (any, error) {
		return build(co)
	})
	if err != nil {
		return nil, err
	}
	f, ok := v.(F)
	if !ok {
		return nil, ErrNilFacade
	}
	return New(f, opts...)
}

// Member resolves name against the facade, then the facade's forwarding
// target, then the bridge itself.
func (b *Bridge) Member(name string) (Member, error) {
	if e, ok := b.table.lookup(name); ok {
		return Member{e: e, recv: b.recv, b: b}, nil
	}
	if fw, ok := b.facade.(Forwarder); ok {
		if t := fw.Target(); t != nil {
			tv := reflect.ValueOf(t)
			if e, ok := tableFor(tv.Type()).lookup(name); ok {
				return Member{e: e, recv: tv, b: b}, nil
			}
		}
	}
	if e, ok := b.self.lookup(name); ok {
		return Member{e: e, recv: reflect.ValueOf(b), b: b}, nil
	}
	return Member{}, fmt.Errorf("%w: %q", ErrUnknownMember, name)
}

// Call resolves name and calls it with args.
func (b *Bridge) Call(ctx context.Context, name string, args ...any) ([]any, error) {
	m, err := b.Member(name)
	if err != nil {
		return nil, err
	}
	return m.Call(ctx, args...)
}

// Attr resolves name and returns its value.
func (b *Bridge) Attr(name string) (any, error) {
	m, err := b.Member(name)
	if err != nil {
		return nil, err
	}
	return m.Value(), nil
}

// Names lists the Go names of the facade's members.
func (b *Bridge) Names() []string {
	return append([]string(nil), b.table.names...)
}

// Facade returns the bound facade.
func (b *Bridge) Facade() Facade { return b.facade }

// Loop returns the loop the facade is bound to.
func (b *Bridge) Loop() *loop.Loop { return b.loop }

// Join stops the loop and waits for it to terminate. Later async calls fail
// with loop.ErrStopped. Join is idempotent.
func (b *Bridge) Join() {
	b.loop.Join()
}

// teardown runs when an unjoined bridge is collected.
func (b *Bridge) teardown() {
	defer func() { _ = recover() }()
	b.loop.Stop()
}

// Invoke runs fn on the bridge's loop with the facade and returns its typed
// result. It is the compile-time checked alternative to Call.
func Invoke[F Facade, T any](ctx context.Context, b *Bridge, fn func(co loop.Co, f F) (T, error)) (T, error) {
	var zero T
	f, ok := b.facade.(F)
	if !ok {
		return zero, fmt.Errorf("bridge: facade is %T", b.facade)
	}
	v, err := b.loop.Call(ctx, func(co loop.Co) (any, error) {
		return fn(co, f)
	})
	if v == nil {
		return zero, err
	}
	return v.(T), err
}
