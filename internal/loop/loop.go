package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/san-kum/otbridge/internal/logging"
)

// State is the lifecycle state of a Loop.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Loop is a single-scheduler execution context. See the package
// documentation for the execution model.
type Loop struct {
	name   string
	logger *logging.Logger

	// mu guards state transitions and the ready queue. state is also read
	// atomically without the lock.
	mu    sync.Mutex
	state atomic.Int32
	ready []*coroutine
	spare []*coroutine

	wake   chan struct{}
	stopCh chan struct{}
	done   chan struct{}

	// lifetime is cancelled when a stop is requested; background tasks
	// started with Go run under it.
	lifetime context.Context
	cancel   context.CancelFunc

	// live counts coroutines that started and have not finished. Owned by
	// the goroutine driving the scheduler.
	live int

	seq atomic.Uint64
}

// New creates an idle Loop. Call Start to run it on its own goroutine.
func New(opts ...Option) *Loop {
	cfg := &config{
		name:      "loop",
		logger:    logging.NopLogger(),
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NopLogger()
	}
	if cfg.queueSize <= 0 {
		cfg.queueSize = defaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		name:     cfg.name,
		logger:   cfg.logger.With("loop", cfg.name),
		ready:    make([]*coroutine, 0, cfg.queueSize),
		spare:    make([]*coroutine, 0, cfg.queueSize),
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		lifetime: ctx,
		cancel:   cancel,
	}
}

// Name returns the loop name.
func (l *Loop) Name() string { return l.name }

// State returns the current lifecycle state.
func (l *Loop) State() State { return State(l.state.Load()) }

// Running reports whether a goroutine is currently driving the scheduler
// and no stop has been requested.
func (l *Loop) Running() bool { return l.State() == StateRunning }

// Stopped reports whether a stop has been requested.
func (l *Loop) Stopped() bool { return l.State() >= StateStopping }

// Done is closed once the loop has fully stopped.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Start runs the scheduler on a new worker goroutine.
func (l *Loop) Start() error {
	l.mu.Lock()
	switch l.State() {
	case StateRunning:
		l.mu.Unlock()
		return ErrAlreadyRunning
	case StateStopping, StateStopped:
		l.mu.Unlock()
		return ErrStopped
	}
	l.state.Store(int32(StateRunning))
	l.mu.Unlock()

	go l.worker()
	return nil
}

func (l *Loop) worker() {
	l.logger.Debug("loop worker started")
	l.run(nil)
	l.finish()
	l.logger.Debug("loop worker exited")
}

// RunUntilComplete drives the scheduler on the calling goroutine until task
// completes, then leaves the loop idle. It is how asynchronous work is run
// before a loop is started.
func (l *Loop) RunUntilComplete(ctx context.Context, task Task) (any, error) {
	c := newCoroutine(l, ctx, l.taskName("run"), task)

	l.mu.Lock()
	switch l.State() {
	case StateRunning:
		l.mu.Unlock()
		return nil, ErrAlreadyRunning
	case StateStopping, StateStopped:
		l.mu.Unlock()
		return nil, ErrStopped
	}
	l.state.Store(int32(StateRunning))
	l.ready = append(l.ready, c)
	l.mu.Unlock()

	l.run(c.fut.done)

	l.mu.Lock()
	if l.State() == StateRunning {
		l.state.Store(int32(StateIdle))
		l.mu.Unlock()
	} else {
		// A stop arrived while we were driving the scheduler; finish the
		// drain here since no worker goroutine exists.
		l.mu.Unlock()
		l.run(nil)
		l.finish()
	}

	select {
	case <-c.fut.done:
		return c.fut.val, c.fut.err
	default:
		return nil, ErrStopped
	}
}

// Submit queues task and returns its Future. It fails with ErrStopped once
// a stop has been requested.
func (l *Loop) Submit(ctx context.Context, task Task) (*Future, error) {
	return l.spawn(ctx, l.taskName("task"), task)
}

// SubmitNamed is Submit with an explicit task name for logs and panics.
func (l *Loop) SubmitNamed(ctx context.Context, name string, task Task) (*Future, error) {
	return l.spawn(ctx, name, task)
}

// Call submits task and blocks until it completes. Task errors are returned
// unchanged. Call must not be used from inside a task on the same loop.
func (l *Loop) Call(ctx context.Context, task Task) (any, error) {
	fut, err := l.Submit(ctx, task)
	if err != nil {
		return nil, err
	}
	return fut.Wait(ctx)
}

// Go starts background work on the loop. fn runs under a context that is
// cancelled when the loop is asked to stop. Errors other than cancellation
// are logged.
func (l *Loop) Go(name string, fn func(co Co) error) error {
	_, err := l.spawn(l.lifetime, name, func(co Co) (any, error) {
		err := fn(co)
		if err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Warn("background task failed", "task", name, "error", err)
		}
		return nil, err
	})
	return err
}

// Stop requests the loop to stop. Queued tasks that have not started fail
// with ErrStopped; running tasks are left to finish. Stop does not wait.
func (l *Loop) Stop() {
	l.mu.Lock()
	prev := l.State()
	if prev >= StateStopping {
		l.mu.Unlock()
		return
	}
	l.state.Store(int32(StateStopping))
	l.mu.Unlock()

	close(l.stopCh)
	l.cancel()
	l.logger.Debug("loop stop requested", "from", prev.String())

	if prev == StateIdle {
		// Nobody is driving the scheduler. Drain on a goroutine of our own
		// so coroutines parked by an earlier RunUntilComplete can finish.
		go func() {
			l.run(nil)
			l.finish()
		}()
	}
}

// Join stops the loop and waits until it has fully stopped. It is safe to
// call more than once.
func (l *Loop) Join() {
	l.Stop()
	<-l.done
}

func (l *Loop) taskName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, l.seq.Add(1))
}

func (l *Loop) spawn(ctx context.Context, name string, task Task) (*Future, error) {
	if task == nil {
		return nil, fmt.Errorf("loop: nil task %s", name)
	}
	c := newCoroutine(l, ctx, name, task)

	l.mu.Lock()
	if l.State() >= StateStopping {
		l.mu.Unlock()
		return nil, ErrStopped
	}
	l.ready = append(l.ready, c)
	l.mu.Unlock()

	l.signal()
	return c.fut, nil
}

// requeue makes a suspended coroutine ready again. Unlike spawn it is
// accepted while stopping, since the coroutine is already dispatched.
func (l *Loop) requeue(c *coroutine) {
	l.mu.Lock()
	l.ready = append(l.ready, c)
	l.mu.Unlock()
	l.signal()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) takeReady() ([]*coroutine, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	batch := l.ready
	l.ready = l.spare[:0]
	l.spare = batch
	return batch, l.State() >= StateStopping
}

// run is the scheduler. It returns when until fires, or when a stop has been
// requested and no coroutine is left alive.
func (l *Loop) run(until <-chan struct{}) {
	for {
		batch, stopping := l.takeReady()
		for i, c := range batch {
			batch[i] = nil
			if stopping && !c.started {
				c.fut.complete(nil, ErrStopped)
				continue
			}
			l.step(c)
		}

		if until != nil {
			select {
			case <-until:
				return
			default:
			}
		}
		if len(batch) > 0 {
			continue
		}
		if stopping && l.live == 0 {
			return
		}

		stopSignal := l.stopCh
		if stopping {
			stopSignal = nil
		}
		select {
		case <-l.wake:
		case <-stopSignal:
		case <-until:
			return
		}
	}
}

// step hands the baton to c and waits until it parks or finishes.
func (l *Loop) step(c *coroutine) {
	if !c.started {
		c.started = true
		l.live++
		go c.main()
	}
	c.resume <- struct{}{}
	if finished := <-c.park; finished {
		l.live--
	}
}

func (l *Loop) finish() {
	l.mu.Lock()
	leftover := l.ready
	l.ready = nil
	l.state.Store(int32(StateStopped))
	l.mu.Unlock()

	for _, c := range leftover {
		c.fut.complete(nil, ErrStopped)
	}
	close(l.done)
}
