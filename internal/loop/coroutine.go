package loop

import (
	"context"
	"runtime/debug"
	"time"
)

// Task is an asynchronous operation. It runs on the loop and may suspend
// through the Co it receives.
type Task func(co Co) (any, error)

// coroutine is one task in flight. Its body runs on a dedicated goroutine,
// but only while the scheduler has handed it the baton through resume; it
// hands the baton back through park, reporting whether it finished.
type coroutine struct {
	l    *Loop
	name string
	ctx  context.Context
	task Task
	fut  *Future

	// started is owned by whichever goroutine is driving the scheduler.
	started bool

	resume chan struct{}
	park   chan bool
}

func newCoroutine(l *Loop, ctx context.Context, name string, task Task) *coroutine {
	if ctx == nil {
		ctx = context.Background()
	}
	return &coroutine{
		l:      l,
		name:   name,
		ctx:    ctx,
		task:   task,
		fut:    newFuture(),
		resume: make(chan struct{}),
		park:   make(chan bool),
	}
}

func (c *coroutine) main() {
	<-c.resume
	v, err := c.call()
	c.fut.complete(v, err)
	c.park <- true
}

func (c *coroutine) call() (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Task: c.name, Value: r, Stack: debug.Stack()}
			c.l.logger.Error("task panicked", "task", c.name, "panic", r)
		}
	}()
	return c.task(Co{c: c})
}

// suspend returns the baton to the scheduler and blocks until resumed.
// The caller must have arranged for a requeue before or after this call.
func (c *coroutine) suspend() {
	c.park <- false
	<-c.resume
}

// Co is the handle a running task uses to suspend itself. A method with a Co
// as its first parameter is, by contract, an asynchronous operation that must
// be run on a Loop.
type Co struct {
	c *coroutine
}

// Context returns the context the task was submitted with.
func (co Co) Context() context.Context { return co.c.ctx }

// Loop returns the loop running the task.
func (co Co) Loop() *Loop { return co.c.l }

// Name returns the task name.
func (co Co) Name() string { return co.c.name }

// Yield lets every other ready task take a step before this one continues.
func (co Co) Yield() error {
	c := co.c
	c.l.requeue(c)
	c.suspend()
	return c.ctx.Err()
}

// Sleep suspends the task for d. It returns early with the context error if
// the task's context is cancelled.
func (co Co) Sleep(d time.Duration) error {
	if d <= 0 {
		return co.Yield()
	}
	c := co.c
	timer := time.NewTimer(d)
	var err error
	go func() {
		select {
		case <-timer.C:
		case <-c.ctx.Done():
			timer.Stop()
			err = c.ctx.Err()
		}
		c.l.requeue(c)
	}()
	c.suspend()
	return err
}

// Await suspends the task until ch is closed or receives, or the task's
// context is cancelled.
func (co Co) Await(ch <-chan struct{}) error {
	_, _, err := Recv(co, ch)
	return err
}

// Recv suspends the task until a value arrives on ch. ok is false if ch was
// closed.
func Recv[T any](co Co, ch <-chan T) (v T, ok bool, err error) {
	c := co.c
	go func() {
		select {
		case v, ok = <-ch:
		case <-c.ctx.Done():
			err = c.ctx.Err()
		}
		c.l.requeue(c)
	}()
	c.suspend()
	return v, ok, err
}
