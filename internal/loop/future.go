package loop

import (
	"context"
	"sync"
)

// Future is the result slot of one submitted task. It is completed exactly
// once, either by the task itself or with ErrStopped if the task never ran.
type Future struct {
	done chan struct{}
	once sync.Once
	val  any
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(v any, err error) {
	f.once.Do(func() {
		f.val, f.err = v, err
		close(f.done)
	})
}

// Done is closed once the result is available. Tasks running on the loop
// must wait on it with Co.Await rather than Wait.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks the calling goroutine until the task completes or ctx is done.
// A cancelled wait does not cancel the task.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result blocks until the task completes.
func (f *Future) Result() (any, error) {
	<-f.done
	return f.val, f.err
}
