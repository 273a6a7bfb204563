package loop

import (
	"errors"
	"time"
)

// ErrTimeout is returned by RecvTimeout when nothing arrives in time.
var ErrTimeout = errors.New("loop: receive timed out")

// RecvTimeout is Recv bounded by d. A non-positive d waits without a bound.
func RecvTimeout[T any](co Co, ch <-chan T, d time.Duration) (v T, ok bool, err error) {
	if d <= 0 {
		return Recv(co, ch)
	}
	c := co.c
	timer := time.NewTimer(d)
	go func() {
		defer timer.Stop()
		select {
		case v, ok = <-ch:
		case <-timer.C:
			err = ErrTimeout
		case <-c.ctx.Done():
			err = c.ctx.Err()
		}
		c.l.requeue(c)
	}()
	c.suspend()
	return v, ok, err
}

// Mutex is a lock for tasks. A task waiting on it suspends instead of
// blocking the loop, so other tasks keep running. The zero value is not
// usable; create one with NewMutex.
type Mutex struct {
	token chan struct{}
}

func NewMutex() *Mutex {
	m := &Mutex{token: make(chan struct{}, 1)}
	m.token <- struct{}{}
	return m
}

// Lock acquires the mutex or returns the task's context error.
func (m *Mutex) Lock(co Co) error {
	select {
	case <-m.token:
		return nil
	default:
	}
	_, _, err := Recv(co, m.token)
	return err
}

// Unlock releases the mutex. Unlocking an unlocked Mutex panics.
func (m *Mutex) Unlock() {
	select {
	case m.token <- struct{}{}:
	default:
		panic("loop: unlock of unlocked mutex")
	}
}
