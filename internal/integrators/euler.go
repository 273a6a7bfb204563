package integrators

import "github.com/san-kum/otbridge/internal/dynamo"

// Euler is the explicit first-order stepper. With SemiImplicit set it
// treats the state as positions followed by velocities and advances the
// positions with the updated velocities, which keeps a servo loop stable
// at larger steps.
type Euler struct {
	SemiImplicit bool
}

func NewEuler() *Euler {
	return &Euler{}
}

// NewSemiImplicitEuler returns the symplectic variant.
func NewSemiImplicitEuler() *Euler {
	return &Euler{SemiImplicit: true}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	dx := dyn.Derive(x, u, t)
	next := make(dynamo.State, len(x))
	if !e.SemiImplicit {
		for i := range x {
			next[i] = x[i] + dt*dx[i]
		}
		return next
	}

	n := x.Axes()
	for i := 0; i < n; i++ {
		v := x[n+i] + dt*dx[n+i]
		next[n+i] = v
		next[i] = x[i] + dt*v
	}
	return next
}
