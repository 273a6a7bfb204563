package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/otbridge/internal/dynamo"
)

const (
	DefaultMass     = 1.5
	DefaultDamping  = 12.0
	DefaultMaxForce = 2000.0
)

type Gantry struct {
	NumAxes  int
	Masses   []float64
	Damping  []float64
	MaxForce float64
}

func NewGantry(n int) *Gantry {
	masses := make([]float64, n)
	damping := make([]float64, n)
	for i := 0; i < n; i++ {
		masses[i] = DefaultMass
		damping[i] = DefaultDamping
	}
	return &Gantry{
		NumAxes:  n,
		Masses:   masses,
		Damping:  damping,
		MaxForce: DefaultMaxForce,
	}
}

func (g *Gantry) StateDim() int   { return g.NumAxes * 2 }
func (g *Gantry) ControlDim() int { return g.NumAxes }

func (g *Gantry) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	n := g.NumAxes
	dx := make(dynamo.State, n*2)

	for i := 0; i < n; i++ {
		dx[i] = x[n+i]
	}

	for i := 0; i < n; i++ {
		force := 0.0
		if i < len(u) {
			force = g.Clamp(u[i])
		}
		dx[n+i] = (force - g.Damping[i]*x[n+i]) / g.Masses[i]
	}

	return dx
}

// Clamp limits a motor force to the configured maximum. A non-positive
// maximum disables the limit.
func (g *Gantry) Clamp(f float64) float64 {
	if g.MaxForce <= 0 {
		return f
	}
	return math.Max(-g.MaxForce, math.Min(g.MaxForce, f))
}

func (g *Gantry) Energy(x dynamo.State) float64 {
	n := g.NumAxes
	energy := 0.0
	for i := 0; i < n; i++ {
		v := x[n+i]
		energy += 0.5 * g.Masses[i] * v * v
	}
	return energy
}

func (g *Gantry) GetParams() map[string]float64 {
	params := map[string]float64{"max_force": g.MaxForce}
	if g.NumAxes > 0 {
		params["mass"] = g.Masses[0]
		params["damping"] = g.Damping[0]
	}
	return params
}

// SetParam sets a parameter on every axis.
func (g *Gantry) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		if value <= 0 {
			return fmt.Errorf("%w: mass must be positive, got %g", dynamo.ErrParameterBounds, value)
		}
		for i := range g.Masses {
			g.Masses[i] = value
		}
	case "damping":
		if value < 0 {
			return fmt.Errorf("%w: damping must be non-negative, got %g", dynamo.ErrParameterBounds, value)
		}
		for i := range g.Damping {
			g.Damping[i] = value
		}
	case "max_force":
		g.MaxForce = value
	default:
		return fmt.Errorf("%w: %q", dynamo.ErrUnknownParameter, name)
	}
	return nil
}
