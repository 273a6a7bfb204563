package control

import (
	"fmt"
	"math"

	"github.com/san-kum/otbridge/internal/dynamo"
)

// Gains are the PID coefficients shared by every axis of a Servo.
type Gains struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

// DefaultGains critically damp an axis built with the physics defaults.
func DefaultGains() Gains {
	return Gains{Kp: 600, Ki: 0, Kd: 48}
}

// PID is a position controller for a single axis. The derivative term acts
// on measured velocity rather than on the error, so a new target does not
// produce a derivative kick.
type PID struct {
	Kp       float64
	Ki       float64
	Kd       float64
	Target   float64
	integral float64
	prevT    float64
	first    bool
}

func NewPID(kp, ki, kd, target float64) *PID {
	return &PID{
		Kp:     kp,
		Ki:     ki,
		Kd:     kd,
		Target: target,
		first:  true,
	}
}

// Update returns the force for an axis at pos moving at vel.
func (p *PID) Update(pos, vel, t float64) float64 {
	err := p.Target - pos

	if p.first {
		p.prevT = t
		p.first = false
	} else if dt := t - p.prevT; dt > 0 {
		p.integral += err * dt
		p.prevT = t
	}

	return p.Kp*err + p.Ki*p.integral - p.Kd*vel
}

// Compute treats x as a single-axis [position, velocity] state.
func (p *PID) Compute(x dynamo.State, t float64) dynamo.Control {
	if len(x) < 2 {
		return dynamo.Control{0}
	}
	return dynamo.Control{p.Update(x[0], x[1], t)}
}

// Reset clears integral state
func (p *PID) Reset() {
	p.integral = 0
	p.first = true
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp":     p.Kp,
		"Ki":     p.Ki,
		"Kd":     p.Kd,
		"Target": p.Target,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s=%g", dynamo.ErrParameterBounds, name, value)
	}
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	case "Target":
		p.Target = value
	default:
		return fmt.Errorf("%w: %q", dynamo.ErrUnknownParameter, name)
	}
	return nil
}
