package control

import (
	"math"

	"github.com/san-kum/otbridge/internal/dynamo"
)

// Servo runs one PID per axis of a position/velocity state. Disengaged
// axes receive no force and coast.
type Servo struct {
	pids    []*PID
	engaged []bool
}

func NewServo(n int, g Gains) *Servo {
	s := &Servo{
		pids:    make([]*PID, n),
		engaged: make([]bool, n),
	}
	for i := range s.pids {
		s.pids[i] = NewPID(g.Kp, g.Ki, g.Kd, 0)
		s.engaged[i] = true
	}
	return s
}

func (s *Servo) Axes() int { return len(s.pids) }

// SetTargets sets every axis target. Extra values are ignored.
func (s *Servo) SetTargets(targets []float64) {
	for i := 0; i < len(s.pids) && i < len(targets); i++ {
		s.SetTarget(i, targets[i])
	}
}

func (s *Servo) SetTarget(i int, target float64) {
	s.pids[i].Target = target
	s.pids[i].Reset()
}

func (s *Servo) Target(i int) float64 { return s.pids[i].Target }

func (s *Servo) SetEngaged(i int, on bool) { s.engaged[i] = on }

func (s *Servo) Engaged(i int) bool { return s.engaged[i] }

func (s *Servo) Compute(x dynamo.State, t float64) dynamo.Control {
	u := make(dynamo.Control, len(s.pids))
	for i, p := range s.pids {
		if !s.engaged[i] {
			continue
		}
		u[i] = p.Update(x.Position(i), x.Velocity(i), t)
	}
	return u
}

// Settled reports whether every engaged axis is within posTol of its
// target and slower than velTol.
func (s *Servo) Settled(x dynamo.State, posTol, velTol float64) bool {
	for i, p := range s.pids {
		if !s.engaged[i] {
			continue
		}
		if math.Abs(p.Target-x.Position(i)) > posTol || math.Abs(x.Velocity(i)) > velTol {
			return false
		}
	}
	return true
}

func (s *Servo) GetParams() map[string]float64 {
	if len(s.pids) == 0 {
		return map[string]float64{}
	}
	p := s.pids[0]
	return map[string]float64{"Kp": p.Kp, "Ki": p.Ki, "Kd": p.Kd}
}

// SetParam applies a gain to every axis.
func (s *Servo) SetParam(name string, value float64) error {
	for _, p := range s.pids {
		if err := p.SetParam(name, value); err != nil {
			return err
		}
	}
	return nil
}
