package control

import (
	"errors"
	"testing"

	"github.com/san-kum/otbridge/internal/dynamo"
)

func TestPIDProportional(t *testing.T) {
	p := NewPID(2, 0, 0, 10)
	u := p.Compute(dynamo.State{4, 0}, 0)
	if u[0] != 12 {
		t.Errorf("expected 12, got %g", u[0])
	}
}

func TestPIDDampsOnVelocity(t *testing.T) {
	p := NewPID(0, 0, 3, 10)
	if f := p.Update(10, 2, 0); f != -6 {
		t.Errorf("expected -6, got %g", f)
	}
}

func TestPIDIntegralAccumulates(t *testing.T) {
	p := NewPID(0, 1, 0, 1)
	p.Update(0, 0, 0)
	p.Update(0, 0, 0.5)
	if f := p.Update(0, 0, 1.0); f != 1.0 {
		t.Errorf("expected integral term 1.0, got %g", f)
	}

	p.Reset()
	if f := p.Update(0, 0, 2.0); f != 0 {
		t.Errorf("expected reset integral, got %g", f)
	}
}

func TestPIDShortState(t *testing.T) {
	p := NewPID(1, 0, 0, 1)
	if u := p.Compute(dynamo.State{0}, 0); u[0] != 0 {
		t.Errorf("expected zero control for short state, got %v", u)
	}
}

func TestPIDSetParam(t *testing.T) {
	p := NewPID(1, 0, 0, 0)
	if err := p.SetParam("Kd", 4); err != nil {
		t.Fatal(err)
	}
	if p.GetParams()["Kd"] != 4 {
		t.Errorf("Kd not applied")
	}
	if err := p.SetParam("Kx", 1); !errors.Is(err, dynamo.ErrUnknownParameter) {
		t.Errorf("expected ErrUnknownParameter, got %v", err)
	}
}

func TestServoComputesPerAxis(t *testing.T) {
	s := NewServo(2, Gains{Kp: 1})
	s.SetTargets([]float64{5, -5, 99})

	u := s.Compute(dynamo.NewState(1, 1), 0)
	if u[0] != 4 || u[1] != -6 {
		t.Errorf("unexpected forces %v", u)
	}

	s.SetEngaged(1, false)
	u = s.Compute(dynamo.NewState(1, 1), 0)
	if u[1] != 0 {
		t.Errorf("disengaged axis got force %g", u[1])
	}
}

func TestServoSettled(t *testing.T) {
	s := NewServo(2, DefaultGains())
	s.SetTargets([]float64{10, 20})

	tests := []struct {
		name string
		x    dynamo.State
		want bool
	}{
		{"at target", dynamo.State{10, 20, 0, 0}, true},
		{"off target", dynamo.State{10, 19, 0, 0}, false},
		{"moving", dynamo.State{10, 20, 0, 1}, false},
		{"within tolerance", dynamo.State{10.005, 20, 0, 0.001}, true},
	}
	for _, tt := range tests {
		if got := s.Settled(tt.x, 0.01, 0.01); got != tt.want {
			t.Errorf("%s: Settled = %v, want %v", tt.name, got, tt.want)
		}
	}

	s.SetEngaged(1, false)
	if !s.Settled(dynamo.State{10, 0, 0, 5}, 0.01, 0.01) {
		t.Error("disengaged axis should not block settling")
	}
}
