// Package sim drives a dynamo.System forward in time under a controller,
// feeding metrics and observers at every step.
package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/otbridge/internal/dynamo"
)

// StepFunc is called before each integration step. Returning false ends the
// run at the current state.
type StepFunc func(x dynamo.State, u dynamo.Control, t float64) bool

type Simulator struct {
	dyn        dynamo.System
	integrator dynamo.Integrator
	controller dynamo.Controller
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
}

func New(dyn dynamo.System, integrator dynamo.Integrator, controller dynamo.Controller) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		controller: controller,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]dynamo.Observer, 0),
	}
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

// Run integrates for the configured duration.
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, cfg dynamo.Config) (*dynamo.Result, error) {
	return s.RunWithCallback(ctx, x0, cfg, nil)
}

// RunWithCallback integrates until the duration elapses or callback returns
// false. Result.Stopped tells the two apart.
func (s *Simulator) RunWithCallback(ctx context.Context, x0 dynamo.State, cfg dynamo.Config, callback StepFunc) (*dynamo.Result, error) {
	if err := s.validate(x0, cfg); err != nil {
		return nil, err
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	result := &dynamo.Result{Metrics: make(map[string]float64)}
	x := x0.Clone()
	t := 0.0
	steps := int(math.Round(cfg.Duration / cfg.Dt))
	initialEnergy := s.computeEnergy(x)

	var runErr error
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		u := s.controller.Compute(x, t)

		for _, m := range s.metrics {
			m.Observe(x, u, t)
		}
		for _, obs := range s.observers {
			obs.OnStep(x, u, t)
		}

		if callback != nil && !callback(x, u, t) {
			result.Stopped = true
			break
		}

		newX := s.integrator.Step(s.dyn, x, u, t, cfg.Dt)
		if cfg.ValidateState && !newX.IsValid() {
			runErr = &dynamo.SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: dynamo.ErrInvalidState}
			break
		}

		x = newX
		t += cfg.Dt
		result.StepsTaken++
	}

	result.Final = x
	result.Elapsed = t
	if initialEnergy != 0 {
		result.EnergyDrift = math.Abs(s.computeEnergy(x)-initialEnergy) / math.Abs(initialEnergy)
	}
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	return result, runErr
}

func (s *Simulator) validate(x0 dynamo.State, cfg dynamo.Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", dynamo.ErrParameterBounds, cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %f", dynamo.ErrParameterBounds, cfg.Duration)
	}
	if dim := s.dyn.StateDim(); dim > 0 && len(x0) != dim {
		return fmt.Errorf("%w: state has %d values, system wants %d", dynamo.ErrDimensionMismatch, len(x0), dim)
	}
	return nil
}

func (s *Simulator) computeEnergy(x dynamo.State) float64 {
	if h, ok := s.dyn.(dynamo.Hamiltonian); ok {
		return h.Energy(x)
	}
	return 0
}
