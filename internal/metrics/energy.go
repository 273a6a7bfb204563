package metrics

import "github.com/san-kum/otbridge/internal/dynamo"

// Energy averages the energy a Hamiltonian system reports over a run.
type Energy struct {
	name        string
	sys         dynamo.Hamiltonian
	samples     int
	totalEnergy float64
}

func NewEnergy(sys dynamo.Hamiltonian) *Energy {
	return &Energy{
		name: "energy",
		sys:  sys,
	}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(x dynamo.State, u dynamo.Control, t float64) {
	e.totalEnergy += e.sys.Energy(x)
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// Standard returns the metrics recorded for every simulated move.
func Standard(sys dynamo.Hamiltonian) []dynamo.Metric {
	return []dynamo.Metric{
		NewControlEffort(),
		NewPeakForce(),
		NewPeakSpeed(),
		NewEnergy(sys),
	}
}
