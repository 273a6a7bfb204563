package metrics

import (
	"math"

	"github.com/san-kum/otbridge/internal/dynamo"
)

// ControlEffort is the mean total absolute motor force per step, in N.
type ControlEffort struct {
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort { return &ControlEffort{} }

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(x dynamo.State, u dynamo.Control, t float64) {
	total := 0.0
	for _, f := range u {
		total += math.Abs(f)
	}
	c.sum += total
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() { *c = ControlEffort{} }

// PeakForce is the largest force any single motor produced. A value at the
// gantry's force limit means the move saturated.
type PeakForce struct {
	peak float64
}

func NewPeakForce() *PeakForce { return &PeakForce{} }

func (p *PeakForce) Name() string { return "peak_force" }

func (p *PeakForce) Observe(x dynamo.State, u dynamo.Control, t float64) {
	for _, f := range u {
		p.peak = math.Max(p.peak, math.Abs(f))
	}
}

func (p *PeakForce) Value() float64 { return p.peak }

func (p *PeakForce) Reset() { p.peak = 0 }
