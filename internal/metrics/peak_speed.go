package metrics

import (
	"math"

	"github.com/san-kum/otbridge/internal/dynamo"
)

// PeakSpeed is the highest axis speed seen during a run, in mm/s.
type PeakSpeed struct {
	name string
	peak float64
}

func NewPeakSpeed() *PeakSpeed {
	return &PeakSpeed{name: "peak_speed"}
}

func (p *PeakSpeed) Name() string { return p.name }

func (p *PeakSpeed) Observe(x dynamo.State, u dynamo.Control, t float64) {
	for i := 0; i < x.Axes(); i++ {
		p.peak = math.Max(p.peak, math.Abs(x.Velocity(i)))
	}
}

func (p *PeakSpeed) Value() float64 { return p.peak }

func (p *PeakSpeed) Reset() { p.peak = 0 }
