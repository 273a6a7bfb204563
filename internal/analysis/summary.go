package analysis

import (
	"math"

	"github.com/san-kum/otbridge/internal/hardware"
	"github.com/san-kum/otbridge/internal/storage"
)

// AxisSummary describes one axis over a trace. Distances are in mm,
// speeds in mm/s.
type AxisSummary struct {
	Axis      hardware.Axis
	Min       float64
	Max       float64
	Travel    float64
	PeakSpeed float64
}

// Summarize returns a summary for every axis. An empty trace gives zero
// summaries.
func Summarize(tr *storage.Trace) []AxisSummary {
	out := make([]AxisSummary, hardware.NumAxes)
	for i := range out {
		out[i].Axis = hardware.Axis(i)
	}
	if tr == nil || tr.Len() == 0 {
		return out
	}

	first := tr.Samples[0]
	for i := range out {
		out[i].Min = first.Positions[i]
		out[i].Max = first.Positions[i]
	}

	for k := 1; k < len(tr.Samples); k++ {
		prev, cur := tr.Samples[k-1], tr.Samples[k]
		dt := cur.Elapsed - prev.Elapsed
		for i := range out {
			s := &out[i]
			p := cur.Positions[i]
			s.Min = math.Min(s.Min, p)
			s.Max = math.Max(s.Max, p)

			d := math.Abs(p - prev.Positions[i])
			s.Travel += d
			if dt > 0 {
				s.PeakSpeed = math.Max(s.PeakSpeed, d/dt)
			}
		}
	}
	return out
}

// Move is a stretch of the trace where some axis moved faster than the
// threshold given to Moves.
type Move struct {
	Start, End float64
	From, To   [hardware.NumAxes]float64
}

// Duration is the length of the move in seconds.
func (m Move) Duration() float64 { return m.End - m.Start }

// Moves splits the trace into moves. Consecutive samples belong to the
// same move while any axis speed exceeds threshold mm/s.
func Moves(tr *storage.Trace, threshold float64) []Move {
	if tr == nil || tr.Len() < 2 {
		return nil
	}

	var (
		out    []Move
		cur    *Move
		moving bool
	)
	for k := 1; k < len(tr.Samples); k++ {
		prev, s := tr.Samples[k-1], tr.Samples[k]
		fast := speed(prev, s) > threshold
		switch {
		case fast && !moving:
			out = append(out, Move{Start: prev.Elapsed, From: prev.Positions})
			cur = &out[len(out)-1]
			fallthrough
		case fast:
			cur.End = s.Elapsed
			cur.To = s.Positions
		}
		moving = fast
	}
	return out
}

func speed(a, b hardware.Sample) float64 {
	dt := b.Elapsed - a.Elapsed
	if dt <= 0 {
		return 0
	}
	peak := 0.0
	for i := range a.Positions {
		peak = math.Max(peak, math.Abs(b.Positions[i]-a.Positions[i])/dt)
	}
	return peak
}
