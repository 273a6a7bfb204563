package storage

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/san-kum/otbridge/internal/hardware"
)

// Trace is a time series of axis positions.
type Trace struct {
	Samples []hardware.Sample
}

func (t *Trace) Len() int { return len(t.Samples) }

// Axis returns the positions of one axis.
func (t *Trace) Axis(a hardware.Axis) []float64 {
	out := make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		out[i] = s.Positions[a]
	}
	return out
}

func (t *Trace) Times() []float64 {
	out := make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		out[i] = s.Elapsed
	}
	return out
}

func (t *Trace) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"time"}
	for _, ax := range hardware.Axes() {
		header = append(header, strings.ToLower(ax.String()))
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, 1+hardware.NumAxes)
	for _, s := range t.Samples {
		row[0] = strconv.FormatFloat(s.Elapsed, 'f', 6, 64)
		for i, v := range s.Positions {
			row[1+i] = strconv.FormatFloat(v, 'f', 6, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Recorder collects samples from an observer callback. Once limit samples
// are held, further samples are counted but dropped. A limit of zero
// records everything.
type Recorder struct {
	mu      sync.Mutex
	limit   int
	samples []hardware.Sample
	dropped int
}

func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Record is suitable for hardware.API.Observe and hotswap.Adapter.Observe.
func (r *Recorder) Record(s hardware.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.limit > 0 && len(r.samples) >= r.limit {
		r.dropped++
		return
	}
	r.samples = append(r.samples, s)
}

// Trace returns a copy of what has been recorded.
func (r *Recorder) Trace() *Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &Trace{Samples: append([]hardware.Sample(nil), r.samples...)}
}

func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
