// Package optim searches parameter grids for the values that minimize a
// metric. It is used to tune the simulated gantry's servo gains.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sourcegraph/conc/pool"
)

var ErrNoTrial = errors.New("optim: no trial produced the metric")

// Objective evaluates one point of the grid and returns its metrics.
type Objective func(ctx context.Context, params map[string]float64) (map[string]float64, error)

// Trial is one evaluated grid point.
type Trial struct {
	Params  map[string]float64
	Metrics map[string]float64
	Err     error
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

// NewGridSearch searches the product of ranges; ranges[i] holds the
// values tried for params[i].
func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, workers: 1}
}

// WithWorkers evaluates up to n grid points at once.
func (g *GridSearch) WithWorkers(n int) *GridSearch {
	if n > 0 {
		g.workers = n
	}
	return g
}

// Points lists every grid point in order, last parameter varying fastest.
func (g *GridSearch) Points() []map[string]float64 {
	var out []map[string]float64
	g.collect(0, map[string]float64{}, &out)
	return out
}

func (g *GridSearch) collect(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}
	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[name] = val
		g.collect(depth+1, next, out)
	}
}

// Search evaluates every grid point and returns the trial with the lowest
// value of metric, along with all trials in grid order. Trials that fail
// are kept with their error and never win.
func (g *GridSearch) Search(ctx context.Context, eval Objective, metric string) (Trial, []Trial, error) {
	points := g.Points()

	type indexed struct {
		i int
		t Trial
	}
	p := pool.NewWithResults[indexed]().WithMaxGoroutines(g.workers)
	for i, params := range points {
		p.Go(func() indexed {
			if err := ctx.Err(); err != nil {
				return indexed{i, Trial{Params: params, Err: err}}
			}
			m, err := eval(ctx, params)
			return indexed{i, Trial{Params: params, Metrics: m, Err: err}}
		})
	}
	results := p.Wait()
	sort.Slice(results, func(a, b int) bool { return results[a].i < results[b].i })

	trials := make([]Trial, len(results))
	best, bestIdx := math.Inf(1), -1
	for _, r := range results {
		trials[r.i] = r.t
		if r.t.Err != nil {
			continue
		}
		v, ok := r.t.Metrics[metric]
		if !ok || math.IsNaN(v) {
			continue
		}
		if v < best {
			best, bestIdx = v, r.i
		}
	}

	if err := ctx.Err(); err != nil {
		return Trial{}, trials, err
	}
	if bestIdx < 0 {
		return Trial{}, trials, fmt.Errorf("%w %q", ErrNoTrial, metric)
	}
	return trials[bestIdx], trials, nil
}
