package optim

import (
	"context"

	"github.com/san-kum/otbridge/internal/hardware"
	"github.com/san-kum/otbridge/internal/loop"
)

// MetricMoveTime is the simulated seconds a MoveObjective run takes.
const MetricMoveTime = "move_time"

// MoveObjective scores servo gains by homing a simulator built from base
// and moving mount through points. Params may set "kp", "ki" and "kd";
// the others keep base's gains. Each evaluation runs on its own loop, so
// evaluations may run in parallel.
//
// The metrics are MetricMoveTime plus the per-move simulator metrics
// summed over the moves.
func MoveObjective(base hardware.Config, mount hardware.Mount, points []hardware.Point) Objective {
	return func(ctx context.Context, params map[string]float64) (map[string]float64, error) {
		cfg := base
		cfg.Gantry.RealTime = false
		cfg.IdleTimeout = 0
		if v, ok := params["kp"]; ok {
			cfg.Gantry.Gains.Kp = v
		}
		if v, ok := params["ki"]; ok {
			cfg.Gantry.Gains.Ki = v
		}
		if v, ok := params["kd"]; ok {
			cfg.Gantry.Gains.Kd = v
		}

		api, err := hardware.BuildSimulator(hardware.SimulatorOptions{Config: cfg})
		if err != nil {
			return nil, err
		}
		defer api.Close()

		l := loop.New(loop.WithName("tune"))
		defer l.Join()
		api.SetLoop(l)

		v, err := l.RunUntilComplete(ctx, func(co loop.Co) (any, error) {
			if err := api.Home(co); err != nil {
				return nil, err
			}
			start := api.Elapsed()
			totals := make(map[string]float64)
			for _, p := range points {
				if err := api.MoveTo(co, mount, p); err != nil {
					return nil, err
				}
				for k, v := range api.LastMoveMetrics(co) {
					totals[k] += v
				}
			}
			totals[MetricMoveTime] = api.Elapsed() - start
			return totals, nil
		})
		if err != nil {
			return nil, err
		}
		return v.(map[string]float64), nil
	}
}
