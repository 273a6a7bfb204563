package main

import (
	"fmt"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/otbridge/internal/config"
	"github.com/san-kum/otbridge/internal/hardware"
	"github.com/san-kum/otbridge/internal/optim"
)

var (
	tuneKp      []float64
	tuneKd      []float64
	tuneMetric  string
	tuneWorkers int
	tuneWrite   string
)

// tuneMoves is the move pattern gains are scored on: long diagonals and a
// short hop.
var tuneMoves = []hardware.Point{
	{X: 50, Y: 50, Z: 150},
	{X: 380, Y: 320, Z: 150},
	{X: 390, Y: 320, Z: 150},
	{X: 200, Y: 180, Z: 100},
}

func newTuneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search servo gains for the simulated gantry",
		Args:  cobra.NoArgs,
		RunE:  tuneGains,
	}
	cmd.Flags().Float64SliceVar(&tuneKp, "kp", []float64{600, 900, 1200}, "proportional gains to try")
	cmd.Flags().Float64SliceVar(&tuneKd, "kd", []float64{60, 90, 120}, "derivative gains to try")
	cmd.Flags().StringVar(&tuneMetric, "metric", optim.MetricMoveTime, "metric to minimize")
	cmd.Flags().IntVar(&tuneWorkers, "workers", runtime.NumCPU(), "parallel simulations")
	cmd.Flags().StringVar(&tuneWrite, "write", "", "save the configuration with the best gains to this file")
	return cmd
}

func tuneGains(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	g := optim.NewGridSearch([]string{"kp", "kd"}, [][]float64{tuneKp, tuneKd}).WithWorkers(tuneWorkers)
	best, trials, err := g.Search(cmd.Context(), optim.MoveObjective(cfg.Robot, hardware.MountLeft, tuneMoves), tuneMetric)

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "KP\tKD\t%s\n", tuneMetric)
	for _, tr := range trials {
		result := "-"
		if tr.Err != nil {
			result = "failed: " + tr.Err.Error()
		} else if v, ok := tr.Metrics[tuneMetric]; ok {
			result = fmt.Sprintf("%.4f", v)
		}
		fmt.Fprintf(w, "%.1f\t%.1f\t%s\n", tr.Params["kp"], tr.Params["kd"], result)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header.Render(fmt.Sprintf("best: kp=%.1f kd=%.1f %s=%.4f",
		best.Params["kp"], best.Params["kd"], tuneMetric, best.Metrics[tuneMetric])))

	if tuneWrite != "" {
		tuned := cfg.Clone()
		tuned.Robot.Gantry.Gains.Kp = best.Params["kp"]
		tuned.Robot.Gantry.Gains.Kd = best.Params["kd"]
		if err := config.Save(tuneWrite, tuned); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", tuneWrite)
	}
	return nil
}
