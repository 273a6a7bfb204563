package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/otbridge/internal/analysis"
	"github.com/san-kum/otbridge/internal/hardware"
)

var moveThreshold float64

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze RUN_ID",
		Short: "summarize the motion of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	cmd.Flags().Float64Var(&moveThreshold, "threshold", 1, "speed in mm/s above which the carriage counts as moving")
	return cmd
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st, err := openStore()
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	trace, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}
	if trace.Len() == 0 {
		return fmt.Errorf("run %s has no trace", runID)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, header.Render(fmt.Sprintf("%s · %s · %s", meta.ID, meta.Protocol, meta.Backend)))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AXIS\tMIN\tMAX\tTRAVEL\tPEAK SPEED")
	for _, s := range analysis.Summarize(trace) {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.1f\n",
			strings.ToLower(s.Axis.String()), s.Min, s.Max, s.Travel, s.PeakSpeed)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	moves := analysis.Moves(trace, moveThreshold)
	total := 0.0
	for _, m := range moves {
		total += m.Duration()
	}
	fmt.Fprintf(out, "\nmoves: %d (%.2fs moving)\n", len(moves), total)
	keys := make([]string, 0, len(meta.Metrics))
	for k := range meta.Metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s: %.4g\n", k, meta.Metrics[k])
	}

	fmt.Fprintln(out, "\ncarriage path (x, y):")
	fmt.Fprint(out, analysis.PathASCII(trace, hardware.AxisX, hardware.AxisY, 60, 16))
	return nil
}
