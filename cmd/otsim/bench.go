package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
)

var (
	benchCallers []int
	benchCalls   int
)

// benchCase is one bridge member called by every caller.
type benchCase struct {
	member string
	args   []any
}

var benchCases = []benchCase{
	{member: "is_connected"},
	{member: "attached_pipettes"},
	{member: "positions"},
	{member: "current_position", args: []any{"left"}},
	{member: "delay", args: []any{0.0}},
}

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "measure bridge throughput under concurrent callers",
		Args:  cobra.NoArgs,
		RunE:  benchBridge,
	}
	cmd.Flags().IntSliceVar(&benchCallers, "callers", []int{1, 8, 64}, "concurrent callers per round")
	cmd.Flags().IntVar(&benchCalls, "calls", 200, "calls per caller")
	return cmd
}

func benchBridge(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "benchmarking %s\n\n", s.backend())
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MEMBER\tCALLERS\tCALLS\tTIME\tCALLS/SEC")

	for _, bc := range benchCases {
		for _, n := range benchCallers {
			elapsed, calls, err := benchRound(ctx, s, bc, n, benchCalls)
			if err != nil {
				return fmt.Errorf("%s with %d callers: %w", bc.member, n, err)
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%v\t%.0f\n",
				bc.member, n, calls, elapsed.Round(time.Microsecond), float64(calls)/elapsed.Seconds())
		}
	}
	return w.Flush()
}

// benchRound runs callers goroutines that each call bc.member calls times.
func benchRound(ctx context.Context, s *session, bc benchCase, callers, calls int) (time.Duration, int64, error) {
	m, err := s.bridge.Member(bc.member)
	if err != nil {
		return 0, 0, err
	}

	var done atomic.Int64
	p := pool.New().WithMaxGoroutines(callers).WithContext(ctx).WithCancelOnError()

	start := time.Now()
	for i := 0; i < callers; i++ {
		p.Go(func(ctx context.Context) error {
			for j := 0; j < calls; j++ {
				if _, err := m.Call(ctx, bc.args...); err != nil {
					return err
				}
				done.Add(1)
			}
			return nil
		})
	}
	err = p.Wait()
	return time.Since(start), done.Load(), err
}
