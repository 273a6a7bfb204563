package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/otbridge/internal/hardware"
	"github.com/san-kum/otbridge/internal/protocol"
	"github.com/san-kum/otbridge/internal/tui"
)

// frameInterval bounds how often samples reach the monitor.
const frameInterval = 30 * time.Millisecond

var liveFast bool

func newLiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live PROTOCOL_FILE",
		Short: "run a protocol with a live monitor",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	cmd.Flags().StringVar(&port, "port", "", "motion controller port; simulate when empty")
	cmd.Flags().BoolVar(&force, "force", false, "take over a port locked by another process")
	cmd.Flags().BoolVar(&liveFast, "fast", false, "do not pace the simulator against the wall clock")
	return cmd
}

func runLive(cmd *cobra.Command, args []string) error {
	path := args[0]
	p, err := readProtocol(path)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !liveFast {
		cfg.Robot.Gantry.RealTime = true
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	names := make([]string, len(p.Commands))
	for i, c := range p.Commands {
		names[i] = c.Name
	}
	controls := tui.Controls{
		Pause: func() error {
			_, err := s.bridge.Call(ctx, "pause")
			return err
		},
		Resume: func() error {
			_, err := s.bridge.Call(ctx, "resume")
			return err
		},
		Halt: func() error {
			return s.adapter.Stop(ctx)
		},
	}
	title := fmt.Sprintf("otsim · %s · %s", filepath.Base(path), s.backend())
	program := tui.NewProgram(tui.NewModel(title, names, cfg.Robot.HomePosition, controls))

	var (
		mu   sync.Mutex
		last time.Time
	)
	stopFrames := s.adapter.Observe(func(smp hardware.Sample) {
		mu.Lock()
		now := time.Now()
		due := now.Sub(last) >= frameInterval
		if due {
			last = now
		}
		mu.Unlock()
		if due {
			program.Send(tui.SampleMsg(smp))
		}
	})
	defer stopFrames()

	d := protocol.NewDispatcher(s.bridge,
		protocol.WithLogger(s.logger),
		protocol.WithStepHook(func(st protocol.Step) {
			program.Send(tui.StepMsg{Index: st.Index, Command: st.Command, Duration: st.Duration})
		}),
	)

	var runErr error
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_, runErr = d.Run(ctx, p)
		program.Send(tui.DoneMsg{Err: runErr})
	}()

	if _, err := program.Run(); err != nil {
		return err
	}

	// The monitor may quit mid-run; release a pause so the run can unwind.
	cancel()
	_, _ = s.bridge.Call(context.Background(), "resume")
	<-finished

	if runErr != nil {
		return runErr
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Simulation successful!")
	return nil
}
