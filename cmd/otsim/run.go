package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/otbridge/internal/bridge"
	"github.com/san-kum/otbridge/internal/hotswap"
	"github.com/san-kum/otbridge/internal/loop"
	"github.com/san-kum/otbridge/internal/protocol"
	"github.com/san-kum/otbridge/internal/storage"
)

func readProtocol(path string) (*protocol.Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := protocol.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func runProtocol(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := args[0]
	p, err := readProtocol(path)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	d := protocol.NewDispatcher(s.bridge, protocol.WithLogger(s.logger))
	rep, runErr := d.Run(ctx, p)

	if save {
		id, err := saveRun(ctx, s, path, rep, runErr)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved run %s\n", id)
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Simulation successful!")
	return nil
}

func saveRun(ctx context.Context, s *session, path string, rep *protocol.Report, runErr error) (string, error) {
	meta := storage.RunMetadata{
		Protocol:  filepath.Base(path),
		Timestamp: time.Now(),
		Backend:   s.backend(),
		Preset:    presetName,
		Status:    "ok",
	}
	if rep != nil {
		meta.Steps = len(rep.Steps)
		meta.Elapsed = rep.Elapsed.Seconds()
	}
	if runErr != nil {
		meta.Status = "failed"
		meta.Error = runErr.Error()
	}

	metrics, err := bridge.Invoke(ctx, s.bridge, func(co loop.Co, a *hotswap.Adapter) (map[string]float64, error) {
		return a.Current().LastMoveMetrics(co), nil
	})
	if err == nil {
		meta.Metrics = metrics
	}
	if n := s.recorder.Dropped(); n > 0 {
		s.logger.Warn("trace truncated", "dropped", n)
	}

	st := storage.New(s.cfg.Runtime.DataDir)
	if err := st.Init(); err != nil {
		return "", err
	}
	return st.Save(meta, s.recorder.Trace())
}
