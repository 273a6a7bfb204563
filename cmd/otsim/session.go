package main

import (
	"context"
	"fmt"
	"os"

	"github.com/san-kum/otbridge/internal/bridge"
	"github.com/san-kum/otbridge/internal/config"
	"github.com/san-kum/otbridge/internal/hotswap"
	"github.com/san-kum/otbridge/internal/logging"
	"github.com/san-kum/otbridge/internal/loop"
	"github.com/san-kum/otbridge/internal/storage"
)

// recordLimit bounds the samples kept per run.
const recordLimit = 200_000

// loadConfig resolves the configuration from the preset, the config file,
// the environment and finally the command-line flags, in that order.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if presetName != "" {
		cfg = config.GetPreset(presetName)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (available: %v)", presetName, config.ListPresets())
		}
	}
	if configPath != "" {
		var err error
		cfg, err = config.LoadInto(cfg, configPath)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Runtime.LogLevel = logLevel
	}
	if dataDir != "" {
		cfg.Runtime.DataDir = dataDir
	}
	if port != "" {
		cfg.Runtime.Port = port
	}
	if force {
		cfg.Runtime.Force = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is one adapter bound to a bridge, with a recorder observing the
// robot.
type session struct {
	cfg      *config.Config
	logger   *logging.Logger
	adapter  *hotswap.Adapter
	bridge   *bridge.Bridge
	recorder *storage.Recorder
	cancel   func()
}

func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	logger, err := logging.NewLogger(cfg.Runtime.LogDir, cfg.Runtime.LogLevel)
	if err != nil {
		return nil, err
	}

	instruments, err := cfg.SimulatedInstruments()
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	l := loop.New(
		loop.WithName("otsim"),
		loop.WithLogger(logger),
		loop.WithQueueSize(cfg.Runtime.QueueSize),
	)
	b, err := bridge.Build(ctx, func() (*hotswap.Adapter, error) {
		return hotswap.New(nil,
			hotswap.WithLogger(logger),
			hotswap.WithConfig(cfg.Robot),
			hotswap.WithSimulatedInstruments(instruments),
			hotswap.WithLockDir(cfg.Runtime.LockDir),
		)
	}, bridge.WithLoop(l), bridge.WithLogger(logger))
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	s := &session{
		cfg:      cfg,
		logger:   logger,
		adapter:  b.Facade().(*hotswap.Adapter),
		bridge:   b,
		recorder: storage.NewRecorder(recordLimit),
	}
	s.cancel = s.adapter.Observe(s.recorder.Record)

	if p := cfg.Runtime.Port; p != "" {
		if _, err := b.Call(ctx, "connect", p, cfg.Runtime.Force); err != nil {
			s.close()
			return nil, err
		}
	}
	return s, nil
}

// backend names what the session is driving.
func (s *session) backend() string {
	if s.adapter.IsConnected() {
		return "controller:" + s.adapter.Current().Port()
	}
	return "simulator"
}

func (s *session) close() {
	s.cancel()
	s.bridge.Join()
	if err := s.adapter.Close(); err != nil {
		s.logger.Warn("close adapter", "error", err)
	}
	_ = s.logger.Close()
}
