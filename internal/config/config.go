package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/otbridge/internal/hardware"
	"github.com/san-kum/otbridge/internal/logging"
)

const (
	DefaultLogLevel  = "info"
	DefaultDataDir   = "runs"
	DefaultQueueSize = 64
)

// Environment variables that override the file.
const (
	EnvPort     = "OTSIM_PORT"
	EnvLogLevel = "OTSIM_LOG_LEVEL"
	EnvDataDir  = "OTSIM_DATA_DIR"
	EnvForce    = "OTSIM_FORCE"
)

type Config struct {
	Robot       hardware.Config       `yaml:"robot"`
	Runtime     RuntimeConfig         `yaml:"runtime"`
	Instruments map[string]Instrument `yaml:"instruments,omitempty"`
}

type RuntimeConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogDir    string `yaml:"log_dir,omitempty"`
	DataDir   string `yaml:"data_dir"`
	QueueSize int    `yaml:"queue_size"`
	Port      string `yaml:"port,omitempty"`
	Force     bool   `yaml:"force,omitempty"`
	LockDir   string `yaml:"lock_dir,omitempty"`
}

// Instrument is a pipette the simulator reports on a mount.
type Instrument struct {
	Model string `yaml:"model"`
	ID    string `yaml:"id,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Robot: hardware.DefaultConfig(),
		Runtime: RuntimeConfig{
			LogLevel:  DefaultLogLevel,
			DataDir:   DefaultDataDir,
			QueueSize: DefaultQueueSize,
		},
		Instruments: map[string]Instrument{
			"left": {Model: "p300_single_v1", ID: "P3HSV1-SIM"},
		},
	}
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	return LoadInto(DefaultConfig(), path)
}

// LoadInto reads path over base. Keys missing from the file keep base's
// values.
func LoadInto(base *Config, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := base.Clone()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	if c.Instruments != nil {
		out.Instruments = make(map[string]Instrument, len(c.Instruments))
		for k, v := range c.Instruments {
			out.Instruments[k] = v
		}
	}
	return &out
}

func (c *Config) Validate() error {
	if err := c.Robot.Validate(); err != nil {
		return err
	}
	if lvl := c.Runtime.LogLevel; lvl != "" && !validLevel(lvl) {
		return fmt.Errorf("%w: unknown log level %q", hardware.ErrInvalidConfig, lvl)
	}
	if _, err := c.SimulatedInstruments(); err != nil {
		return err
	}
	return nil
}

func validLevel(lvl string) bool {
	for _, v := range logging.ValidLevels() {
		if strings.EqualFold(v, lvl) {
			return true
		}
	}
	return false
}

// SimulatedInstruments converts the instruments section for the
// simulator. Tip lengths come from the model.
func (c *Config) SimulatedInstruments() (map[hardware.Mount]hardware.Instrument, error) {
	out := make(map[hardware.Mount]hardware.Instrument, len(c.Instruments))
	for name, inst := range c.Instruments {
		m, err := hardware.ParseMount(name)
		if err != nil {
			return nil, err
		}
		if inst.Model == "" {
			continue
		}
		tip, ok := hardware.TipLength(inst.Model)
		if !ok {
			return nil, fmt.Errorf("%w: %q on %s mount", hardware.ErrUnknownModel, inst.Model, m)
		}
		out[m] = hardware.Instrument{Name: inst.Model, ID: inst.ID, TipLength: tip}
	}
	return out, nil
}

// ApplyEnv overrides runtime settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPort); ok && v != "" {
		c.Runtime.Port = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Runtime.LogLevel = v
	}
	if v, ok := lookup(EnvDataDir); ok && v != "" {
		c.Runtime.DataDir = v
	}
	if v, ok := lookup(EnvForce); ok && v != "" {
		force, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvForce, err)
		}
		c.Runtime.Force = force
	}
	return nil
}
