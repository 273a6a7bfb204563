package hardware

import (
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/otbridge/internal/control"
	"github.com/san-kum/otbridge/internal/integrators"
)

// AxisValues holds one value per axis. In YAML it is written as a mapping
// from axis name to value; axes left out keep their previous value.
type AxisValues [NumAxes]float64

func (v AxisValues) Get(a Axis) float64 { return v[a] }

func (v AxisValues) MarshalYAML() (interface{}, error) {
	m := make(map[string]float64, NumAxes)
	for i, val := range v {
		m[Axis(i).String()] = val
	}
	return m, nil
}

func (v *AxisValues) UnmarshalYAML(node *yaml.Node) error {
	var m map[string]float64
	if err := node.Decode(&m); err != nil {
		return err
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ax, err := ParseAxis(name)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		v[ax] = m[name]
	}
	return nil
}

// GantryConfig tunes the simulated gantry.
type GantryConfig struct {
	Mass     float64       `yaml:"mass"`
	Damping  float64       `yaml:"damping"`
	MaxForce float64       `yaml:"max_force"`
	Gains    control.Gains `yaml:"gains"`

	Integrator    string  `yaml:"integrator"`
	Dt            float64 `yaml:"dt"`
	StepsPerYield int     `yaml:"steps_per_yield"`

	PositionTolerance float64 `yaml:"position_tolerance"`
	VelocityTolerance float64 `yaml:"velocity_tolerance"`
	MaxMoveDuration   float64 `yaml:"max_move_duration"`

	// RealTime paces simulated motion against the wall clock.
	RealTime bool `yaml:"real_time"`
}

// Config describes the robot. It is a plain value: assigning a Config
// copies it completely.
type Config struct {
	StepsPerMM   AxisValues   `yaml:"steps_per_mm"`
	MaxSpeed     AxisValues   `yaml:"max_speed"`
	HomePosition AxisValues   `yaml:"home_position"`
	Gantry       GantryConfig `yaml:"gantry"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ResponseTimeout  time.Duration `yaml:"response_timeout"`

	// IdleTimeout disengages every motor after this long without motion.
	// Zero disables it.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

func DefaultConfig() Config {
	return Config{
		StepsPerMM:   AxisValues{80, 80, 400, 400, 768, 768},
		MaxSpeed:     AxisValues{600, 400, 125, 125, 40, 40},
		HomePosition: AxisValues{418, 353, 218, 218, 19, 19},
		Gantry: GantryConfig{
			Mass:              1.5,
			Damping:           12,
			MaxForce:          2000,
			Gains:             control.DefaultGains(),
			Integrator:        integrators.Default,
			Dt:                0.001,
			StepsPerYield:     50,
			PositionTolerance: 0.01,
			VelocityTolerance: 0.05,
			MaxMoveDuration:   30,
		},
		HandshakeTimeout: 5 * time.Second,
		ResponseTimeout:  30 * time.Second,
	}
}

func (c Config) Validate() error {
	g := c.Gantry
	switch {
	case g.Mass <= 0:
		return fmt.Errorf("%w: gantry mass must be positive", ErrInvalidConfig)
	case g.Damping < 0:
		return fmt.Errorf("%w: gantry damping must be non-negative", ErrInvalidConfig)
	case g.Dt <= 0:
		return fmt.Errorf("%w: gantry dt must be positive", ErrInvalidConfig)
	case g.StepsPerYield <= 0:
		return fmt.Errorf("%w: steps_per_yield must be positive", ErrInvalidConfig)
	case g.MaxMoveDuration <= 0:
		return fmt.Errorf("%w: max_move_duration must be positive", ErrInvalidConfig)
	case g.PositionTolerance <= 0 || g.VelocityTolerance <= 0:
		return fmt.Errorf("%w: settle tolerances must be positive", ErrInvalidConfig)
	}
	for i, s := range c.MaxSpeed {
		if s <= 0 {
			return fmt.Errorf("%w: max_speed for %s must be positive", ErrInvalidConfig, Axis(i))
		}
	}
	if _, err := integrators.ByName(g.Integrator); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
