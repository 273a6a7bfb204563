package config

import "sort"

// Preset is a named hardware profile.
type Preset struct {
	Description string
	apply       func(*Config)
}

var Presets = map[string]Preset{
	"standard": {
		Description: "default gantry, simulated as fast as possible",
		apply:       func(*Config) {},
	},
	"realtime": {
		Description: "default gantry paced against the wall clock",
		apply: func(c *Config) {
			c.Robot.Gantry.RealTime = true
		},
	},
	"heavy": {
		Description: "loaded carriage with stiffer servo gains",
		apply: func(c *Config) {
			c.Robot.Gantry.Mass = 4.0
			c.Robot.Gantry.Damping = 20
			c.Robot.Gantry.MaxForce = 4000
			c.Robot.Gantry.Gains.Kp = 1600
			c.Robot.Gantry.Gains.Kd = 140
		},
	},
	"coarse": {
		Description: "larger time step for quick protocol checks",
		apply: func(c *Config) {
			c.Robot.Gantry.Dt = 0.005
			c.Robot.Gantry.StepsPerYield = 20
			c.Robot.Gantry.PositionTolerance = 0.05
			c.Robot.Gantry.VelocityTolerance = 0.2
		},
	},
	"euler": {
		Description: "explicit Euler integration with a fine step",
		apply: func(c *Config) {
			c.Robot.Gantry.Integrator = "euler"
			c.Robot.Gantry.Dt = 0.0005
			c.Robot.Gantry.StepsPerYield = 100
		},
	},
	"dual": {
		Description: "pipettes simulated on both mounts",
		apply: func(c *Config) {
			c.Instruments = map[string]Instrument{
				"left":  {Model: "p10_single_v1", ID: "P10SV1-SIM"},
				"right": {Model: "p1000_single_v1", ID: "P1KSV1-SIM"},
			}
		},
	},
}

// GetPreset returns the default configuration with the named preset
// applied, or nil if there is no such preset.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	p.apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
