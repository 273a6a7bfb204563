package hardware

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseAxis(t *testing.T) {
	tests := []struct {
		in      string
		want    Axis
		wantErr bool
	}{
		{"x", AxisX, false},
		{"Y", AxisY, false},
		{" z ", AxisZ, false},
		{"a", AxisA, false},
		{"B", AxisB, false},
		{"c", AxisC, false},
		{"q", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseAxis(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidAxis, "ParseAxis(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "ParseAxis(%q)", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestMountAxes(t *testing.T) {
	assert.Equal(t, AxisZ, MountLeft.Axis())
	assert.Equal(t, AxisA, MountRight.Axis())
	assert.Equal(t, AxisB, MountLeft.PlungerAxis())
	assert.Equal(t, AxisC, MountRight.PlungerAxis())
	assert.Equal(t, "left", MountLeft.String())
	assert.Equal(t, "right", MountRight.String())
}

func TestTextUnmarshalling(t *testing.T) {
	var args struct {
		Axes  []Axis `json:"axes"`
		Mount Mount  `json:"mount"`
		To    Point  `json:"to"`
	}
	err := json.Unmarshal([]byte(`{"axes":["x","b"],"mount":"right","to":{"x":1,"y":2,"z":3}}`), &args)
	require.NoError(t, err)
	assert.Equal(t, []Axis{AxisX, AxisB}, args.Axes)
	assert.Equal(t, MountRight, args.Mount)
	assert.Equal(t, Point{1, 2, 3}, args.To)

	var ax Axis
	assert.ErrorIs(t, ax.UnmarshalText([]byte("w")), ErrInvalidAxis)
	var m Mount
	assert.ErrorIs(t, m.UnmarshalText([]byte("middle")), ErrInvalidMount)
}

func TestAxisValuesYAML(t *testing.T) {
	v := AxisValues{1, 2, 3, 4, 5, 6}
	out, err := yaml.Marshal(v)
	require.NoError(t, err)

	var back AxisValues
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, v, back)

	partial := AxisValues{9, 9, 9, 9, 9, 9}
	require.NoError(t, yaml.Unmarshal([]byte("x: 1\nc: 2\n"), &partial))
	assert.Equal(t, AxisValues{1, 9, 9, 9, 9, 2}, partial)

	assert.Error(t, yaml.Unmarshal([]byte("w: 1\n"), &partial))
}

func TestConfigIsAValue(t *testing.T) {
	a := DefaultConfig()
	b := a
	b.HomePosition[AxisX] = 1
	b.Gantry.Gains.Kp = 1
	assert.NotEqual(t, a.HomePosition[AxisX], b.HomePosition[AxisX])
	assert.NotEqual(t, a.Gantry.Gains.Kp, b.Gantry.Gains.Kp)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero mass", func(c *Config) { c.Gantry.Mass = 0 }},
		{"zero dt", func(c *Config) { c.Gantry.Dt = 0 }},
		{"zero yield", func(c *Config) { c.Gantry.StepsPerYield = 0 }},
		{"no speed", func(c *Config) { c.MaxSpeed[AxisB] = 0 }},
		{"bad integrator", func(c *Config) { c.Gantry.Integrator = "leapfrog" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestTipLength(t *testing.T) {
	l, ok := TipLength("p300_single_v1")
	assert.True(t, ok)
	assert.InDelta(t, 51.7, l, 1e-9)

	_, ok = TipLength("p5000_single_v9")
	assert.False(t, ok)
}
