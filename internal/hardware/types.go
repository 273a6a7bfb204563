package hardware

import (
	"fmt"
	"strings"
)

// Axis names one motor of the gantry. X and Y move the carriage, Z and A
// raise and lower the left and right mounts, B and C drive the left and
// right plungers.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisA
	AxisB
	AxisC
)

// NumAxes is the number of motors on the gantry.
const NumAxes = 6

var axisNames = [NumAxes]string{"X", "Y", "Z", "A", "B", "C"}

func (a Axis) String() string {
	if a < 0 || int(a) >= NumAxes {
		return fmt.Sprintf("Axis(%d)", int(a))
	}
	return axisNames[a]
}

func (a Axis) Valid() bool { return a >= 0 && int(a) < NumAxes }

// ParseAxis resolves an axis by name, ignoring case.
func ParseAxis(name string) (Axis, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range axisNames {
		if n == upper {
			return Axis(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidAxis, name)
}

// Axes returns every axis in order.
func Axes() []Axis {
	out := make([]Axis, NumAxes)
	for i := range out {
		out[i] = Axis(i)
	}
	return out
}

func (a Axis) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAxis, int(a))
	}
	return []byte(a.String()), nil
}

func (a *Axis) UnmarshalText(b []byte) error {
	v, err := ParseAxis(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Mount is one of the two pipette mounts on the carriage.
type Mount int

const (
	MountLeft Mount = iota
	MountRight
)

func (m Mount) String() string {
	switch m {
	case MountLeft:
		return "left"
	case MountRight:
		return "right"
	default:
		return fmt.Sprintf("Mount(%d)", int(m))
	}
}

// Mounts returns both mounts, left first.
func Mounts() []Mount { return []Mount{MountLeft, MountRight} }

func ParseMount(name string) (Mount, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "left", "l":
		return MountLeft, nil
	case "right", "r":
		return MountRight, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMount, name)
}

func (m Mount) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mount) UnmarshalText(b []byte) error {
	v, err := ParseMount(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Axis returns the vertical axis that carries the mount.
func (m Mount) Axis() Axis {
	if m == MountRight {
		return AxisA
	}
	return AxisZ
}

// PlungerAxis returns the axis that drives the mount's plunger.
func (m Mount) PlungerAxis() Axis {
	if m == MountRight {
		return AxisC
	}
	return AxisB
}

// Point is a deck coordinate in millimetres.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func (p Point) Add(o Point) Point { return Point{p.X + o.X, p.Y + o.Y, p.Z + o.Z} }

func (p Point) String() string { return fmt.Sprintf("(%.3f, %.3f, %.3f)", p.X, p.Y, p.Z) }

// Instrument is what the robot reports about one mount. An empty Name
// means nothing is attached.
type Instrument struct {
	Name      string  `json:"name" yaml:"name"`
	ID        string  `json:"id" yaml:"id"`
	TipLength float64 `json:"tip_length" yaml:"tip_length"`
}

func (i Instrument) Attached() bool { return i.Name != "" }

// Sample is a snapshot of the axis positions taken while the robot moves.
type Sample struct {
	// Elapsed is seconds since the API was built. Simulators report
	// simulated time.
	Elapsed   float64
	Positions [NumAxes]float64
}

var tipLengths = map[string]float64{
	"p10_single_v1":   33.0,
	"p10_multi_v1":    33.0,
	"p50_single_v1":   51.7,
	"p50_multi_v1":    51.7,
	"p300_single_v1":  51.7,
	"p300_multi_v1":   51.7,
	"p1000_single_v1": 76.7,
}

// TipLength returns the nominal tip length for a pipette model.
func TipLength(model string) (float64, bool) {
	l, ok := tipLengths[model]
	return l, ok
}
