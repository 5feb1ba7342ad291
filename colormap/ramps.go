package colormap

import (
	"github.com/crazy3lf/colorconv"
)

// DefaultName is the ramp in use until SetDefaultRamp picks another.
const DefaultName = "jet"

var builtin = []Ramp{
	{Name: "jet", Points: []RGB{
		{0, 0, 0.5}, {0, 0, 1}, {0, 0.5, 1}, {0, 1, 1}, {0.5, 1, 0.5},
		{1, 1, 0}, {1, 0.5, 0}, {1, 0, 0}, {0.5, 0, 0},
	}},
	{Name: "hot", Points: []RGB{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {1, 1, 1}}},
	{Name: "gray", Points: []RGB{{0, 0, 0}, {1, 1, 1}}},
	{Name: "bwr", Points: []RGB{{0, 0, 1}, {1, 1, 1}, {1, 0, 0}}},
	{Name: "viridis", Points: []RGB{
		{0.267, 0.005, 0.329}, {0.231, 0.322, 0.545}, {0.129, 0.569, 0.549},
		{0.369, 0.788, 0.384}, {0.992, 0.906, 0.145},
	}},
}

// hsvRamp sweeps the hue from blue at rest to red when depolarized.
func hsvRamp(steps int) Ramp {
	r := Ramp{Name: "hsv", Points: make([]RGB, steps)}
	for i := range r.Points {
		hue := 240 * (1 - float64(i)/float64(steps-1))
		red, green, blue, err := colorconv.HSVToRGB(hue, 1, 1)
		if err != nil {
			panic(err)
		}
		r.Points[i] = RGB{float64(red) / 255, float64(green) / 255, float64(blue) / 255}
	}
	return r
}

func init() {
	for _, r := range append(builtin, hsvRamp(9)) {
		if err := Register(r); err != nil {
			panic(err)
		}
	}
	SetDefaultRamp(DefaultName)
}
