/*
	Package colormap maps normalized transmembrane voltage to display colors using ramps of
	evenly spaced control points.
*/
package colormap

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/janelia-flyem/cardiowave/cardio"
	"github.com/janelia-flyem/cardiowave/domain"
)

// RGB is a color with components in [0, 1].
type RGB struct {
	R, G, B float64
}

// Bytes returns the color scaled to 8-bit components.
func (c RGB) Bytes() (r, g, b uint8) {
	return toByte(c.R), toByte(c.G), toByte(c.B)
}

func toByte(x float64) uint8 {
	return uint8(math.Round(255 * math.Max(0, math.Min(1, x))))
}

// Ramp is an ordered list of control points evenly spaced on [0, 1].
type Ramp struct {
	Name   string
	Points []RGB
}

// Map returns the color for voltage v.  v is clamped to [0, 1] and NaN maps like 0.
// Map(0) and Map(1) are exactly the first and last control points.
func (r Ramp) Map(v float64) RGB {
	n := len(r.Points)
	switch {
	case n == 0:
		return RGB{}
	case n == 1 || !(v > 0):
		return r.Points[0]
	case v >= 1:
		return r.Points[n-1]
	}
	t := v * float64(n-1)
	i := int(t)
	if i >= n-1 {
		return r.Points[n-1]
	}
	frac := t - float64(i)
	a, b := r.Points[i], r.Points[i+1]
	return RGB{
		R: a.R + (b.R-a.R)*frac,
		G: a.G + (b.G-a.G)*frac,
		B: a.B + (b.B-a.B)*frac,
	}
}

// RGBA packs the color of each voltage into 4 bytes with opaque alpha.
func (r Ramp) RGBA(voltages []float64) []byte {
	frame := make([]byte, 4*len(voltages))
	for i, v := range voltages {
		frame[4*i], frame[4*i+1], frame[4*i+2] = r.Map(v).Bytes()
		frame[4*i+3] = 0xff
	}
	return frame
}

// VoltageField returns one color per voxel record of the domain, in record order.
// voltages is indexed by compact index.  Records without a compact index are shown
// at resting voltage 0.
func (r Ramp) VoltageField(voltages []float64, dom *domain.Domain) []RGB {
	records := dom.Records()
	field := make([]RGB, len(records))
	for i, rec := range records {
		var v float64
		if c, found := dom.CompactOf(rec.Texel[0], rec.Texel[1]); found && c < len(voltages) {
			v = voltages[c]
		}
		field[i] = r.Map(v)
	}
	return field
}

// FieldBytes packs VoltageField as 3 bytes per record.
func (r Ramp) FieldBytes(voltages []float64, dom *domain.Domain) []byte {
	field := r.VoltageField(voltages, dom)
	data := make([]byte, 3*len(field))
	for i, c := range field {
		data[3*i], data[3*i+1], data[3*i+2] = c.Bytes()
	}
	return data
}

var (
	rampsMu sync.RWMutex
	ramps   = make(map[string]Ramp)
	current Ramp
)

// Register adds a named ramp, replacing any ramp with the same name.
func Register(r Ramp) error {
	if r.Name == "" {
		return fmt.Errorf("cannot register ramp without a name")
	}
	if len(r.Points) < 2 {
		return fmt.Errorf("ramp %q needs at least 2 control points, got %d", r.Name, len(r.Points))
	}
	rampsMu.Lock()
	ramps[r.Name] = r
	rampsMu.Unlock()
	return nil
}

// Lookup returns the ramp registered under name.
func Lookup(name string) (Ramp, bool) {
	rampsMu.RLock()
	defer rampsMu.RUnlock()
	r, found := ramps[name]
	return r, found
}

// Names returns the sorted names of all registered ramps.
func Names() []string {
	rampsMu.RLock()
	defer rampsMu.RUnlock()
	names := make([]string, 0, len(ramps))
	for name := range ramps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetDefaultRamp switches the process-wide ramp.  Unknown names are ignored and false
// is returned.
func SetDefaultRamp(name string) bool {
	rampsMu.Lock()
	defer rampsMu.Unlock()
	r, found := ramps[name]
	if !found {
		cardio.Debugf("Ignoring unknown color ramp %q\n", name)
		return false
	}
	current = r
	return true
}

// DefaultRamp returns the process-wide ramp.
func DefaultRamp() Ramp {
	rampsMu.RLock()
	defer rampsMu.RUnlock()
	return current
}

// MapVoltageToColor maps v with the process-wide ramp.
func MapVoltageToColor(v float64) RGB {
	return DefaultRamp().Map(v)
}

// RampOrDefault returns the named ramp, or the process-wide ramp if name is empty or
// unknown.
func RampOrDefault(name string) Ramp {
	if name != "" {
		if r, found := Lookup(name); found {
			return r
		}
	}
	return DefaultRamp()
}
