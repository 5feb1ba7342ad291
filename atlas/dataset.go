/*
	Package atlas reads sparse voxel datasets packed into a 2d texel atlas and derives the
	grid geometry and the voxel records the simulation domain is built from.

	An atlas of fullWidth x fullHeight texels is divided into mx x my blocks of nx x ny texels.
	Each block holds one z slice of the nx x ny x (mx*my) grid.  Every texel carries four
	integers: its atlas x and y, an in-domain flag, and a valid flag.  Only valid texels are
	active tissue.
*/
package atlas

//go:generate msgp -io=false -tests=false

import (
	"math"

	"github.com/janelia-flyem/cardiowave/cardio"
)

// TexelStride is the number of integers stored per atlas texel.
const TexelStride = 4

// Dataset is the sparse voxel dataset handed over by the geometry producer.
type Dataset struct {
	NX         int `json:"nx" msg:"nx"`
	NY         int `json:"ny" msg:"ny"`
	MX         int `json:"mx" msg:"mx"`
	MY         int `json:"my" msg:"my"`
	FullWidth  int `json:"fullWidth" msg:"fullWidth"`
	FullHeight int `json:"fullHeight" msg:"fullHeight"`

	// FullTexelIndex holds TexelStride integers per texel in atlas storage order:
	// atlasX, atlasY, inDomain, valid.
	FullTexelIndex []int32 `json:"fullTexelIndex" msg:"fullTexelIndex"`

	// Values is an optional per-texel scalar.  If absent, the in-domain flag is used.
	Values []float32 `json:"values,omitempty" msg:"values"`

	Threshold float64 `json:"threshold" msg:"threshold"`

	// Length is the optional physical edge length of the domain in cm.
	Length float64 `json:"length,omitempty" msg:"length"`
}

// Texel is one decoded atlas entry.
type Texel struct {
	X, Y     int32
	InDomain bool
	Valid    bool
}

// NumTexels returns the number of texels in the atlas.
func (ds *Dataset) NumTexels() int {
	return len(ds.FullTexelIndex) / TexelStride
}

// Texel returns the i-th texel in atlas storage order without bounds checking.
func (ds *Dataset) Texel(i int) Texel {
	t := ds.FullTexelIndex[i*TexelStride : i*TexelStride+TexelStride]
	return Texel{X: t[0], Y: t[1], InDomain: t[2] != 0, Valid: t[3] != 0}
}

// Check returns a MalformedDatasetError if required metadata is absent or inconsistent.
func (ds *Dataset) Check() error {
	if ds == nil {
		return cardio.NewMalformedDatasetError("", "is nil")
	}
	dims := []struct {
		name string
		val  int
	}{
		{"nx", ds.NX}, {"ny", ds.NY}, {"mx", ds.MX}, {"my", ds.MY},
		{"fullWidth", ds.FullWidth}, {"fullHeight", ds.FullHeight},
	}
	for _, dim := range dims {
		if dim.val <= 0 {
			return cardio.NewMalformedDatasetError(dim.name, "must be positive, got %d", dim.val)
		}
		if dim.val > math.MaxInt32 {
			return cardio.NewMalformedDatasetError(dim.name, "%d exceeds %d", dim.val, math.MaxInt32)
		}
	}
	if slices := int64(ds.MX) * int64(ds.MY); slices > math.MaxInt32 {
		return cardio.NewMalformedDatasetError("my", "gives %d z slices, more than %d", slices, math.MaxInt32)
	}
	if width := int64(ds.NX) * int64(ds.MX); width > int64(ds.FullWidth) {
		return cardio.NewMalformedDatasetError("fullWidth", "%d is narrower than nx*mx = %d", ds.FullWidth, width)
	}
	if height := int64(ds.NY) * int64(ds.MY); height > int64(ds.FullHeight) {
		return cardio.NewMalformedDatasetError("fullHeight", "%d is shorter than ny*my = %d", ds.FullHeight, height)
	}
	if texels := int64(ds.FullWidth) * int64(ds.FullHeight); texels > math.MaxInt32 {
		return cardio.NewMalformedDatasetError("fullWidth", "atlas of %d texels exceeds %d", texels, math.MaxInt32)
	}
	if len(ds.FullTexelIndex)%TexelStride != 0 {
		return cardio.NewMalformedDatasetError("fullTexelIndex", "length %d is not a multiple of %d",
			len(ds.FullTexelIndex), TexelStride)
	}
	numTexels := ds.FullWidth * ds.FullHeight
	if ds.NumTexels() != numTexels {
		return cardio.NewMalformedDatasetError("fullTexelIndex", "has %d texels, atlas is %d x %d",
			ds.NumTexels(), ds.FullWidth, ds.FullHeight)
	}
	if ds.Values != nil && len(ds.Values) != numTexels {
		return cardio.NewMalformedDatasetError("values", "has %d entries, expected %d", len(ds.Values), numTexels)
	}
	if ds.Length < 0 {
		return cardio.NewMalformedDatasetError("length", "must not be negative, got %g", ds.Length)
	}
	for i := 0; i < numTexels; i++ {
		t := ds.Texel(i)
		if !t.Valid {
			continue
		}
		if t.X < 0 || t.Y < 0 || int(t.X) >= ds.FullWidth || int(t.Y) >= ds.FullHeight {
			return cardio.NewMalformedDatasetError("fullTexelIndex", "texel %d has atlas position (%d,%d) outside %d x %d atlas",
				i, t.X, t.Y, ds.FullWidth, ds.FullHeight)
		}
	}
	return nil
}

// Geometry returns the grid geometry described by the dataset.
func (ds *Dataset) Geometry() Geometry {
	return Geometry{
		NX:          int32(ds.NX),
		NY:          int32(ds.NY),
		NZ:          int32(ds.MX * ds.MY),
		MX:          int32(ds.MX),
		MY:          int32(ds.MY),
		AtlasWidth:  int32(ds.FullWidth),
		AtlasHeight: int32(ds.FullHeight),
		Length:      ds.Length,
	}
}
