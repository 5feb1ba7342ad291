package atlas

import "github.com/janelia-flyem/cardiowave/cardio"

// Synthesize builds a dataset for an nx x ny x (mx*my) grid where a voxel is active if
// the given function returns true.  A nil function makes every voxel active.
func Synthesize(nx, ny, mx, my int, active func(p cardio.Point3d) bool) *Dataset {
	ds := &Dataset{
		NX:         nx,
		NY:         ny,
		MX:         mx,
		MY:         my,
		FullWidth:  nx * mx,
		FullHeight: ny * my,
	}
	geom := ds.Geometry()
	ds.FullTexelIndex = make([]int32, TexelStride*ds.FullWidth*ds.FullHeight)
	for ay := 0; ay < ds.FullHeight; ay++ {
		for ax := 0; ax < ds.FullWidth; ax++ {
			i := TexelStride * (ay*ds.FullWidth + ax)
			ds.FullTexelIndex[i] = int32(ax)
			ds.FullTexelIndex[i+1] = int32(ay)
			ds.FullTexelIndex[i+2] = 1
			if active == nil || active(geom.GridOf(int32(ax), int32(ay))) {
				ds.FullTexelIndex[i+3] = 1
			}
		}
	}
	return ds
}

// Box returns a fully active cuboid of nx x ny x (mx*my) voxels.
func Box(nx, ny, mx, my int) *Dataset {
	return Synthesize(nx, ny, mx, my, nil)
}
