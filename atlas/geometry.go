package atlas

import (
	"fmt"

	"github.com/janelia-flyem/cardiowave/cardio"
)

// Geometry holds the global grid and atlas layout parameters.  NZ is always MX*MY.
type Geometry struct {
	NX, NY, NZ  int32
	MX, MY      int32
	AtlasWidth  int32
	AtlasHeight int32

	// Length is the physical edge length in cm, or 0 if the dataset did not supply one.
	Length float64
}

// Size returns the grid extents as a point.
func (g Geometry) Size() cardio.Point3d {
	return cardio.Point3d{g.NX, g.NY, g.NZ}
}

// AtlasLinear returns the linear atlas index of an atlas position.
func (g Geometry) AtlasLinear(atlasX, atlasY int32) int {
	return int(atlasY)*int(g.AtlasWidth) + int(atlasX)
}

// GridOf maps an atlas position to its grid coordinate.  The z slice is derived from the
// atlas block, with block rows counted from the top of the atlas:
//
//	z = blockX + (my-1-blockY)*mx
//
// This inversion is inherited from how the geometry producer packs slices and must be
// kept as is or neighbors and pacing sites will not line up with the rendered tissue.
func (g Geometry) GridOf(atlasX, atlasY int32) cardio.Point3d {
	// Integer floor of atlasX/width*mx, exact for non-negative positions.
	blockX := int32(int64(atlasX) * int64(g.MX) / int64(g.AtlasWidth))
	blockY := int32(int64(atlasY) * int64(g.MY) / int64(g.AtlasHeight))
	z := blockX + (g.MY-1-blockY)*g.MX
	return cardio.Point3d{atlasX % g.NX, atlasY % g.NY, z}
}

// AtlasOf is the inverse of GridOf for grid coordinates inside the grid.
func (g Geometry) AtlasOf(p cardio.Point3d) (atlasX, atlasY int32) {
	blockX := p[2] % g.MX
	blockY := g.MY - 1 - p[2]/g.MX
	return blockX*g.NX + p[0], blockY*g.NY + p[1]
}

func (g Geometry) String() string {
	return fmt.Sprintf("%d x %d x %d grid in %d x %d atlas (%d x %d blocks)",
		g.NX, g.NY, g.NZ, g.AtlasWidth, g.AtlasHeight, g.MX, g.MY)
}

// VoxelRecord is one active sample of the dataset.
type VoxelRecord struct {
	// Texel is the atlas position.
	Texel cardio.Point2d

	// Grid is the derived 3d grid coordinate.
	Grid cardio.Point3d

	Value    float32
	InDomain bool
}

// Load derives the geometry and ordered voxel records from a dataset.  Records appear in
// atlas storage order.  z is not checked against [0, nz); a well-formed atlas has
// blocks exactly nx x ny texels wide.
func Load(ds *Dataset) ([]VoxelRecord, Geometry, error) {
	if err := ds.Check(); err != nil {
		return nil, Geometry{}, err
	}
	geom := ds.Geometry()
	var records []VoxelRecord
	for i := 0; i < ds.NumTexels(); i++ {
		t := ds.Texel(i)
		if !t.Valid {
			continue
		}
		rec := VoxelRecord{
			Texel:    cardio.Point2d{t.X, t.Y},
			Grid:     geom.GridOf(t.X, t.Y),
			InDomain: t.InDomain,
		}
		if ds.Values != nil {
			rec.Value = ds.Values[i]
		} else if t.InDomain {
			rec.Value = 1
		}
		records = append(records, rec)
	}
	cardio.Debugf("Loaded %d voxel records from %s\n", len(records), geom)
	return records, geom, nil
}
