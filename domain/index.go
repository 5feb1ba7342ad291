/*
	Package domain packs the active voxels of an atlas dataset into a compact index space
	and derives the 6-connected neighbor table the integrator walks every step.
*/
package domain

import (
	"fmt"

	"github.com/janelia-flyem/cardiowave/atlas"
	"github.com/janelia-flyem/cardiowave/cardio"
)

// unmapped marks a dense slot with no active voxel.
const unmapped int32 = -1

// Index is a bijection between active atlas positions and compact indices [0, N).
// Compact indices follow atlas storage order of the valid texels.
type Index struct {
	geom atlas.Geometry

	// compact -> atlas position and grid coordinate
	texels []cardio.Point2d
	coords []cardio.Point3d

	// dense atlas linear index -> compact, and dense grid linear index -> compact
	byAtlas []int32
	byGrid  []int32
}

// NewIndex assigns sequential compact indices to the given records.  Records must be in
// atlas storage order, as returned by atlas.Load.  A record repeating an already indexed
// atlas position is skipped.
func NewIndex(records []atlas.VoxelRecord, geom atlas.Geometry) (*Index, error) {
	numTexels := int(geom.AtlasWidth) * int(geom.AtlasHeight)
	gridSize := geom.Size().Prod()
	if numTexels <= 0 || gridSize <= 0 {
		return nil, fmt.Errorf("cannot index voxels of empty geometry %s", geom)
	}
	if gridSize > int64(numTexels) {
		return nil, fmt.Errorf("cannot index %d grid voxels packed into %d atlas texels (%s)", gridSize, numTexels, geom)
	}
	idx := &Index{
		geom:    geom,
		texels:  make([]cardio.Point2d, 0, len(records)),
		coords:  make([]cardio.Point3d, 0, len(records)),
		byAtlas: make([]int32, numTexels),
		byGrid:  make([]int32, gridSize),
	}
	for i := range idx.byAtlas {
		idx.byAtlas[i] = unmapped
	}
	for i := range idx.byGrid {
		idx.byGrid[i] = unmapped
	}

	var dupTexels, dupVoxels int
	for _, rec := range records {
		ax, ay := rec.Texel[0], rec.Texel[1]
		if ax < 0 || ay < 0 || ax >= geom.AtlasWidth || ay >= geom.AtlasHeight {
			return nil, fmt.Errorf("voxel record at atlas %s lies outside %d x %d atlas",
				rec.Texel, geom.AtlasWidth, geom.AtlasHeight)
		}
		lin := geom.AtlasLinear(ax, ay)
		if idx.byAtlas[lin] != unmapped {
			dupTexels++
			continue
		}
		compact := int32(len(idx.texels))
		idx.byAtlas[lin] = compact
		idx.texels = append(idx.texels, rec.Texel)
		idx.coords = append(idx.coords, rec.Grid)

		if g, ok := idx.gridLinear(rec.Grid); ok {
			if idx.byGrid[g] == unmapped {
				idx.byGrid[g] = compact
			} else {
				dupVoxels++
			}
		}
	}
	if dupTexels > 0 {
		cardio.Warningf("Skipped %d voxel records repeating an atlas position\n", dupTexels)
	}
	if dupVoxels > 0 {
		cardio.Warningf("%d atlas texels map onto an already occupied grid voxel\n", dupVoxels)
	}
	return idx, nil
}

func (idx *Index) gridLinear(p cardio.Point3d) (int, bool) {
	if !p.InBounds(idx.geom.Size()) {
		return 0, false
	}
	return int(p[2])*int(idx.geom.NX)*int(idx.geom.NY) + int(p[1])*int(idx.geom.NX) + int(p[0]), true
}

// Len returns the number of active cells N.
func (idx *Index) Len() int {
	return len(idx.texels)
}

// Geometry returns the geometry the index was built for.
func (idx *Index) Geometry() atlas.Geometry {
	return idx.geom
}

// CompactOf returns the compact index of an atlas position, or false if the position
// holds no active voxel.
func (idx *Index) CompactOf(atlasX, atlasY int32) (int, bool) {
	if atlasX < 0 || atlasY < 0 || atlasX >= idx.geom.AtlasWidth || atlasY >= idx.geom.AtlasHeight {
		return 0, false
	}
	c := idx.byAtlas[idx.geom.AtlasLinear(atlasX, atlasY)]
	if c == unmapped {
		return 0, false
	}
	return int(c), true
}

// AtlasPositionOf returns the atlas position of compact index i.  It panics if i is
// out of range.
func (idx *Index) AtlasPositionOf(i int) (atlasX, atlasY int32) {
	t := idx.texels[i]
	return t[0], t[1]
}

// CompactIndexOf returns the compact index of a grid coordinate, or false if the voxel
// is outside the grid or inactive.
func (idx *Index) CompactIndexOf(p cardio.Point3d) (int, bool) {
	g, ok := idx.gridLinear(p)
	if !ok {
		return 0, false
	}
	c := idx.byGrid[g]
	if c == unmapped {
		return 0, false
	}
	return int(c), true
}

// GridCoordinateOf returns the grid coordinate of compact index i.  It panics if i is
// out of range.
func (idx *Index) GridCoordinateOf(i int) cardio.Point3d {
	return idx.coords[i]
}
