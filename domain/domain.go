package domain

import (
	"github.com/janelia-flyem/cardiowave/atlas"
	"github.com/janelia-flyem/cardiowave/cardio"
)

// Domain is the immutable simulation domain: the voxel records of a dataset, their compact
// index and the neighbor table.  It is safe for concurrent readers.
type Domain struct {
	*Index

	records   []atlas.VoxelRecord
	adjacency []Neighbors
}

// New builds the compact index and adjacency table for loaded voxel records.
func New(records []atlas.VoxelRecord, geom atlas.Geometry, d Dispatcher) (*Domain, error) {
	timedLog := cardio.NewTimeLog()
	idx, err := NewIndex(records, geom)
	if err != nil {
		return nil, err
	}
	adj, err := BuildAdjacency(idx, d)
	if err != nil {
		return nil, err
	}
	timedLog.Debugf("Built adjacency for %d active voxels of %s", idx.Len(), geom)
	return &Domain{Index: idx, records: records, adjacency: adj}, nil
}

// FromDataset loads a dataset and builds its domain.
func FromDataset(ds *atlas.Dataset, d Dispatcher) (*Domain, error) {
	records, geom, err := atlas.Load(ds)
	if err != nil {
		return nil, err
	}
	return New(records, geom, d)
}

// Check returns a DegenerateDomainError if no voxel is active.
func (dom *Domain) Check() error {
	if dom.Len() == 0 {
		return &cardio.DegenerateDomainError{
			AtlasTexels: int(dom.geom.AtlasWidth) * int(dom.geom.AtlasHeight),
		}
	}
	return nil
}

// Records returns the voxel records in atlas storage order.  The slice must not be modified.
func (dom *Domain) Records() []atlas.VoxelRecord {
	return dom.records
}

// Adjacency returns the neighbor table indexed by compact index.  The slice must not be
// modified.
func (dom *Domain) Adjacency() []Neighbors {
	return dom.adjacency
}

// NeighborsOf returns the neighbor row of compact index i.
func (dom *Domain) NeighborsOf(i int) Neighbors {
	return dom.adjacency[i]
}

// Boundary returns the number of neighbor slots closed off as zero-flux boundaries.
func (dom *Domain) Boundary() int {
	var n int
	for i, row := range dom.adjacency {
		for _, nbr := range row {
			if int(nbr) == i {
				n++
			}
		}
	}
	return n
}
