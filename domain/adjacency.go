package domain

import (
	"github.com/janelia-flyem/cardiowave/cardio"
)

// Direction names one of the six axis-aligned neighbor slots of a cell.
type Direction uint8

const (
	North Direction = iota // +y
	South                  // -y
	East                   // +x
	West                   // -x
	Up                     // +z
	Down                   // -z
)

// NumDirections is the number of neighbors in a 6-connected grid.
const NumDirections = 6

// Offsets holds the grid offset for each Direction.
var Offsets = [NumDirections]cardio.Point3d{
	North: {0, 1, 0},
	South: {0, -1, 0},
	East:  {1, 0, 0},
	West:  {-1, 0, 0},
	Up:    {0, 0, 1},
	Down:  {0, 0, -1},
}

var directionNames = [NumDirections]string{"north", "south", "east", "west", "up", "down"}

func (d Direction) String() string {
	if int(d) < NumDirections {
		return directionNames[d]
	}
	return "unknown direction"
}

// Neighbors is one row of the adjacency table: the compact index of the neighbor in
// each Direction.  A slot holding the cell's own index is a zero-flux boundary.
type Neighbors [NumDirections]int32

// Dispatcher runs fn over the index range [0, n) split into chunks and returns only
// after every chunk has finished.
type Dispatcher interface {
	Dispatch(n int, fn func(lo, hi int)) error
}

// BuildAdjacency derives the neighbor table for every compact index.  Neighbors outside
// the grid or inactive are replaced by the cell itself.  A nil dispatcher runs serially.
func BuildAdjacency(idx *Index, d Dispatcher) ([]Neighbors, error) {
	n := idx.Len()
	adj := make([]Neighbors, n)
	fill := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			p := idx.coords[i]
			for dir, offset := range Offsets {
				nbr, found := idx.CompactIndexOf(p.Add(offset))
				if !found {
					nbr = i
				}
				adj[i][dir] = int32(nbr)
			}
		}
	}
	if d == nil {
		fill(0, n)
		return adj, nil
	}
	if err := d.Dispatch(n, fill); err != nil {
		return nil, err
	}
	return adj, nil
}
