package domain

import (
	"errors"
	"sync"
	"testing"

	. "github.com/janelia-flyem/go/gocheck"

	"github.com/janelia-flyem/cardiowave/atlas"
	"github.com/janelia-flyem/cardiowave/cardio"
)

func Test(t *testing.T) { TestingT(t) }

type DomainSuite struct{}

var _ = Suite(&DomainSuite{})

// chunked splits work across goroutines the way a pooled kernel does.
type chunked int

func (c chunked) Dispatch(n int, fn func(lo, hi int)) error {
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += int(c) {
		hi := lo + int(c)
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
	return nil
}

type failing struct{}

func (failing) Dispatch(n int, fn func(lo, hi int)) error {
	return errors.New("no workers")
}

// holey is a 4 x 3 x 4 grid with a missing column and a missing voxel.
func holey() *atlas.Dataset {
	return atlas.Synthesize(4, 3, 2, 2, func(p cardio.Point3d) bool {
		if p[0] == 3 && p[1] == 0 {
			return false
		}
		return p != cardio.Point3d{1, 1, 1}
	})
}

func (s *DomainSuite) TestBijection(c *C) {
	dom, err := FromDataset(holey(), nil)
	c.Assert(err, IsNil)
	c.Assert(dom.Len(), Equals, 4*3*4-4-1)
	c.Assert(dom.Check(), IsNil)

	for i := 0; i < dom.Len(); i++ {
		ax, ay := dom.AtlasPositionOf(i)
		j, found := dom.CompactOf(ax, ay)
		c.Assert(found, Equals, true)
		c.Assert(j, Equals, i)

		p := dom.GridCoordinateOf(i)
		j, found = dom.CompactIndexOf(p)
		c.Assert(found, Equals, true)
		c.Assert(j, Equals, i)
	}

	_, found := dom.CompactIndexOf(cardio.Point3d{1, 1, 1})
	c.Assert(found, Equals, false)
	_, found = dom.CompactIndexOf(cardio.Point3d{0, 0, 4})
	c.Assert(found, Equals, false)
	_, found = dom.CompactOf(-1, 0)
	c.Assert(found, Equals, false)
	_, found = dom.CompactOf(8, 0)
	c.Assert(found, Equals, false)
}

func (s *DomainSuite) TestIndexFollowsStorageOrder(c *C) {
	dom, err := FromDataset(atlas.Box(2, 2, 2, 1), nil)
	c.Assert(err, IsNil)
	geom := dom.Geometry()
	prev := -1
	for i := 0; i < dom.Len(); i++ {
		ax, ay := dom.AtlasPositionOf(i)
		lin := geom.AtlasLinear(ax, ay)
		c.Assert(lin > prev, Equals, true, Commentf("compact %d at atlas linear %d", i, lin))
		prev = lin
	}
}

func (s *DomainSuite) TestBoundaryClosure(c *C) {
	dom, err := FromDataset(holey(), nil)
	c.Assert(err, IsNil)
	size := dom.Geometry().Size()
	for i, row := range dom.Adjacency() {
		p := dom.GridCoordinateOf(i)
		for dir, nbr := range row {
			c.Assert(nbr >= 0 && int(nbr) < dom.Len(), Equals, true)
			q := p.Add(Offsets[dir])
			j, active := dom.CompactIndexOf(q)
			if !q.InBounds(size) || !active {
				c.Assert(int(nbr), Equals, i, Commentf("cell %s direction %s", p, Direction(dir)))
			} else {
				c.Assert(int(nbr), Equals, j)
				c.Assert(dom.GridCoordinateOf(j), Equals, q)
			}
		}
	}

	// voxel (1,0,1) sits south of the hole at (1,1,1)
	i, found := dom.CompactIndexOf(cardio.Point3d{1, 0, 1})
	c.Assert(found, Equals, true)
	c.Assert(int(dom.NeighborsOf(i)[North]), Equals, i)
	c.Assert(int(dom.NeighborsOf(i)[South]), Equals, i)
}

func (s *DomainSuite) TestBoxBoundary(c *C) {
	dom, err := FromDataset(atlas.Box(3, 3, 3, 1), nil)
	c.Assert(err, IsNil)
	c.Assert(dom.Len(), Equals, 27)
	c.Assert(dom.Boundary(), Equals, 6*9)

	center, found := dom.CompactIndexOf(cardio.Point3d{1, 1, 1})
	c.Assert(found, Equals, true)
	for dir, nbr := range dom.NeighborsOf(center) {
		c.Assert(dom.GridCoordinateOf(int(nbr)), Equals, cardio.Point3d{1, 1, 1}.Add(Offsets[dir]))
	}

	single, err := FromDataset(atlas.Box(1, 1, 1, 1), nil)
	c.Assert(err, IsNil)
	c.Assert(single.NeighborsOf(0), Equals, Neighbors{})
}

func (s *DomainSuite) TestDeterministicAcrossDispatchers(c *C) {
	serial, err := FromDataset(holey(), nil)
	c.Assert(err, IsNil)
	for _, chunk := range []int{1, 5, 7, 1000} {
		parallel, err := FromDataset(holey(), chunked(chunk))
		c.Assert(err, IsNil)
		c.Assert(parallel.Adjacency(), DeepEquals, serial.Adjacency())
	}

	_, err = FromDataset(holey(), failing{})
	c.Assert(err, NotNil)
}

func (s *DomainSuite) TestDegenerate(c *C) {
	dom, err := FromDataset(atlas.Synthesize(2, 2, 1, 1, func(cardio.Point3d) bool { return false }), nil)
	c.Assert(err, IsNil)
	c.Assert(dom.Len(), Equals, 0)
	var degenerate *cardio.DegenerateDomainError
	c.Assert(errors.As(dom.Check(), &degenerate), Equals, true)
	c.Assert(degenerate.AtlasTexels, Equals, 4)
}

func (s *DomainSuite) TestGridLargerThanAtlas(c *C) {
	geom := atlas.Geometry{NX: 1 << 20, NY: 1 << 20, NZ: 1, MX: 1, MY: 1, AtlasWidth: 1, AtlasHeight: 1}
	_, err := NewIndex(nil, geom)
	c.Assert(err, NotNil)
}

func (s *DomainSuite) TestDuplicateTexels(c *C) {
	ds := atlas.Box(2, 1, 1, 1)
	// second texel claims the first one's atlas position
	ds.FullTexelIndex[4] = 0
	dom, err := FromDataset(ds, nil)
	c.Assert(err, IsNil)
	c.Assert(dom.Len(), Equals, 1)
	c.Assert(len(dom.Records()), Equals, 2)
}

func (s *DomainSuite) TestDirectionNames(c *C) {
	c.Assert(North.String(), Equals, "north")
	c.Assert(Down.String(), Equals, "down")
	c.Assert(Direction(9).String(), Equals, "unknown direction")
}
