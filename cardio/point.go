package cardio

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Point3d is a voxel coordinate in the simulation grid.
type Point3d [3]int32

// Point2d is a texel coordinate in the 2d atlas.
type Point2d [2]int32

// Add returns the addition of two points.
func (p Point3d) Add(p2 Point3d) Point3d {
	return Point3d{p[0] + p2[0], p[1] + p2[1], p[2] + p2[2]}
}

// Sub returns the subtraction of the passed point from the receiver.
func (p Point3d) Sub(p2 Point3d) Point3d {
	return Point3d{p[0] - p2[0], p[1] - p2[1], p[2] - p2[2]}
}

// DistanceSq returns the squared Euclidean distance to a point given in
// possibly fractional grid units.
func (p Point3d) DistanceSq(x, y, z float64) float64 {
	dx := float64(p[0]) - x
	dy := float64(p[1]) - y
	dz := float64(p[2]) - z
	return dx*dx + dy*dy + dz*dz
}

// Distance returns the Euclidean distance between two points.
func (p Point3d) Distance(p2 Point3d) float64 {
	return math.Sqrt(p.DistanceSq(float64(p2[0]), float64(p2[1]), float64(p2[2])))
}

// InBounds returns true if each coordinate is in [0, size) along its axis.
func (p Point3d) InBounds(size Point3d) bool {
	return p[0] >= 0 && p[1] >= 0 && p[2] >= 0 &&
		p[0] < size[0] && p[1] < size[1] && p[2] < size[2]
}

// Prod returns the product of the point elements.
func (p Point3d) Prod() int64 {
	return int64(p[0]) * int64(p[1]) * int64(p[2])
}

func (p Point3d) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p[0], p[1], p[2])
}

func (p Point2d) String() string {
	return fmt.Sprintf("(%d,%d)", p[0], p[1])
}

// StringToPoint3d parses a string of format "%d<sep>%d<sep>%d" into a Point3d.
func StringToPoint3d(str, separator string) (Point3d, error) {
	elems := strings.Split(str, separator)
	if len(elems) != 3 {
		return Point3d{}, fmt.Errorf("cannot convert %q into a 3d point", str)
	}
	var p Point3d
	for i, elem := range elems {
		v, err := strconv.ParseInt(strings.TrimSpace(elem), 10, 32)
		if err != nil {
			return Point3d{}, fmt.Errorf("bad coordinate %q in point %q: %v", elem, str, err)
		}
		p[i] = int32(v)
	}
	return p, nil
}
