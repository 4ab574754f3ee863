package core

import "fmt"

// Point is an (x, y) coordinate in data space. It marshals as a JSON [x, y] pair.
type Point [2]float64

// NewPoint builds a Point from its coordinates.
func NewPoint(x, y float64) Point {
	return Point{x, y}
}

// X returns the horizontal coordinate.
func (p Point) X() float64 { return p[0] }

// Y returns the vertical coordinate.
func (p Point) Y() float64 { return p[1] }

// Slice returns the coordinates as a fresh slice, for numeric helpers that want []float64.
func (p Point) Slice() []float64 {
	return []float64{p[0], p[1]}
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p[0], p[1])
}

// Dataset is the raw point set produced once per session initialization.
type Dataset []Point

// CentroidSet holds one representative point per cluster, index-aligned with a Partition.
type CentroidSet []Point

// Partition groups the dataset by cluster. Group i belongs to centroid i.
type Partition [][]Point

// Clone returns an independent copy of the dataset.
func (d Dataset) Clone() Dataset {
	if d == nil {
		return nil
	}
	out := make(Dataset, len(d))
	copy(out, d)
	return out
}

// Clone returns an independent copy of the centroid set.
func (c CentroidSet) Clone() CentroidSet {
	if c == nil {
		return nil
	}
	out := make(CentroidSet, len(c))
	copy(out, c)
	return out
}

// Clone returns a deep copy of the partition.
func (p Partition) Clone() Partition {
	if p == nil {
		return nil
	}
	out := make(Partition, len(p))
	for i, group := range p {
		out[i] = make([]Point, len(group))
		copy(out[i], group)
	}
	return out
}

// Size returns the total number of points across all groups.
func (p Partition) Size() int {
	n := 0
	for _, group := range p {
		n += len(group)
	}
	return n
}

// Bounds returns the axis-aligned bounding box of the given point sets.
// ok is false when every set is empty.
func Bounds(sets ...[]Point) (min, max Point, ok bool) {
	for _, set := range sets {
		for _, p := range set {
			if !ok {
				min, max, ok = p, p, true
				continue
			}
			if p[0] < min[0] {
				min[0] = p[0]
			}
			if p[1] < min[1] {
				min[1] = p[1]
			}
			if p[0] > max[0] {
				max[0] = p[0]
			}
			if p[1] > max[1] {
				max[1] = p[1]
			}
		}
	}
	return min, max, ok
}
