package selection

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Kind names a selection shape.
type Kind string

const (
	KindPoint     Kind = "point"
	KindSphere    Kind = "sphere"
	KindBox       Kind = "box"
	KindGridPatch Kind = "grid"
	KindSlice     Kind = "slice"
	KindOrthoRay  Kind = "ortho_ray"
)

// coverageSamples is the number of sub-cell samples per axis used to estimate
// how much of a cell lies inside a curved region.
const coverageSamples = 8

// Shape is the region a selector tests against. The set of shapes is closed:
// Point, Sphere, Box, GridPatch, Slice and OrthoRay.
type Shape interface {
	Kind() Kind

	validate() error

	// Whether pos is part of the region.
	selectPoint(s *Selector, pos Vector3) bool

	// Whether the sphere centered at pos intersects the region.
	selectSphere(s *Selector, pos Vector3, radius float64) bool

	// Whether the box [left, right) intersects the region.
	selectBBox(s *Selector, left, right Vector3) bool

	// The strict per-cell test.
	selectCell(s *Selector, center, width Vector3) bool

	// The fraction of the cell volume inside the region.
	coverage(s *Selector, center, width Vector3) float64
}

// Point selects the single cell containing Position.
type Point struct {
	Position Vector3
}

func (p Point) Kind() Kind {
	return KindPoint
}

func (p Point) validate() error {
	if !p.Position.IsFinite() {
		return errors.New("point position is not finite").
			WithTag("position", p.Position)
	}
	return nil
}

func (p Point) selectPoint(s *Selector, pos Vector3) bool {
	for axis := 0; axis < 3; axis++ {
		if s.Difference(pos[axis], p.Position[axis], axis) != 0 {
			return false
		}
	}
	return true
}

func (p Point) selectSphere(s *Selector, pos Vector3, radius float64) bool {
	return s.distance2(pos, p.Position) <= radius*radius
}

func (p Point) selectBBox(s *Selector, left, right Vector3) bool {
	for axis := 0; axis < 3; axis++ {
		if !s.contains1D(p.Position[axis], left[axis], right[axis], axis) {
			return false
		}
	}
	return true
}

func (p Point) selectCell(s *Selector, center, width Vector3) bool {
	half := width.Scale(0.5)
	return p.selectBBox(s, center.Sub(half), center.Add(half))
}

func (p Point) coverage(s *Selector, center, width Vector3) float64 {
	if p.selectCell(s, center, width) {
		return 1
	}
	return 0
}

// Sphere selects the cells whose center lies within Radius of Center, plus
// the cell containing Center.
type Sphere struct {
	Center Vector3
	Radius float64
}

func (sp Sphere) Kind() Kind {
	return KindSphere
}

func (sp Sphere) validate() error {
	if !sp.Center.IsFinite() {
		return errors.New("sphere center is not finite").
			WithTag("center", sp.Center)
	}

	if !isFinite(sp.Radius) || sp.Radius < 0 {
		return errors.New("sphere radius is negative").
			WithTag("radius", sp.Radius)
	}
	return nil
}

func (sp Sphere) selectPoint(s *Selector, pos Vector3) bool {
	return s.distance2(pos, sp.Center) <= sp.Radius*sp.Radius
}

func (sp Sphere) selectSphere(s *Selector, pos Vector3, radius float64) bool {
	r := sp.Radius + radius
	return s.distance2(pos, sp.Center) <= r*r
}

func (sp Sphere) selectBBox(s *Selector, left, right Vector3) bool {
	r2 := sp.Radius * sp.Radius

	var d2 float64
	for axis := 0; axis < 3; axis++ {
		d := s.axisDistance(sp.Center[axis], left[axis], right[axis], axis)
		d2 += d * d
		if d2 > r2 {
			return false
		}
	}
	return true
}

func (sp Sphere) selectCell(s *Selector, center, width Vector3) bool {
	if sp.selectPoint(s, center) {
		return true
	}

	half := width.Scale(0.5)
	left, right := center.Sub(half), center.Add(half)
	for axis := 0; axis < 3; axis++ {
		if !s.contains1D(sp.Center[axis], left[axis], right[axis], axis) {
			return false
		}
	}
	return true
}

func (sp Sphere) coverage(s *Selector, center, width Vector3) float64 {
	half := width.Scale(0.5)
	if !sp.selectBBox(s, center.Sub(half), center.Add(half)) {
		return 0
	}

	inside := 0
	for corner := 0; corner < 8; corner++ {
		if sp.selectPoint(s, center.Add(octantOffset(corner).Mul(half))) {
			inside++
		}
	}
	if inside == 8 {
		return 1
	}

	step := width.Scale(1.0 / coverageSamples)
	origin := center.Sub(half).Add(step.Scale(0.5))

	count := 0
	for i := 0; i < coverageSamples; i++ {
		for j := 0; j < coverageSamples; j++ {
			for k := 0; k < coverageSamples; k++ {
				sample := origin.Add(step.Mul(Vector3{float64(i), float64(j), float64(k)}))
				if sp.selectPoint(s, sample) {
					count++
				}
			}
		}
	}
	// The cell intersects the sphere, so it never weighs less than one sample.
	if count == 0 {
		count = 1
	}
	return float64(count) / (coverageSamples * coverageSamples * coverageSamples)
}

// Box selects the points of [LeftEdge, RightEdge). Under the strict policy a
// cell is selected only when it lies entirely inside the box.
type Box struct {
	LeftEdge  Vector3
	RightEdge Vector3
}

func (b Box) Kind() Kind {
	return KindBox
}

func (b Box) validate() error {
	if !b.LeftEdge.IsFinite() || !b.RightEdge.IsFinite() {
		return errors.New("box edges are not finite").
			WithTag("left_edge", b.LeftEdge).
			WithTag("right_edge", b.RightEdge)
	}

	for axis := 0; axis < 3; axis++ {
		if b.LeftEdge[axis] >= b.RightEdge[axis] {
			return errors.New("box left edge is not lower than its right edge").
				WithTag("axis", axis).
				WithTag("left_edge", b.LeftEdge).
				WithTag("right_edge", b.RightEdge)
		}
	}
	return nil
}

func (b Box) selectPoint(s *Selector, pos Vector3) bool {
	for axis := 0; axis < 3; axis++ {
		if !s.contains1D(pos[axis], b.LeftEdge[axis], b.RightEdge[axis], axis) {
			return false
		}
	}
	return true
}

func (b Box) selectSphere(s *Selector, pos Vector3, radius float64) bool {
	r2 := radius * radius

	var d2 float64
	for axis := 0; axis < 3; axis++ {
		d := s.axisDistance(pos[axis], b.LeftEdge[axis], b.RightEdge[axis], axis)
		d2 += d * d
		if d2 > r2 {
			return false
		}
	}
	return true
}

func (b Box) selectBBox(s *Selector, left, right Vector3) bool {
	for axis := 0; axis < 3; axis++ {
		if !s.overlaps1D(left[axis], right[axis], b.LeftEdge[axis], b.RightEdge[axis], axis) {
			return false
		}
	}
	return true
}

func (b Box) selectCell(s *Selector, center, width Vector3) bool {
	half := width.Scale(0.5)
	left, right := center.Sub(half), center.Add(half)
	for axis := 0; axis < 3; axis++ {
		if !s.encloses1D(left[axis], right[axis], b.LeftEdge[axis], b.RightEdge[axis], axis) {
			return false
		}
	}
	return true
}

func (b Box) coverage(s *Selector, center, width Vector3) float64 {
	half := width.Scale(0.5)
	left, right := center.Sub(half), center.Add(half)

	fraction := 1.0
	for axis := 0; axis < 3; axis++ {
		if width[axis] <= 0 {
			return 0
		}
		fraction *= s.overlapLength(left[axis], right[axis], b.LeftEdge[axis], b.RightEdge[axis], axis) / width[axis]
		if fraction == 0 {
			return 0
		}
	}
	return fraction
}

// GridPatch selects the cells of a grid patch volume, down to the patch
// refinement level.
type GridPatch struct {
	LeftEdge  Vector3
	RightEdge Vector3
	Level     int
}

func (g GridPatch) Kind() Kind {
	return KindGridPatch
}

func (g GridPatch) box() Box {
	return Box{LeftEdge: g.LeftEdge, RightEdge: g.RightEdge}
}

func (g GridPatch) validate() error {
	if g.Level < 0 || g.Level > MaxLevelLimit {
		return errors.New("grid patch level is out of range").
			WithTag("level", g.Level)
	}
	return g.box().validate()
}

func (g GridPatch) selectPoint(s *Selector, pos Vector3) bool {
	return g.box().selectPoint(s, pos)
}

func (g GridPatch) selectSphere(s *Selector, pos Vector3, radius float64) bool {
	return g.box().selectSphere(s, pos, radius)
}

func (g GridPatch) selectBBox(s *Selector, left, right Vector3) bool {
	return g.box().selectBBox(s, left, right)
}

func (g GridPatch) selectCell(s *Selector, center, width Vector3) bool {
	return g.box().selectCell(s, center, width)
}

func (g GridPatch) coverage(s *Selector, center, width Vector3) float64 {
	return g.box().coverage(s, center, width)
}

// Slice selects the cells crossed by the plane normal to Axis at Coord.
type Slice struct {
	Axis  int
	Coord float64
}

func (sl Slice) Kind() Kind {
	return KindSlice
}

func (sl Slice) validate() error {
	if sl.Axis < 0 || sl.Axis > 2 {
		return errors.New("slice axis is out of range").
			WithTag("axis", sl.Axis)
	}

	if !isFinite(sl.Coord) {
		return errors.New("slice coordinate is not finite").
			WithTag("coord", sl.Coord)
	}
	return nil
}

func (sl Slice) selectPoint(s *Selector, pos Vector3) bool {
	return s.Difference(pos[sl.Axis], sl.Coord, sl.Axis) == 0
}

func (sl Slice) selectSphere(s *Selector, pos Vector3, radius float64) bool {
	d := s.Difference(pos[sl.Axis], sl.Coord, sl.Axis)
	return d*d <= radius*radius
}

func (sl Slice) selectBBox(s *Selector, left, right Vector3) bool {
	return s.contains1D(sl.Coord, left[sl.Axis], right[sl.Axis], sl.Axis)
}

func (sl Slice) selectCell(s *Selector, center, width Vector3) bool {
	half := width.Scale(0.5)
	return sl.selectBBox(s, center.Sub(half), center.Add(half))
}

func (sl Slice) coverage(s *Selector, center, width Vector3) float64 {
	if sl.selectCell(s, center, width) {
		return 1
	}
	return 0
}

// OrthoRay selects the cells crossed by the line parallel to Axis passing
// through Coords on the two other axes, taken in increasing axis order.
type OrthoRay struct {
	Axis   int
	Coords [2]float64
}

func (r OrthoRay) Kind() Kind {
	return KindOrthoRay
}

func (r OrthoRay) axes() (int, int) {
	switch r.Axis {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	default:
		return 0, 1
	}
}

func (r OrthoRay) validate() error {
	if r.Axis < 0 || r.Axis > 2 {
		return errors.New("ray axis is out of range").
			WithTag("axis", r.Axis)
	}

	if !isFinite(r.Coords[0]) || !isFinite(r.Coords[1]) {
		return errors.New("ray coordinates are not finite").
			WithTag("coords", r.Coords)
	}
	return nil
}

func (r OrthoRay) selectPoint(s *Selector, pos Vector3) bool {
	px, py := r.axes()
	return s.Difference(pos[px], r.Coords[0], px) == 0 &&
		s.Difference(pos[py], r.Coords[1], py) == 0
}

func (r OrthoRay) selectSphere(s *Selector, pos Vector3, radius float64) bool {
	px, py := r.axes()
	dx := s.Difference(pos[px], r.Coords[0], px)
	dy := s.Difference(pos[py], r.Coords[1], py)
	return dx*dx+dy*dy <= radius*radius
}

func (r OrthoRay) selectBBox(s *Selector, left, right Vector3) bool {
	px, py := r.axes()
	return s.contains1D(r.Coords[0], left[px], right[px], px) &&
		s.contains1D(r.Coords[1], left[py], right[py], py)
}

func (r OrthoRay) selectCell(s *Selector, center, width Vector3) bool {
	half := width.Scale(0.5)
	return r.selectBBox(s, center.Sub(half), center.Add(half))
}

func (r OrthoRay) coverage(s *Selector, center, width Vector3) float64 {
	if r.selectCell(s, center, width) {
		return 1
	}
	return 0
}
