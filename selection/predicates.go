package selection

// SelectPoint reports whether pos is part of the region.
func (s *Selector) SelectPoint(pos Vector3) bool {
	return s.shape.selectPoint(s, pos)
}

// SelectSphere reports whether the sphere centered at pos intersects the
// region.
func (s *Selector) SelectSphere(pos Vector3, radius float64) bool {
	return s.shape.selectSphere(s, pos, radius)
}

// SelectBBox reports whether the box [left, right) intersects the region. It
// rejects on the first axis without overlap.
func (s *Selector) SelectBBox(left, right Vector3) bool {
	return s.shape.selectBBox(s, left, right)
}

// SelectGrid is the coarse test for a grid patch or an oct: the level bounds
// plus SelectBBox.
func (s *Selector) SelectGrid(left, right Vector3, level int) bool {
	if level < s.minLevel || level > s.maxLevel {
		return false
	}
	return s.SelectBBox(left, right)
}

// SelectGridOct is SelectGrid for callers walking an octree. The oct is only
// checked for presence: a missing oct is never selected.
func (s *Selector) SelectGridOct(left, right Vector3, level int, oct Handle) bool {
	if oct == NoHandle {
		return false
	}
	return s.SelectGrid(left, right, level)
}

// SelectCell reports whether the cell centered at center with the given full
// width is selected. With overlap cells any intersection is enough, otherwise
// the shape's strict test applies.
func (s *Selector) SelectCell(center, width Vector3) bool {
	if s.overlapCells {
		half := width.Scale(0.5)
		return s.SelectBBox(center.Sub(half), center.Add(half))
	}
	return s.shape.selectCell(s, center, width)
}

// Coverage returns the fraction of the cell volume inside the region, in
// [0, 1]. Shapes without volume report 1 for any crossed cell.
func (s *Selector) Coverage(center, width Vector3) float64 {
	return s.shape.coverage(s, center, width)
}

// PatchesOverlap reports whether the grid patches [aLeft, aRight) and
// [bLeft, bRight) intersect, honoring the selector periodicity.
func (s *Selector) PatchesOverlap(aLeft, aRight, bLeft, bRight Vector3) bool {
	for axis := 0; axis < 3; axis++ {
		if !s.overlaps1D(aLeft[axis], aRight[axis], bLeft[axis], bRight[axis], axis) {
			return false
		}
	}
	return true
}
