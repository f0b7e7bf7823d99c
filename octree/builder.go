package octree

import (
	"github.com/aukilabs/octsel/selection"
)

// RefineToLevel refines every leaf until all leaves reach the given level.
func (t *Tree) RefineToLevel(level int) error {
	for oct := 0; oct < len(t.nodes); oct++ {
		n := t.nodes[oct]
		if !n.leaf || n.level >= level {
			continue
		}

		if _, err := t.Refine(selection.Handle(oct)); err != nil {
			return err
		}
	}
	return nil
}

// RefineAround refines the octs holding more than maxPerOct of the given
// points, down to maxLevel. Points outside the domain are ignored.
func (t *Tree) RefineAround(points []selection.Vector3, maxPerOct, maxLevel int) error {
	if maxPerOct < 1 {
		maxPerOct = 1
	}

	for _, r := range t.Roots() {
		var inside []selection.Vector3
		for _, p := range points {
			if contains(r.Center, r.Width, p) {
				inside = append(inside, p)
			}
		}

		if err := t.refineAround(r.Oct, r.Center, r.Width, inside, maxPerOct, maxLevel); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) refineAround(oct selection.Handle, center, width selection.Vector3, points []selection.Vector3, maxPerOct, maxLevel int) error {
	if len(points) <= maxPerOct || t.nodes[oct].level >= maxLevel {
		return nil
	}

	children := t.nodes[oct].children
	if t.nodes[oct].leaf {
		var err error
		if children, err = t.Refine(oct); err != nil {
			return err
		}
	}

	half := width.Scale(0.5)
	var buckets [8][]selection.Vector3
	for _, p := range points {
		octant := 0
		for axis := 0; axis < 3; axis++ {
			if p[axis] >= center[axis] {
				octant |= 4 >> axis
			}
		}
		buckets[octant] = append(buckets[octant], p)
	}

	for octant, child := range children {
		childCenter := center.Add(octantOffset(octant).Mul(half.Scale(0.5)))
		if err := t.refineAround(child, childCenter, half, buckets[octant], maxPerOct, maxLevel); err != nil {
			return err
		}
	}
	return nil
}

func contains(center, width, p selection.Vector3) bool {
	for axis := 0; axis < 3; axis++ {
		l := center[axis] - width[axis]/2
		r := center[axis] + width[axis]/2
		if p[axis] < l || p[axis] >= r {
			return false
		}
	}
	return true
}
