package selection

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Handle identifies an oct in an externally owned octree.
type Handle int32

// NoHandle marks a missing child.
const NoHandle Handle = -1

// Octree is the read-only view of an octree the traversal descends through.
type Octree interface {
	// Returns the child of the oct in the given octant, or NoHandle.
	Child(oct Handle, octant int) Handle
}

// Cell describes a visited cell.
type Cell struct {
	// The oct owning the cell and the cell octant within it.
	Oct   Handle
	Index int

	// The level of the owning oct.
	Level int

	// The cell integer coordinates at the resolution of its level.
	Coords [3]int64

	Center Vector3
	Width  Vector3

	// The fraction of the cell counted by the selection. It is 1 for cells
	// accepted by the strict test.
	Weight float64

	// Whether the cell is only partially covered by the region.
	Partial bool
}

// Visitor receives the selected cells. A visitor cannot stop a traversal:
// every selected cell of the subtree is visited.
type Visitor interface {
	Visit(c Cell)
}

// VisitorFunc adapts a function to a Visitor.
type VisitorFunc func(c Cell)

func (f VisitorFunc) Visit(c Cell) {
	f(c)
}

type TraverseOptions struct {
	// Visits cells intersecting the region that fail the strict test, flagged
	// as partial. It has no effect with overlap cells.
	VisitCovered bool

	// The integer coordinates of the root oct at its level.
	RootCoords [3]int64
}

// Stats summarizes a traversal.
type Stats struct {
	OctsVisited   int `json:"octs_visited"`
	OctsPruned    int `json:"octs_pruned"`
	CellsTested   int `json:"cells_tested"`
	CellsSelected int `json:"cells_selected"`
	CellsPartial  int `json:"cells_partial"`
	MaxLevel      int `json:"max_level"`
}

func (s *Stats) Add(o Stats) {
	s.OctsVisited += o.OctsVisited
	s.OctsPruned += o.OctsPruned
	s.CellsTested += o.CellsTested
	s.CellsSelected += o.CellsSelected
	s.CellsPartial += o.CellsPartial
	if o.MaxLevel > s.MaxLevel {
		s.MaxLevel = o.MaxLevel
	}
}

// octantOffset returns the sign of the octant center offset on each axis.
// Octants are indexed x<<2 | y<<1 | z, a zero bit being the lower half.
func octantOffset(octant int) Vector3 {
	var v Vector3
	for axis := 0; axis < 3; axis++ {
		if octant&(4>>axis) != 0 {
			v[axis] = 1
		} else {
			v[axis] = -1
		}
	}
	return v
}

// VisitOcts walks the subtree rooted at root, whose center, full width and
// level are given, and calls v once per selected cell in a fixed order.
// Subtrees whose bounds miss the region are pruned. Octs shallower than the
// min level are walked through without visiting their cells, cells of octs at
// the max level are visited even when refined.
func (s *Selector) VisitOcts(tree Octree, root Handle, center, width Vector3, level int, v Visitor, opts TraverseOptions) (Stats, error) {
	if tree == nil || v == nil {
		return Stats{}, errors.New("octree and visitor are required").
			WithType(ErrTypeContractViolation)
	}

	if root == NoHandle {
		return Stats{}, errors.New("root oct is missing").
			WithType(ErrTypeContractViolation)
	}

	if !center.IsFinite() || !width.IsFinite() {
		return Stats{}, errors.New("root geometry is not finite").
			WithType(ErrTypeContractViolation).
			WithTag("center", center).
			WithTag("width", width)
	}

	for axis := 0; axis < 3; axis++ {
		if width[axis] <= 0 {
			return Stats{}, errors.New("root width is not positive").
				WithType(ErrTypeContractViolation).
				WithTag("axis", axis).
				WithTag("width", width)
		}
	}

	if level < 0 || level > MaxLevelLimit {
		return Stats{}, errors.New("root level is out of range").
			WithType(ErrTypeContractViolation).
			WithTag("level", level)
	}

	t := traversal{
		selector: s,
		tree:     tree,
		visitor:  v,
		opts:     opts,
	}
	err := t.visitOct(root, center, width, level, opts.RootCoords)
	return t.stats, err
}

type traversal struct {
	selector *Selector
	tree     Octree
	visitor  Visitor
	opts     TraverseOptions
	stats    Stats
}

func (t *traversal) visitOct(oct Handle, center, width Vector3, level int, coords [3]int64) error {
	if level > MaxLevelLimit {
		return errors.New("traversal exceeded the depth limit").
			WithType(ErrTypeContractViolation).
			WithTag("level", level)
	}

	s := t.selector
	half := width.Scale(0.5)
	if level > s.maxLevel || !s.SelectBBox(center.Sub(half), center.Add(half)) {
		t.stats.OctsPruned++
		return nil
	}

	t.stats.OctsVisited++
	if level > t.stats.MaxLevel {
		t.stats.MaxLevel = level
	}

	descend := level < s.maxLevel
	visitCells := level >= s.minLevel
	quarter := half.Scale(0.5)

	for octant := 0; octant < 8; octant++ {
		offset := octantOffset(octant)
		cellCenter := center.Add(offset.Mul(quarter))
		cellCoords := [3]int64{
			coords[0]<<1 | int64(octant>>2&1),
			coords[1]<<1 | int64(octant>>1&1),
			coords[2]<<1 | int64(octant&1),
		}

		if descend {
			if child := t.tree.Child(oct, octant); child != NoHandle {
				if err := t.visitOct(child, cellCenter, half, level+1, cellCoords); err != nil {
					return err
				}
				continue
			}
		}

		if visitCells {
			t.visitCell(oct, octant, level, cellCoords, cellCenter, half)
		}
	}

	return nil
}

func (t *traversal) visitCell(oct Handle, octant, level int, coords [3]int64, center, width Vector3) {
	s := t.selector
	t.stats.CellsTested++

	partial := false
	if !s.SelectCell(center, width) {
		if !t.opts.VisitCovered || s.overlapCells {
			return
		}

		half := width.Scale(0.5)
		if !s.SelectBBox(center.Sub(half), center.Add(half)) {
			return
		}
		partial = true
	}

	weight := 1.0
	if s.overlapCells || partial {
		weight = s.Coverage(center, width)
		partial = partial || weight < 1
	}

	t.stats.CellsSelected++
	if partial {
		t.stats.CellsPartial++
	}

	t.visitor.Visit(Cell{
		Oct:     oct,
		Index:   octant,
		Level:   level,
		Coords:  coords,
		Center:  center,
		Width:   width,
		Weight:  weight,
		Partial: partial,
	})
}
