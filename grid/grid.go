// Package grid indexes flat grid patches: axis aligned boxes regularly divided
// into cells at a given refinement level.
package grid

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octsel/selection"
)

const (
	ErrTypeInvalidPatch   = "invalid_patch"
	ErrTypePatchNotFound  = "patch_not_found"
	ErrTypeDuplicatePatch = "duplicate_patch"
)

// Patch is a box [LeftEdge, RightEdge) of Dims cells at Level.
type Patch struct {
	ID        int               `json:"id"`
	LeftEdge  selection.Vector3 `json:"left_edge"`
	RightEdge selection.Vector3 `json:"right_edge"`
	Level     int               `json:"level"`
	Dims      [3]int            `json:"dims"`
}

func (p Patch) validate() error {
	if !p.LeftEdge.IsFinite() || !p.RightEdge.IsFinite() {
		return errors.New("patch edges are not finite").
			WithType(ErrTypeInvalidPatch).
			WithTag("patch_id", p.ID)
	}

	if p.Level < 0 || p.Level > selection.MaxLevelLimit {
		return errors.New("patch level is out of range").
			WithType(ErrTypeInvalidPatch).
			WithTag("patch_id", p.ID).
			WithTag("level", p.Level)
	}

	for axis := 0; axis < 3; axis++ {
		if p.LeftEdge[axis] >= p.RightEdge[axis] {
			return errors.New("patch left edge is not lower than its right edge").
				WithType(ErrTypeInvalidPatch).
				WithTag("patch_id", p.ID).
				WithTag("axis", axis)
		}

		if p.Dims[axis] <= 0 {
			return errors.New("patch dimensions must be positive").
				WithType(ErrTypeInvalidPatch).
				WithTag("patch_id", p.ID).
				WithTag("dims", p.Dims)
		}
	}
	return nil
}

// NumCells returns the number of cells in the patch.
func (p Patch) NumCells() int {
	return p.Dims[0] * p.Dims[1] * p.Dims[2]
}

func (p Patch) CellWidth() selection.Vector3 {
	w := p.RightEdge.Sub(p.LeftEdge)
	return selection.Vector3{
		w[0] / float64(p.Dims[0]),
		w[1] / float64(p.Dims[1]),
		w[2] / float64(p.Dims[2]),
	}
}

// CellCenter returns the center of the cell at the given integer position.
func (p Patch) CellCenter(i, j, k int) selection.Vector3 {
	return p.LeftEdge.Add(p.CellWidth().Mul(selection.Vector3{
		float64(i) + 0.5,
		float64(j) + 0.5,
		float64(k) + 0.5,
	}))
}

// CellIndex returns the x-major position of a cell in a mask.
func (p Patch) CellIndex(i, j, k int) int {
	return (i*p.Dims[1]+j)*p.Dims[2] + k
}

// Index is a read-only set of patches.
type Index struct {
	patches []Patch
	byID    map[int]int
}

// NewIndex validates the patches and indexes them by ID.
func NewIndex(patches []Patch) (*Index, error) {
	idx := &Index{
		patches: make([]Patch, 0, len(patches)),
		byID:    make(map[int]int, len(patches)),
	}

	for _, p := range patches {
		if err := p.validate(); err != nil {
			return nil, err
		}

		if _, ok := idx.byID[p.ID]; ok {
			return nil, errors.New("patch id is used more than once").
				WithType(ErrTypeDuplicatePatch).
				WithTag("patch_id", p.ID)
		}

		idx.byID[p.ID] = len(idx.patches)
		idx.patches = append(idx.patches, p)
	}
	return idx, nil
}

func (idx *Index) Len() int {
	return len(idx.patches)
}

func (idx *Index) Patches() []Patch {
	return append([]Patch(nil), idx.patches...)
}

func (idx *Index) Get(id int) (Patch, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return Patch{}, false
	}
	return idx.patches[i], true
}

func (idx *Index) get(id int) (Patch, error) {
	p, ok := idx.Get(id)
	if !ok {
		return Patch{}, errors.New("patch not found").
			WithType(ErrTypePatchNotFound).
			WithTag("patch_id", id)
	}
	return p, nil
}

// Select returns the patches passing the selector coarse test, in index
// order.
func (idx *Index) Select(s *selection.Selector) []Patch {
	var selected []Patch
	for _, p := range idx.patches {
		if s.SelectGrid(p.LeftEdge, p.RightEdge, p.Level) {
			selected = append(selected, p)
		}
	}
	return selected
}

// Mask returns, for every cell of the patch in x-major order, whether the
// selector selects it.
func (idx *Index) Mask(s *selection.Selector, id int) ([]bool, error) {
	p, err := idx.get(id)
	if err != nil {
		return nil, err
	}

	mask := make([]bool, p.NumCells())
	if !s.SelectGrid(p.LeftEdge, p.RightEdge, p.Level) {
		return mask, nil
	}

	width := p.CellWidth()
	for i := 0; i < p.Dims[0]; i++ {
		for j := 0; j < p.Dims[1]; j++ {
			for k := 0; k < p.Dims[2]; k++ {
				mask[p.CellIndex(i, j, k)] = s.SelectCell(p.CellCenter(i, j, k), width)
			}
		}
	}
	return mask, nil
}

// Count returns the number of selected cells of the patch.
func (idx *Index) Count(s *selection.Selector, id int) (int, error) {
	mask, err := idx.Mask(s, id)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, selected := range mask {
		if selected {
			count++
		}
	}
	return count, nil
}

// Overlapping returns the other patches intersecting the given one, with the
// selector periodicity.
func (idx *Index) Overlapping(s *selection.Selector, id int) ([]Patch, error) {
	p, err := idx.get(id)
	if err != nil {
		return nil, err
	}

	var overlaps []Patch
	for _, o := range idx.patches {
		if o.ID == p.ID {
			continue
		}

		if s.PatchesOverlap(p.LeftEdge, p.RightEdge, o.LeftEdge, o.RightEdge) {
			overlaps = append(overlaps, o)
		}
	}
	return overlaps, nil
}
