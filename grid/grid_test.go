package grid

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octsel/selection"
	"github.com/stretchr/testify/require"
)

func testPatches() []Patch {
	return []Patch{
		{
			ID:        1,
			LeftEdge:  selection.Vector3{0, 0, 0},
			RightEdge: selection.Vector3{0.5, 0.5, 0.5},
			Level:     1,
			Dims:      [3]int{4, 4, 4},
		},
		{
			ID:        2,
			LeftEdge:  selection.Vector3{0.5, 0, 0},
			RightEdge: selection.Vector3{1, 0.5, 0.5},
			Level:     1,
			Dims:      [3]int{2, 2, 2},
		},
		{
			ID:        3,
			LeftEdge:  selection.Vector3{0.25, 0.25, 0.25},
			RightEdge: selection.Vector3{0.75, 0.75, 0.75},
			Level:     2,
			Dims:      [3]int{2, 2, 2},
		},
		{
			ID:        4,
			LeftEdge:  selection.Vector3{0.95, 0, 0},
			RightEdge: selection.Vector3{1.05, 0.1, 0.1},
			Level:     2,
			Dims:      [3]int{1, 1, 1},
		},
	}
}

func testIndex(t *testing.T) *Index {
	idx, err := NewIndex(testPatches())
	require.NoError(t, err)
	return idx
}

func boxSelector(t *testing.T, minLevel int, periodic bool) *selection.Selector {
	s, err := selection.New(selection.Config{
		MinLevel:    minLevel,
		MaxLevel:    selection.MaxLevelLimit,
		DomainWidth: selection.Vector3{1, 1, 1},
		Periodicity: [3]bool{periodic, periodic, periodic},
	}, selection.Box{
		LeftEdge:  selection.Vector3{0, 0, 0},
		RightEdge: selection.Vector3{0.25, 0.25, 0.25},
	})
	require.NoError(t, err)
	return s
}

func patchIDs(patches []Patch) []int {
	ids := make([]int, 0, len(patches))
	for _, p := range patches {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestPatch(t *testing.T) {
	p := testPatches()[0]
	require.Equal(t, 64, p.NumCells())
	require.Equal(t, selection.Vector3{0.125, 0.125, 0.125}, p.CellWidth())
	require.Equal(t, selection.Vector3{0.0625, 0.1875, 0.4375}, p.CellCenter(0, 1, 3))
	require.Equal(t, 0, p.CellIndex(0, 0, 0))
	require.Equal(t, 1, p.CellIndex(0, 0, 1))
	require.Equal(t, 16, p.CellIndex(1, 0, 0))
}

func TestNewIndex(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		idx := testIndex(t)
		require.Equal(t, 4, idx.Len())

		p, ok := idx.Get(3)
		require.True(t, ok)
		require.Equal(t, 2, p.Level)

		_, ok = idx.Get(42)
		require.False(t, ok)
	})

	t.Run("duplicate id", func(t *testing.T) {
		patches := testPatches()
		patches[1].ID = 1

		_, err := NewIndex(patches)
		require.True(t, errors.IsType(err, ErrTypeDuplicatePatch))
	})

	t.Run("inverted edges", func(t *testing.T) {
		patches := testPatches()
		patches[0].RightEdge[2] = -1

		_, err := NewIndex(patches)
		require.True(t, errors.IsType(err, ErrTypeInvalidPatch))
	})

	t.Run("empty dims", func(t *testing.T) {
		patches := testPatches()
		patches[2].Dims = [3]int{2, 0, 2}

		_, err := NewIndex(patches)
		require.True(t, errors.IsType(err, ErrTypeInvalidPatch))
	})
}

func TestIndexSelect(t *testing.T) {
	idx := testIndex(t)

	require.Equal(t, []int{1}, patchIDs(idx.Select(boxSelector(t, 0, false))))
	require.Empty(t, idx.Select(boxSelector(t, 2, false)))
}

func TestIndexMask(t *testing.T) {
	idx := testIndex(t)
	s := boxSelector(t, 0, false)

	mask, err := idx.Mask(s, 1)
	require.NoError(t, err)
	require.Len(t, mask, 64)

	p, _ := idx.Get(1)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			for k := 0; k < 4; k++ {
				require.Equal(t, i < 2 && j < 2 && k < 2, mask[p.CellIndex(i, j, k)])
			}
		}
	}

	count, err := idx.Count(s, 1)
	require.NoError(t, err)
	require.Equal(t, 8, count)

	mask, err = idx.Mask(s, 2)
	require.NoError(t, err)
	require.Equal(t, make([]bool, 8), mask)

	_, err = idx.Count(s, 42)
	require.True(t, errors.IsType(err, ErrTypePatchNotFound))
}

func TestIndexOverlapping(t *testing.T) {
	idx := testIndex(t)

	overlaps, err := idx.Overlapping(boxSelector(t, 0, false), 1)
	require.NoError(t, err)
	require.Equal(t, []int{3}, patchIDs(overlaps))

	overlaps, err = idx.Overlapping(boxSelector(t, 0, false), 4)
	require.NoError(t, err)
	require.Equal(t, []int{2}, patchIDs(overlaps))

	overlaps, err = idx.Overlapping(boxSelector(t, 0, true), 4)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, patchIDs(overlaps))

	_, err = idx.Overlapping(boxSelector(t, 0, false), 42)
	require.True(t, errors.IsType(err, ErrTypePatchNotFound))
}
