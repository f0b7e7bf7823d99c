package octree

import (
	"math"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octsel/selection"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func unitTree(t *testing.T, dims [3]int) *Tree {
	tree, err := New(selection.Vector3{}, selection.Vector3{1, 1, 1}, dims)
	require.NoError(t, err)
	return tree
}

func TestNew(t *testing.T) {
	t.Run("roots", func(t *testing.T) {
		tree := unitTree(t, [3]int{2, 1, 1})
		require.Equal(t, 2, tree.Len())
		require.Equal(t, selection.Vector3{0.5, 1, 1}, tree.RootWidth())

		roots := tree.Roots()
		require.Len(t, roots, 2)
		require.Equal(t, selection.Vector3{0.25, 0.5, 0.5}, roots[0].Center)
		require.Equal(t, selection.Vector3{0.75, 0.5, 0.5}, roots[1].Center)
		require.Equal(t, [3]int64{1, 0, 0}, roots[1].Coords)
		require.Equal(t, 0, tree.Level(roots[1].Oct))
		require.True(t, tree.IsLeaf(roots[1].Oct))
	})

	tests := []struct {
		name  string
		left  selection.Vector3
		right selection.Vector3
		dims  [3]int
	}{
		{
			name:  "inverted edges",
			left:  selection.Vector3{1, 0, 0},
			right: selection.Vector3{0, 1, 1},
			dims:  [3]int{1, 1, 1},
		},
		{
			name:  "zero dims",
			right: selection.Vector3{1, 1, 1},
			dims:  [3]int{1, 0, 1},
		},
		{
			name:  "too many roots",
			right: selection.Vector3{1, 1, 1},
			dims:  [3]int{1 << 21, 1 << 21, 1 << 21},
		},
		{
			name:  "overflowing roots",
			right: selection.Vector3{1, 1, 1},
			dims:  [3]int{math.MaxInt, math.MaxInt, 2},
		},
		{
			name:  "just above the root limit",
			right: selection.Vector3{1, 1, 1},
			dims:  [3]int{MaxRoots, 2, 1},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := New(test.left, test.right, test.dims)
			require.Error(t, err)
			require.True(t, errors.IsType(err, ErrTypeInvalidOctree))
		})
	}
}

func TestRefine(t *testing.T) {
	tree := unitTree(t, [3]int{1, 1, 1})
	root := tree.Roots()[0].Oct

	children, err := tree.Refine(root)
	require.NoError(t, err)
	require.Equal(t, 9, tree.Len())
	require.False(t, tree.IsLeaf(root))

	for octant, child := range children {
		require.Equal(t, child, tree.Child(root, octant))
		require.Equal(t, root, tree.Parent(child))
		require.Equal(t, 1, tree.Level(child))
	}

	_, err = tree.Refine(root)
	require.True(t, errors.IsType(err, ErrTypeInvalidOctree))

	_, err = tree.Refine(42)
	require.True(t, errors.IsType(err, ErrTypeInvalidOctree))

	require.Equal(t, selection.NoHandle, tree.Child(children[0], 0))
	require.Equal(t, selection.NoHandle, tree.Child(root, 8))
	require.Equal(t, selection.NoHandle, tree.Child(99, 0))
	require.Equal(t, -1, tree.Level(99))
}

func TestRefineToLevel(t *testing.T) {
	tree := unitTree(t, [3]int{2, 2, 2})
	require.NoError(t, tree.RefineToLevel(2))
	require.Equal(t, 8+64+512, tree.Len())

	leaves := 0
	tree.Walk(func(oct selection.Handle, center, width selection.Vector3, level int) {
		if tree.IsLeaf(oct) {
			leaves++
			require.Equal(t, 2, level)
			require.Equal(t, selection.Vector3{0.125, 0.125, 0.125}, width)
		}
	})
	require.Equal(t, 512, leaves)
}

func TestRefineAround(t *testing.T) {
	tree := unitTree(t, [3]int{1, 1, 1})
	points := []selection.Vector3{
		{0.1, 0.1, 0.1},
		{0.12, 0.12, 0.12},
		{0.9, 0.9, 0.9},
		{2, 2, 2},
	}
	require.NoError(t, tree.RefineAround(points, 1, 3))

	var deepest selection.Vector3
	maxLevel := 0
	tree.Walk(func(oct selection.Handle, center, width selection.Vector3, level int) {
		if level > maxLevel {
			maxLevel = level
			deepest = center
		}
	})

	// The two close points share octs down to the level limit, the far point
	// only splits the root.
	require.Equal(t, 3, maxLevel)
	require.Less(t, deepest[0], 0.25)
	require.Equal(t, 1+8+8+8, tree.Len())
}

func TestTreeJSON(t *testing.T) {
	tree := unitTree(t, [3]int{2, 1, 1})
	roots := tree.Roots()

	// Refining the second root first gives handles out of root order.
	children, err := tree.Refine(roots[1].Oct)
	require.NoError(t, err)
	_, err = tree.Refine(roots[0].Oct)
	require.NoError(t, err)
	_, err = tree.Refine(children[3])
	require.NoError(t, err)

	data, err := json.Marshal(tree)
	require.NoError(t, err)

	var decoded Tree
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, tree.Len(), decoded.Len())
	require.Equal(t, tree.RootDims(), decoded.RootDims())
	require.Equal(t, tree.DomainWidth(), decoded.DomainWidth())

	for oct := 0; oct < tree.Len(); oct++ {
		h := selection.Handle(oct)
		require.Equal(t, tree.Level(h), decoded.Level(h))
		require.Equal(t, tree.Parent(h), decoded.Parent(h))
		for octant := 0; octant < 8; octant++ {
			require.Equal(t, tree.Child(h, octant), decoded.Child(h, octant))
		}
	}
}

func TestTreeJSONInvalid(t *testing.T) {
	leaf := `[]`
	children := `[1,2,3,4,5,6,7,8]`

	tests := []struct {
		name string
		octs string
	}{
		{
			name: "missing roots",
			octs: `[]`,
		},
		{
			name: "wrong child count",
			octs: `[[1,2]]`,
		},
		{
			name: "dangling child",
			octs: `[` + children + `]`,
		},
		{
			name: "unreachable oct",
			octs: `[` + leaf + `,` + leaf + `]`,
		},
		{
			name: "self reference",
			octs: `[[0,1,2,3,4,5,6,7],[],[],[],[],[],[],[]]`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			data := `{"left_edge":[0,0,0],"right_edge":[1,1,1],"root_dims":[1,1,1],"octs":` + test.octs + `}`

			var tree Tree
			err := json.Unmarshal([]byte(data), &tree)
			require.Error(t, err)
		})
	}
}

func TestTreeSelection(t *testing.T) {
	tree := unitTree(t, [3]int{2, 2, 2})
	require.NoError(t, tree.RefineToLevel(1))

	s, err := selection.New(selection.Config{
		MaxLevel:    selection.MaxLevelLimit,
		DomainWidth: tree.DomainWidth(),
	}, selection.Box{
		LeftEdge:  selection.Vector3{0, 0, 0},
		RightEdge: selection.Vector3{0.5, 0.5, 0.5},
	})
	require.NoError(t, err)

	var cells []selection.Cell
	for _, r := range tree.Roots() {
		_, err := s.VisitOcts(tree, r.Oct, r.Center, r.Width, 0, selection.VisitorFunc(func(c selection.Cell) {
			cells = append(cells, c)
		}), selection.TraverseOptions{RootCoords: r.Coords})
		require.NoError(t, err)
	}

	// The first root is refined once, its children hold 8 cells each.
	require.Len(t, cells, 64)
	for _, c := range cells {
		require.Equal(t, 1, c.Level)
		require.Equal(t, selection.Vector3{0.125, 0.125, 0.125}, c.Width)
	}
}
