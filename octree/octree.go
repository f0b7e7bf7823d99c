// Package octree implements an arena backed octree made of a grid of root octs
// that are refined into eight children each. Octs are addressed by
// selection.Handle and never move once created.
package octree

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octsel/selection"
)

const (
	ErrTypeInvalidOctree = "invalid_octree"
)

const (
	// MaxRoots is the maximum number of root octs of a tree.
	MaxRoots = 1 << 24

	// MaxOcts is the maximum number of octs addressable by a handle.
	MaxOcts = math.MaxInt32
)

type node struct {
	parent   selection.Handle
	level    int
	children [8]selection.Handle
	leaf     bool
}

func newNode(parent selection.Handle, level int) node {
	n := node{
		parent: parent,
		level:  level,
		leaf:   true,
	}
	for i := range n.children {
		n.children[i] = selection.NoHandle
	}
	return n
}

// Root is a top level oct with its geometry.
type Root struct {
	Oct    selection.Handle
	Coords [3]int64
	Center selection.Vector3
	Width  selection.Vector3
}

// Tree is an octree over the box [LeftEdge, RightEdge) divided into
// RootDims root octs.
type Tree struct {
	leftEdge  selection.Vector3
	rightEdge selection.Vector3
	rootDims  [3]int
	nodes     []node
	roots     []selection.Handle
}

// New creates a tree with one unrefined root oct per root grid position.
func New(leftEdge, rightEdge selection.Vector3, rootDims [3]int) (*Tree, error) {
	if !leftEdge.IsFinite() || !rightEdge.IsFinite() {
		return nil, errors.New("domain edges are not finite").
			WithType(ErrTypeInvalidOctree).
			WithTag("left_edge", leftEdge).
			WithTag("right_edge", rightEdge)
	}

	for axis := 0; axis < 3; axis++ {
		if leftEdge[axis] >= rightEdge[axis] {
			return nil, errors.New("domain left edge is not lower than its right edge").
				WithType(ErrTypeInvalidOctree).
				WithTag("axis", axis)
		}

		if rootDims[axis] <= 0 {
			return nil, errors.New("root dimensions must be positive").
				WithType(ErrTypeInvalidOctree).
				WithTag("root_dims", rootDims)
		}
	}

	count := 1
	for axis := 0; axis < 3; axis++ {
		if rootDims[axis] > MaxRoots/count {
			return nil, errors.New("too many root octs").
				WithType(ErrTypeInvalidOctree).
				WithTag("root_dims", rootDims).
				WithTag("max", MaxRoots)
		}
		count *= rootDims[axis]
	}
	t := &Tree{
		leftEdge:  leftEdge,
		rightEdge: rightEdge,
		rootDims:  rootDims,
		nodes:     make([]node, 0, count),
		roots:     make([]selection.Handle, 0, count),
	}

	for i := 0; i < count; i++ {
		t.roots = append(t.roots, t.add(selection.NoHandle, 0))
	}
	return t, nil
}

func (t *Tree) add(parent selection.Handle, level int) selection.Handle {
	t.nodes = append(t.nodes, newNode(parent, level))
	return selection.Handle(len(t.nodes) - 1)
}

func (t *Tree) valid(oct selection.Handle) bool {
	return oct >= 0 && int(oct) < len(t.nodes)
}

// Child returns the child of oct in the given octant, or NoHandle when the
// oct is a leaf or unknown.
func (t *Tree) Child(oct selection.Handle, octant int) selection.Handle {
	if !t.valid(oct) || octant < 0 || octant > 7 {
		return selection.NoHandle
	}
	return t.nodes[oct].children[octant]
}

func (t *Tree) Parent(oct selection.Handle) selection.Handle {
	if !t.valid(oct) {
		return selection.NoHandle
	}
	return t.nodes[oct].parent
}

// Level returns the refinement level of oct, -1 when unknown.
func (t *Tree) Level(oct selection.Handle) int {
	if !t.valid(oct) {
		return -1
	}
	return t.nodes[oct].level
}

func (t *Tree) IsLeaf(oct selection.Handle) bool {
	return t.valid(oct) && t.nodes[oct].leaf
}

// Len returns the number of octs.
func (t *Tree) Len() int {
	return len(t.nodes)
}

func (t *Tree) LeftEdge() selection.Vector3 {
	return t.leftEdge
}

func (t *Tree) RightEdge() selection.Vector3 {
	return t.rightEdge
}

func (t *Tree) DomainWidth() selection.Vector3 {
	return t.rightEdge.Sub(t.leftEdge)
}

func (t *Tree) RootDims() [3]int {
	return t.rootDims
}

// RootWidth returns the width of a root oct.
func (t *Tree) RootWidth() selection.Vector3 {
	w := t.DomainWidth()
	return selection.Vector3{
		w[0] / float64(t.rootDims[0]),
		w[1] / float64(t.rootDims[1]),
		w[2] / float64(t.rootDims[2]),
	}
}

// Roots returns the root octs in x-major order.
func (t *Tree) Roots() []Root {
	width := t.RootWidth()
	roots := make([]Root, 0, len(t.roots))

	i := 0
	for x := 0; x < t.rootDims[0]; x++ {
		for y := 0; y < t.rootDims[1]; y++ {
			for z := 0; z < t.rootDims[2]; z++ {
				coords := [3]int64{int64(x), int64(y), int64(z)}
				center := t.leftEdge.Add(width.Mul(selection.Vector3{
					float64(x) + 0.5,
					float64(y) + 0.5,
					float64(z) + 0.5,
				}))

				roots = append(roots, Root{
					Oct:    t.roots[i],
					Coords: coords,
					Center: center,
					Width:  width,
				})
				i++
			}
		}
	}
	return roots
}

// Refine splits a leaf oct into eight children.
func (t *Tree) Refine(oct selection.Handle) ([8]selection.Handle, error) {
	if !t.valid(oct) {
		return [8]selection.Handle{}, errors.New("unknown oct").
			WithType(ErrTypeInvalidOctree).
			WithTag("oct", oct)
	}

	if !t.nodes[oct].leaf {
		return [8]selection.Handle{}, errors.New("oct is already refined").
			WithType(ErrTypeInvalidOctree).
			WithTag("oct", oct)
	}

	level := t.nodes[oct].level + 1
	if level > selection.MaxLevelLimit {
		return [8]selection.Handle{}, errors.New("refinement exceeds the depth limit").
			WithType(ErrTypeInvalidOctree).
			WithTag("oct", oct).
			WithTag("level", level)
	}

	if len(t.nodes) > MaxOcts-8 {
		return [8]selection.Handle{}, errors.New("too many octs").
			WithType(ErrTypeInvalidOctree).
			WithTag("oct", oct).
			WithTag("max", MaxOcts)
	}

	var children [8]selection.Handle
	for octant := range children {
		children[octant] = t.add(oct, level)
	}

	// t.nodes may have been reallocated by add.
	t.nodes[oct].children = children
	t.nodes[oct].leaf = false
	return children, nil
}

// Walk calls f for every oct, depth first from each root in order, with its
// geometry.
func (t *Tree) Walk(f func(oct selection.Handle, center, width selection.Vector3, level int)) {
	var walk func(oct selection.Handle, center, width selection.Vector3)
	walk = func(oct selection.Handle, center, width selection.Vector3) {
		n := t.nodes[oct]
		f(oct, center, width, n.level)
		if n.leaf {
			return
		}

		half := width.Scale(0.5)
		for octant, child := range n.children {
			walk(child, center.Add(octantOffset(octant).Mul(half.Scale(0.5))), half)
		}
	}

	for _, r := range t.Roots() {
		walk(r.Oct, r.Center, r.Width)
	}
}

func octantOffset(octant int) selection.Vector3 {
	var v selection.Vector3
	for axis := 0; axis < 3; axis++ {
		if octant&(4>>axis) != 0 {
			v[axis] = 1
		} else {
			v[axis] = -1
		}
	}
	return v
}
