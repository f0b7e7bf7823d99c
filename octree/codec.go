package octree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octsel/selection"
	"github.com/segmentio/encoding/json"
)

// encodedTree is the JSON layout of a tree. Octs lists the children of every
// oct by handle, an empty list marking a leaf. The first octs are the roots.
type encodedTree struct {
	LeftEdge  selection.Vector3    `json:"left_edge"`
	RightEdge selection.Vector3    `json:"right_edge"`
	RootDims  [3]int               `json:"root_dims"`
	Octs      [][]selection.Handle `json:"octs"`
}

func (t *Tree) MarshalJSON() ([]byte, error) {
	enc := encodedTree{
		LeftEdge:  t.leftEdge,
		RightEdge: t.rightEdge,
		RootDims:  t.rootDims,
		Octs:      make([][]selection.Handle, len(t.nodes)),
	}

	for i, n := range t.nodes {
		if n.leaf {
			enc.Octs[i] = []selection.Handle{}
			continue
		}
		enc.Octs[i] = n.children[:]
	}
	return json.Marshal(enc)
}

func (t *Tree) UnmarshalJSON(data []byte) error {
	var enc encodedTree
	if err := json.Unmarshal(data, &enc); err != nil {
		return errors.New("decoding octree failed").
			WithType(ErrTypeInvalidOctree).
			Wrap(err)
	}

	tree, err := New(enc.LeftEdge, enc.RightEdge, enc.RootDims)
	if err != nil {
		return err
	}

	if len(enc.Octs) < len(tree.roots) {
		return errors.New("octree has fewer octs than root octs").
			WithType(ErrTypeInvalidOctree).
			WithTag("octs", len(enc.Octs)).
			WithTag("roots", len(tree.roots))
	}

	nodes := make([]node, len(enc.Octs))
	referenced := make([]bool, len(enc.Octs))
	for i := range nodes {
		nodes[i] = newNode(selection.NoHandle, -1)
	}
	for _, root := range tree.roots {
		nodes[root].level = 0
		referenced[root] = true
	}

	// Levels are resolved top down from the roots, so every child must be
	// referenced exactly once by an oct whose level is already known.
	queue := append([]selection.Handle(nil), tree.roots...)
	for len(queue) > 0 {
		oct := queue[0]
		queue = queue[1:]

		children := enc.Octs[oct]
		switch len(children) {
		case 0:
			continue
		case 8:
		default:
			return errors.New("oct must have zero or eight children").
				WithType(ErrTypeInvalidOctree).
				WithTag("oct", oct).
				WithTag("children", len(children))
		}

		level := nodes[oct].level + 1
		if level > selection.MaxLevelLimit {
			return errors.New("octree exceeds the depth limit").
				WithType(ErrTypeInvalidOctree).
				WithTag("oct", oct)
		}

		for octant, child := range children {
			if child < 0 || int(child) >= len(nodes) || referenced[child] {
				return errors.New("oct child is invalid or shared").
					WithType(ErrTypeInvalidOctree).
					WithTag("oct", oct).
					WithTag("child", child)
			}

			referenced[child] = true
			nodes[child].parent = oct
			nodes[child].level = level
			nodes[oct].children[octant] = child
			queue = append(queue, child)
		}
		nodes[oct].leaf = false
	}

	for oct, ok := range referenced {
		if !ok {
			return errors.New("oct is not reachable from any root").
				WithType(ErrTypeInvalidOctree).
				WithTag("oct", oct)
		}
	}

	tree.nodes = nodes
	*t = *tree
	return nil
}
