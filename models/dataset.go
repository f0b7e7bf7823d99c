package models

import (
	"os"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octsel/grid"
	"github.com/aukilabs/octsel/octree"
	"github.com/aukilabs/octsel/selection"
	"github.com/segmentio/encoding/json"
)

const (
	ErrTypeInvalidDataset = "invalid_dataset"
)

// Dataset is the spatial domain queries run against: an octree and an
// optional set of grid patches covering the same domain.
type Dataset struct {
	Name        string
	Periodicity [3]bool
	Octree      *octree.Tree
	Patches     *grid.Index
}

// BuildOptions describes an octree generated at load time instead of being
// stored in the dataset file.
type BuildOptions struct {
	LeftEdge  selection.Vector3 `json:"left_edge"`
	RightEdge selection.Vector3 `json:"right_edge"`
	RootDims  [3]int            `json:"root_dims"`

	// Every oct is refined down to Level.
	Level int `json:"level"`

	// Octs holding more than MaxPerOct of Points are refined down to
	// MaxLevel.
	Points    []selection.Vector3 `json:"points,omitempty"`
	MaxPerOct int                 `json:"max_per_oct,omitempty"`
	MaxLevel  int                 `json:"max_level,omitempty"`
}

func (o BuildOptions) build() (*octree.Tree, error) {
	tree, err := octree.New(o.LeftEdge, o.RightEdge, o.RootDims)
	if err != nil {
		return nil, err
	}

	if err := tree.RefineToLevel(o.Level); err != nil {
		return nil, err
	}

	if len(o.Points) != 0 {
		if err := tree.RefineAround(o.Points, o.MaxPerOct, o.MaxLevel); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

type datasetFile struct {
	Name        string        `json:"name"`
	Periodicity [3]bool       `json:"periodicity"`
	Octree      *octree.Tree  `json:"octree,omitempty"`
	Build       *BuildOptions `json:"build,omitempty"`
	Patches     []grid.Patch  `json:"patches,omitempty"`
}

// LoadDataset reads a dataset from a JSON file.
func LoadDataset(filename string) (*Dataset, error) {
	start := time.Now()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.New("reading dataset file failed").
			WithType(ErrTypeInvalidDataset).
			WithTag("filename", filename).
			Wrap(err)
	}

	d, err := DecodeDataset(data)
	if err != nil {
		return nil, errors.New("loading dataset failed").
			WithType(ErrTypeInvalidDataset).
			WithTag("filename", filename).
			Wrap(err)
	}

	instrumentDatasetLoad(d, start)
	return d, nil
}

// DecodeDataset decodes a JSON dataset. The octree is either stored in the
// "octree" field or generated from the "build" field.
func DecodeDataset(data []byte) (*Dataset, error) {
	var f datasetFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.New("decoding dataset failed").
			WithType(ErrTypeInvalidDataset).
			Wrap(err)
	}

	tree := f.Octree
	switch {
	case tree != nil && f.Build != nil:
		return nil, errors.New("dataset has both a stored and a generated octree").
			WithType(ErrTypeInvalidDataset)

	case f.Build != nil:
		var err error
		if tree, err = f.Build.build(); err != nil {
			return nil, errors.New("building dataset octree failed").
				WithType(ErrTypeInvalidDataset).
				Wrap(err)
		}

	case tree == nil:
		return nil, errors.New("dataset has no octree").
			WithType(ErrTypeInvalidDataset)
	}

	patches, err := grid.NewIndex(f.Patches)
	if err != nil {
		return nil, errors.New("indexing dataset patches failed").
			WithType(ErrTypeInvalidDataset).
			Wrap(err)
	}

	return &Dataset{
		Name:        f.Name,
		Periodicity: f.Periodicity,
		Octree:      tree,
		Patches:     patches,
	}, nil
}

func (d *Dataset) MarshalJSON() ([]byte, error) {
	return json.Marshal(datasetFile{
		Name:        d.Name,
		Periodicity: d.Periodicity,
		Octree:      d.Octree,
		Patches:     d.Patches.Patches(),
	})
}

func (d *Dataset) DomainWidth() selection.Vector3 {
	return d.Octree.DomainWidth()
}

// SelectorConfig returns a selector configuration bound to the dataset domain.
func (d *Dataset) SelectorConfig(minLevel, maxLevel int, overlapCells bool) selection.Config {
	return selection.Config{
		MinLevel:     minLevel,
		MaxLevel:     maxLevel,
		OverlapCells: overlapCells,
		DomainWidth:  d.DomainWidth(),
		Periodicity:  d.Periodicity,
	}
}

// Summary is the dataset description served to clients.
type Summary struct {
	Name        string            `json:"name"`
	LeftEdge    selection.Vector3 `json:"left_edge"`
	RightEdge   selection.Vector3 `json:"right_edge"`
	RootDims    [3]int            `json:"root_dims"`
	Periodicity [3]bool           `json:"periodicity"`
	Octs        int               `json:"octs"`
	Patches     int               `json:"patches"`
}

func (d *Dataset) Summary() Summary {
	return Summary{
		Name:        d.Name,
		LeftEdge:    d.Octree.LeftEdge(),
		RightEdge:   d.Octree.RightEdge(),
		RootDims:    d.Octree.RootDims(),
		Periodicity: d.Periodicity,
		Octs:        d.Octree.Len(),
		Patches:     d.Patches.Len(),
	}
}
