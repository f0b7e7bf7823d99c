package query

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/octsel/selection"
)

const (
	ErrTypeInvalidRequest = "invalid_request"
)

// Request is a JSON selection query. Shape names the region kind and selects
// which of the shape fields are read.
type Request struct {
	Shape selection.Kind `json:"shape"`

	// Point.
	Position selection.Vector3 `json:"position"`

	// Sphere.
	Center selection.Vector3 `json:"center"`
	Radius float64           `json:"radius,omitempty"`

	// Box and grid patch.
	LeftEdge  selection.Vector3 `json:"left_edge"`
	RightEdge selection.Vector3 `json:"right_edge"`
	Level     int               `json:"level,omitempty"`

	// Slice and ortho ray.
	Axis   int        `json:"axis,omitempty"`
	Coord  float64    `json:"coord,omitempty"`
	Coords [2]float64 `json:"coords"`

	MinLevel int `json:"min_level,omitempty"`

	// The max level defaults to the runner default when unset.
	MaxLevel *int `json:"max_level,omitempty"`

	OverlapCells bool `json:"overlap_cells,omitempty"`
	VisitCovered bool `json:"visit_covered,omitempty"`

	// Whether the selected grid patches are reported.
	Patches bool `json:"patches,omitempty"`

	// Whether only the summary is reported, without the cells.
	CountOnly bool `json:"count_only,omitempty"`
}

// BuildShape returns the selection shape described by the request.
func (r Request) BuildShape() (selection.Shape, error) {
	switch r.Shape {
	case selection.KindPoint:
		return selection.Point{Position: r.Position}, nil

	case selection.KindSphere:
		return selection.Sphere{Center: r.Center, Radius: r.Radius}, nil

	case selection.KindBox:
		return selection.Box{LeftEdge: r.LeftEdge, RightEdge: r.RightEdge}, nil

	case selection.KindGridPatch:
		return selection.GridPatch{
			LeftEdge:  r.LeftEdge,
			RightEdge: r.RightEdge,
			Level:     r.Level,
		}, nil

	case selection.KindSlice:
		return selection.Slice{Axis: r.Axis, Coord: r.Coord}, nil

	case selection.KindOrthoRay:
		return selection.OrthoRay{Axis: r.Axis, Coords: r.Coords}, nil

	case "":
		return nil, errors.New("shape is missing").
			WithType(ErrTypeInvalidRequest)

	default:
		return nil, errors.New("unknown shape").
			WithType(ErrTypeInvalidRequest).
			WithTag("shape", r.Shape)
	}
}

// IsClientError reports whether err is caused by an invalid request rather
// than a failure of the service.
func IsClientError(err error) bool {
	return errors.IsType(err, ErrTypeInvalidRequest) ||
		errors.IsType(err, selection.ErrTypeConfiguration)
}
