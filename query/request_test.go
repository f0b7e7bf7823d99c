package query

import (
	"testing"

	"github.com/aukilabs/octsel/selection"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

func TestRequestBuildShape(t *testing.T) {
	tests := []struct {
		request  string
		expected selection.Shape
	}{
		{
			request:  `{"shape": "point", "position": [1, 2, 3]}`,
			expected: selection.Point{Position: selection.Vector3{1, 2, 3}},
		},
		{
			request:  `{"shape": "sphere", "center": [0.5, 0.5, 0.5], "radius": 0.1}`,
			expected: selection.Sphere{Center: selection.Vector3{0.5, 0.5, 0.5}, Radius: 0.1},
		},
		{
			request: `{"shape": "box", "left_edge": [0, 0, 0], "right_edge": [1, 1, 1]}`,
			expected: selection.Box{
				LeftEdge:  selection.Vector3{0, 0, 0},
				RightEdge: selection.Vector3{1, 1, 1},
			},
		},
		{
			request: `{"shape": "grid", "left_edge": [0, 0, 0], "right_edge": [1, 1, 1], "level": 3}`,
			expected: selection.GridPatch{
				LeftEdge:  selection.Vector3{0, 0, 0},
				RightEdge: selection.Vector3{1, 1, 1},
				Level:     3,
			},
		},
		{
			request:  `{"shape": "slice", "axis": 2, "coord": 0.3}`,
			expected: selection.Slice{Axis: 2, Coord: 0.3},
		},
		{
			request:  `{"shape": "ortho_ray", "axis": 1, "coords": [0.2, 0.4]}`,
			expected: selection.OrthoRay{Axis: 1, Coords: [2]float64{0.2, 0.4}},
		},
	}

	for _, test := range tests {
		t.Run(string(test.expected.Kind()), func(t *testing.T) {
			var req Request
			require.NoError(t, json.Unmarshal([]byte(test.request), &req))

			shape, err := req.BuildShape()
			require.NoError(t, err)
			require.Equal(t, test.expected, shape)
		})
	}

	t.Run("missing shape", func(t *testing.T) {
		_, err := Request{}.BuildShape()
		require.Error(t, err)
		require.True(t, IsClientError(err))
	})

	t.Run("unknown shape", func(t *testing.T) {
		_, err := Request{Shape: "cylinder"}.BuildShape()
		require.Error(t, err)
		require.True(t, IsClientError(err))
	})
}
