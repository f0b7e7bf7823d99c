package selection

import "math"

// Vector3 is a coordinate triple passed by value through the traversal.
type Vector3 [3]float64

func NewVector3(x, y, z float64) Vector3 {
	return Vector3{x, y, z}
}

func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{v[0] * s, v[1] * s, v[2] * s}
}

// Mul multiplies component-wise.
func (v Vector3) Mul(o Vector3) Vector3 {
	return Vector3{v[0] * o[0], v[1] * o[1], v[2] * o[2]}
}

func (v Vector3) Min(o Vector3) Vector3 {
	return Vector3{math.Min(v[0], o[0]), math.Min(v[1], o[1]), math.Min(v[2], o[2])}
}

func (v Vector3) Max(o Vector3) Vector3 {
	return Vector3{math.Max(v[0], o[0]), math.Max(v[1], o[1]), math.Max(v[2], o[2])}
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vector3) IsFinite() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
