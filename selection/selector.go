package selection

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// MaxLevelLimit is the deepest refinement level a selector accepts. It
	// bounds the traversal recursion depth.
	MaxLevelLimit = 48
)

const (
	ErrTypeConfiguration     = "configuration_error"
	ErrTypeContractViolation = "contract_violation"
)

// Config holds the per-query parameters of a selector.
type Config struct {
	// The inclusive refinement level bounds.
	MinLevel int `json:"min_level"`
	MaxLevel int `json:"max_level"`

	// Whether a cell only partially covered by the region is selected.
	OverlapCells bool `json:"overlap_cells"`

	// The extent of the domain on each axis. Only read on periodic axes.
	DomainWidth Vector3 `json:"domain_width"`
	Periodicity [3]bool `json:"periodicity"`
}

// Selector answers whether points, boxes, grid patches and octree cells
// intersect a region. It is immutable once built and safe for concurrent use.
type Selector struct {
	minLevel     int
	maxLevel     int
	overlapCells bool
	domainWidth  Vector3
	periodicity  [3]bool
	shape        Shape
}

// New validates the configuration and the shape and returns a selector bound
// to that shape.
func New(conf Config, shape Shape) (*Selector, error) {
	if shape == nil {
		return nil, errors.New("selector shape is missing").
			WithType(ErrTypeConfiguration)
	}

	if err := validateConfig(conf); err != nil {
		return nil, err
	}

	if err := shape.validate(); err != nil {
		return nil, errors.New("invalid selector shape").
			WithType(ErrTypeConfiguration).
			WithTag("shape", shape.Kind()).
			Wrap(err)
	}

	s := &Selector{
		minLevel:     conf.MinLevel,
		maxLevel:     conf.MaxLevel,
		overlapCells: conf.OverlapCells,
		domainWidth:  conf.DomainWidth,
		periodicity:  conf.Periodicity,
		shape:        shape,
	}

	// A grid patch never selects anything finer than itself.
	if p, ok := shape.(GridPatch); ok && p.Level < s.maxLevel {
		s.maxLevel = p.Level
		if s.maxLevel < s.minLevel {
			return nil, errors.New("grid patch level is below the minimum level").
				WithType(ErrTypeConfiguration).
				WithTag("patch_level", p.Level).
				WithTag("min_level", conf.MinLevel)
		}
	}

	return s, nil
}

func validateConfig(conf Config) error {
	if conf.MinLevel < 0 {
		return errors.New("min level is negative").
			WithType(ErrTypeConfiguration).
			WithTag("min_level", conf.MinLevel)
	}

	if conf.MinLevel > conf.MaxLevel {
		return errors.New("min level is greater than max level").
			WithType(ErrTypeConfiguration).
			WithTag("min_level", conf.MinLevel).
			WithTag("max_level", conf.MaxLevel)
	}

	if conf.MaxLevel > MaxLevelLimit {
		return errors.New("max level exceeds the depth limit").
			WithType(ErrTypeConfiguration).
			WithTag("max_level", conf.MaxLevel).
			WithTag("limit", MaxLevelLimit)
	}

	for axis := 0; axis < 3; axis++ {
		if !conf.Periodicity[axis] {
			continue
		}

		if w := conf.DomainWidth[axis]; !isFinite(w) || w <= 0 {
			return errors.New("periodic axis has a non-positive domain width").
				WithType(ErrTypeConfiguration).
				WithTag("axis", axis).
				WithTag("domain_width", w)
		}
	}

	return nil
}

func (s *Selector) Shape() Shape {
	return s.shape
}

func (s *Selector) Kind() Kind {
	return s.shape.Kind()
}

func (s *Selector) MinLevel() int {
	return s.minLevel
}

// MaxLevel returns the effective max level, which a grid patch shape may have
// lowered.
func (s *Selector) MaxLevel() int {
	return s.maxLevel
}

func (s *Selector) OverlapCells() bool {
	return s.overlapCells
}

func (s *Selector) Config() Config {
	return Config{
		MinLevel:     s.minLevel,
		MaxLevel:     s.maxLevel,
		OverlapCells: s.overlapCells,
		DomainWidth:  s.domainWidth,
		Periodicity:  s.periodicity,
	}
}

// Difference returns the signed displacement x1 - x2 along the given axis. On
// a periodic axis the smallest-magnitude image is returned, the unwrapped one
// winning ties.
func (s *Selector) Difference(x1, x2 float64, axis int) float64 {
	rel := x1 - x2
	if !s.periodicity[axis] {
		return rel
	}

	w := s.domainWidth[axis]
	best := rel
	if math.Abs(rel+w) < math.Abs(best) {
		best = rel + w
	}
	if math.Abs(rel-w) < math.Abs(best) {
		best = rel - w
	}
	return best
}

func (s *Selector) distance2(a, b Vector3) float64 {
	var d2 float64
	for axis := 0; axis < 3; axis++ {
		d := s.Difference(a[axis], b[axis], axis)
		d2 += d * d
	}
	return d2
}

// contains1D reports whether x lies in [l, r) on the given axis, trying the
// periodic images of x.
func (s *Selector) contains1D(x, l, r float64, axis int) bool {
	if l <= x && x < r {
		return true
	}
	if !s.periodicity[axis] {
		return false
	}

	w := s.domainWidth[axis]
	return (l <= x+w && x+w < r) || (l <= x-w && x-w < r)
}

// encloses1D reports whether [bl, br) contains the whole of [al, ar).
func (s *Selector) encloses1D(al, ar, bl, br float64, axis int) bool {
	if bl <= al && ar <= br {
		return true
	}
	if !s.periodicity[axis] {
		return false
	}

	w := s.domainWidth[axis]
	if br-bl >= w {
		return true
	}
	return (bl <= al+w && ar+w <= br) || (bl <= al-w && ar-w <= br)
}

// overlaps1D reports whether [al, ar) and [bl, br) share a non-empty interval.
func (s *Selector) overlaps1D(al, ar, bl, br float64, axis int) bool {
	if al < br && bl < ar {
		return true
	}
	if !s.periodicity[axis] {
		return false
	}

	w := s.domainWidth[axis]
	return (al+w < br && bl < ar+w) || (al-w < br && bl < ar-w)
}

// overlapLength returns the length of [al, ar) covered by [bl, br).
func (s *Selector) overlapLength(al, ar, bl, br float64, axis int) float64 {
	length := ar - al
	if s.periodicity[axis] && br-bl >= s.domainWidth[axis] {
		return length
	}

	covered := intervalIntersection(al, ar, bl, br)
	if s.periodicity[axis] {
		w := s.domainWidth[axis]
		covered += intervalIntersection(al+w, ar+w, bl, br)
		covered += intervalIntersection(al-w, ar-w, bl, br)
	}
	return math.Min(covered, length)
}

func intervalIntersection(al, ar, bl, br float64) float64 {
	return math.Max(0, math.Min(ar, br)-math.Max(al, bl))
}

// axisDistance returns the distance from x to the closed interval [l, r].
func (s *Selector) axisDistance(x, l, r float64, axis int) float64 {
	d := intervalDistance(x, l, r)
	if !s.periodicity[axis] || d == 0 {
		return d
	}

	w := s.domainWidth[axis]
	return math.Min(d, math.Min(intervalDistance(x+w, l, r), intervalDistance(x-w, l, r)))
}

func intervalDistance(x, l, r float64) float64 {
	switch {
	case x < l:
		return l - x
	case x > r:
		return x - r
	default:
		return 0
	}
}
