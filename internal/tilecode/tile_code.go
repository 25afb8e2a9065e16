package tilecode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
)

type Scheme string

const (
	// Cube-sphere addressing: six faces, each subdivided by halving the angular span
	SchemeFace Scheme = "FACE"

	// Lon/lat grid addressing: a 12x6 grid of 30 degree cells at level 0
	SchemeGrid Scheme = "GRID"
)

// Quadrant indices as seen looking at the tile with north/up at the top
const (
	QuadrantTopLeft     = 0
	QuadrantTopRight    = 1
	QuadrantBottomLeft  = 2
	QuadrantBottomRight = 3
)

var (
	ErrInvalidTileCode = errors.New("invalid tile code")
	ErrBeyondMaxLevel  = errors.New("tile code beyond max level")
)

// TileCode is the immutable address of a tile in the quadtree.
//
// Fractional tile coordinates (u, v) range over [0,1]x[0,1] with u growing to the right
// and v growing downwards, so (0,0) is the top-left corner of the tile.
type TileCode interface {
	Scheme() Scheme
	Level() int
	String() string

	// Index of this tile inside its parent, -1 for roots
	Quadrant() int

	Parent() (TileCode, bool)

	// Returns the 4 children ordered by quadrant index, or nil once maxLevel is reached
	Children(maxLevel int) []TileCode

	// Extent in the code's own 2D parameter space (lon/lat degrees for grid codes,
	// face angles in degrees for face codes)
	GeographicBounds() orb.Bound

	// Point on the unit sphere at the given fractional tile coordinates
	UnitPosition(u, v float64) r3.Vector

	// Point on the unit sphere at the tile center
	CenterPosition() r3.Vector

	// Fractional tile coordinates of the given geographic position, ok is false when the
	// position lies outside the tile
	LocalUV(lat, lon float64) (u, v float64, ok bool)
}

// Returns the fixed root set of the given scheme
func Roots(scheme Scheme) []TileCode {
	switch scheme {
	case SchemeFace:
		roots := make([]TileCode, 0, len(Faces))
		for _, f := range Faces {
			roots = append(roots, FaceCode{face: f})
		}
		return roots
	case SchemeGrid:
		roots := make([]TileCode, 0, gridRootCols*gridRootRows)
		for y := gridRootRows - 1; y >= 0; y-- {
			for x := 0; x < gridRootCols; x++ {
				roots = append(roots, GridCode{lonIndex: x, latIndex: y, level: 0})
			}
		}
		return roots
	}
	return nil
}

// Parses the canonical string form produced by TileCode.String
func Parse(value string) (TileCode, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "G") {
		return parseGridCode(value)
	}
	return parseFaceCode(value)
}

// Returns the tile of the given level that contains the geographic position
func CodeForLatLon(scheme Scheme, lat, lon float64, level int) (TileCode, error) {
	if level < 0 {
		return nil, fmt.Errorf("%w: negative level %d", ErrInvalidTileCode, level)
	}
	switch scheme {
	case SchemeFace:
		return faceCodeForLatLon(lat, lon, level), nil
	case SchemeGrid:
		return gridCodeForLatLon(lat, lon, level), nil
	}
	return nil, fmt.Errorf("%w: unknown scheme %q", ErrInvalidTileCode, scheme)
}

// Checks that the code does not exceed the configured max level
func Validate(code TileCode, maxLevel int) error {
	if code == nil {
		return fmt.Errorf("%w: nil code", ErrInvalidTileCode)
	}
	if code.Level() > maxLevel {
		return fmt.Errorf("%w: %s has level %d, max is %d", ErrBeyondMaxLevel, code, code.Level(), maxLevel)
	}
	return nil
}

// Rect is a sub-rectangle in fractional tile coordinates
type Rect struct {
	MinU, MinV float64
	MaxU, MaxV float64
}

func (r Rect) Width() float64 {
	return r.MaxU - r.MinU
}

func (r Rect) Height() float64 {
	return r.MaxV - r.MinV
}

// Computes the sub-rectangle covered by code inside one of its ancestors. ok is false when
// ancestor is not an ancestor of code (or code itself).
func RelativeRect(code TileCode, ancestor TileCode) (Rect, bool) {
	if code.Scheme() != ancestor.Scheme() || code.Level() < ancestor.Level() {
		return Rect{}, false
	}

	// collect quadrants from ancestor down to code
	steps := make([]int, 0, code.Level()-ancestor.Level())
	current := code
	for current.Level() > ancestor.Level() {
		steps = append(steps, current.Quadrant())
		parent, ok := current.Parent()
		if !ok {
			return Rect{}, false
		}
		current = parent
	}
	if current.String() != ancestor.String() {
		return Rect{}, false
	}

	rect := Rect{MinU: 0, MinV: 0, MaxU: 1, MaxV: 1}
	for i := len(steps) - 1; i >= 0; i-- {
		rect = rect.quadrant(steps[i])
	}
	return rect, true
}

func (r Rect) quadrant(q int) Rect {
	midU := (r.MinU + r.MaxU) / 2
	midV := (r.MinV + r.MaxV) / 2
	switch q {
	case QuadrantTopLeft:
		return Rect{MinU: r.MinU, MinV: r.MinV, MaxU: midU, MaxV: midV}
	case QuadrantTopRight:
		return Rect{MinU: midU, MinV: r.MinV, MaxU: r.MaxU, MaxV: midV}
	case QuadrantBottomLeft:
		return Rect{MinU: r.MinU, MinV: midV, MaxU: midU, MaxV: r.MaxV}
	default:
		return Rect{MinU: midU, MinV: midV, MaxU: r.MaxU, MaxV: r.MaxV}
	}
}

// lerp returns exactly a for t == 0 and exactly b for t == 1, which keeps the edges
// shared by neighbouring tiles bit-identical.
func lerp(a, b, t float64) float64 {
	return (1-t)*a + t*b
}
