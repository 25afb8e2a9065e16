package tilecode

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
)

// FaceCode addresses a cube-sphere tile: a root face plus one quadrant digit per level
type FaceCode struct {
	face Face
	path string
}

func NewFaceCode(face Face, quadrants ...int) (FaceCode, error) {
	if face < FaceTop || face > FaceBack {
		return FaceCode{}, fmt.Errorf("%w: face %d", ErrInvalidTileCode, face)
	}
	var b strings.Builder
	for _, q := range quadrants {
		if q < 0 || q > 3 {
			return FaceCode{}, fmt.Errorf("%w: quadrant %d", ErrInvalidTileCode, q)
		}
		b.WriteByte(byte('0' + q))
	}
	return FaceCode{face: face, path: b.String()}, nil
}

func parseFaceCode(value string) (TileCode, error) {
	idx := strings.IndexByte(value, '_')
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTileCode, value)
	}
	face, ok := parseFace(value[:idx])
	if !ok {
		return nil, fmt.Errorf("%w: unknown face in %q", ErrInvalidTileCode, value)
	}
	path := value[idx+1:]
	for i := 0; i < len(path); i++ {
		if path[i] < '0' || path[i] > '3' {
			return nil, fmt.Errorf("%w: bad quadrant in %q", ErrInvalidTileCode, value)
		}
	}
	return FaceCode{face: face, path: path}, nil
}

func (c FaceCode) Scheme() Scheme {
	return SchemeFace
}

func (c FaceCode) Face() Face {
	return c.face
}

func (c FaceCode) Level() int {
	return len(c.path)
}

func (c FaceCode) String() string {
	return c.face.String() + "_" + c.path
}

func (c FaceCode) Quadrant() int {
	if len(c.path) == 0 {
		return -1
	}
	return int(c.path[len(c.path)-1] - '0')
}

func (c FaceCode) Parent() (TileCode, bool) {
	if len(c.path) == 0 {
		return nil, false
	}
	return FaceCode{face: c.face, path: c.path[:len(c.path)-1]}, true
}

func (c FaceCode) Children(maxLevel int) []TileCode {
	if c.Level() >= maxLevel {
		return nil
	}
	children := make([]TileCode, 4)
	for q := 0; q < 4; q++ {
		children[q] = FaceCode{face: c.face, path: c.path + string(rune('0'+q))}
	}
	return children
}

// Face angles are refined level by level from the root span so that every tile reuses the
// exact float values of its ancestors' split lines.
func (c FaceCode) GeographicBounds() orb.Bound {
	minA, maxA := -faceHalfAngle, faceHalfAngle
	minB, maxB := -faceHalfAngle, faceHalfAngle
	for i := 0; i < len(c.path); i++ {
		midA := (minA + maxA) / 2
		midB := (minB + maxB) / 2
		switch c.path[i] - '0' {
		case QuadrantTopLeft:
			maxA, minB = midA, midB
		case QuadrantTopRight:
			minA, minB = midA, midB
		case QuadrantBottomLeft:
			maxA, maxB = midA, midB
		case QuadrantBottomRight:
			minA, maxB = midA, midB
		}
	}
	return orb.Bound{Min: orb.Point{minA, minB}, Max: orb.Point{maxA, maxB}}
}

func (c FaceCode) UnitPosition(u, v float64) r3.Vector {
	b := c.GeographicBounds()
	a := lerp(b.Min[0], b.Max[0], u)
	e := lerp(b.Max[1], b.Min[1], v)
	return FacePosition(c.face, a, e)
}

func (c FaceCode) CenterPosition() r3.Vector {
	return c.UnitPosition(0.5, 0.5)
}

func (c FaceCode) LocalUV(lat, lon float64) (float64, float64, bool) {
	face, a, e := FaceAngles(UnitFromLatLon(lat, lon))
	if face != c.face {
		return 0, 0, false
	}
	b := c.GeographicBounds()
	if !b.Contains(orb.Point{a, e}) {
		return 0, 0, false
	}
	u := (a - b.Min[0]) / (b.Max[0] - b.Min[0])
	v := (b.Max[1] - e) / (b.Max[1] - b.Min[1])
	return u, v, true
}

func faceCodeForLatLon(lat, lon float64, level int) FaceCode {
	face, a, e := FaceAngles(UnitFromLatLon(lat, lon))
	code := FaceCode{face: face}
	for code.Level() < level {
		b := code.GeographicBounds()
		midA := (b.Min[0] + b.Max[0]) / 2
		midB := (b.Min[1] + b.Max[1]) / 2
		q := QuadrantTopLeft
		if a >= midA {
			q++
		}
		if e < midB {
			q += 2
		}
		code = FaceCode{face: face, path: code.path + string(rune('0'+q))}
	}
	return code
}
