package tilecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
)

const (
	gridRootCols     = 12
	gridRootRows     = 6
	gridRootCellSize = 30.0 // degrees
)

// GridCode addresses a lon/lat grid tile. latIndex 0 is the southernmost row.
type GridCode struct {
	lonIndex int
	latIndex int
	level    int
}

func NewGridCode(lonIndex, latIndex, level int) (GridCode, error) {
	if level < 0 || level > 30 {
		return GridCode{}, fmt.Errorf("%w: level %d", ErrInvalidTileCode, level)
	}
	cols, rows := gridCols(level), gridRows(level)
	if lonIndex < 0 || lonIndex >= cols || latIndex < 0 || latIndex >= rows {
		return GridCode{}, fmt.Errorf("%w: index (%d,%d) out of range at level %d", ErrInvalidTileCode, lonIndex, latIndex, level)
	}
	return GridCode{lonIndex: lonIndex, latIndex: latIndex, level: level}, nil
}

func parseGridCode(value string) (TileCode, error) {
	parts := strings.Split(strings.TrimPrefix(value, "G"), "_")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTileCode, value)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTileCode, value)
		}
		nums[i] = n
	}
	code, err := NewGridCode(nums[1], nums[2], nums[0])
	if err != nil {
		return nil, err
	}
	return code, nil
}

func gridCols(level int) int {
	return gridRootCols << uint(level)
}

func gridRows(level int) int {
	return gridRootRows << uint(level)
}

func gridCellSize(level int) float64 {
	return gridRootCellSize / float64(int(1)<<uint(level))
}

func (c GridCode) Scheme() Scheme {
	return SchemeGrid
}

func (c GridCode) Level() int {
	return c.level
}

func (c GridCode) LonIndex() int {
	return c.lonIndex
}

func (c GridCode) LatIndex() int {
	return c.latIndex
}

func (c GridCode) String() string {
	return "G" + strconv.Itoa(c.level) + "_" + strconv.Itoa(c.lonIndex) + "_" + strconv.Itoa(c.latIndex)
}

func (c GridCode) Quadrant() int {
	if c.level == 0 {
		return -1
	}
	q := c.lonIndex % 2
	if c.latIndex%2 == 0 {
		// southern half of the parent
		q += 2
	}
	return q
}

func (c GridCode) Parent() (TileCode, bool) {
	if c.level == 0 {
		return nil, false
	}
	return GridCode{lonIndex: c.lonIndex / 2, latIndex: c.latIndex / 2, level: c.level - 1}, true
}

func (c GridCode) Children(maxLevel int) []TileCode {
	if c.level >= maxLevel {
		return nil
	}
	x, y, l := c.lonIndex*2, c.latIndex*2, c.level+1
	return []TileCode{
		GridCode{lonIndex: x, latIndex: y + 1, level: l},
		GridCode{lonIndex: x + 1, latIndex: y + 1, level: l},
		GridCode{lonIndex: x, latIndex: y, level: l},
		GridCode{lonIndex: x + 1, latIndex: y, level: l},
	}
}

// Cell sizes are powers of two fractions of 30 degrees, so index * size is exact and
// neighbouring tiles agree on their shared edges.
func (c GridCode) GeographicBounds() orb.Bound {
	size := gridCellSize(c.level)
	minLon := -180 + float64(c.lonIndex)*size
	minLat := -90 + float64(c.latIndex)*size
	return orb.Bound{
		Min: orb.Point{minLon, minLat},
		Max: orb.Point{minLon + size, minLat + size},
	}
}

func (c GridCode) UnitPosition(u, v float64) r3.Vector {
	b := c.GeographicBounds()
	lon := lerp(b.Min[0], b.Max[0], u)
	lat := lerp(b.Max[1], b.Min[1], v)
	return UnitFromLatLon(lat, lon)
}

func (c GridCode) CenterPosition() r3.Vector {
	return c.UnitPosition(0.5, 0.5)
}

func (c GridCode) LocalUV(lat, lon float64) (float64, float64, bool) {
	b := c.GeographicBounds()
	if !b.Contains(orb.Point{lon, lat}) {
		return 0, 0, false
	}
	u := (lon - b.Min[0]) / (b.Max[0] - b.Min[0])
	v := (b.Max[1] - lat) / (b.Max[1] - b.Min[1])
	return u, v, true
}

func gridCodeForLatLon(lat, lon float64, level int) GridCode {
	size := gridCellSize(level)
	x := int(math.Floor((lon + 180) / size))
	y := int(math.Floor((lat + 90) / size))
	// clamp the poles and the antimeridian into the last cell
	x = clampInt(x, 0, gridCols(level)-1)
	y = clampInt(y, 0, gridRows(level)-1)
	return GridCode{lonIndex: x, latIndex: y, level: level}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
