package proj4_coordinate_converter

import (
	"fmt"
	"math"
	"sync"

	"github.com/golang/geo/r3"
	proj4 "github.com/xeonx/proj4"

	"github.com/ecopia-map/globe_tiler/internal/converters"
)

const (
	wgs84GeodeticDefinition   = "+proj=longlat +datum=WGS84 +no_defs"
	wgs84GeocentricDefinition = "+proj=geocent +datum=WGS84 +units=m +no_defs"
)

// Converts WGS84 geodetic coordinates to WGS84 geocentric (ECEF) coordinates using proj4.
// proj4 projection handles are not safe for concurrent use, calls are serialized.
type proj4CoordinateConverter struct {
	sync.Mutex
	geodetic   *proj4.Proj
	geocentric *proj4.Proj
}

func NewProj4CoordinateConverter() (converters.CoordinateConverter, error) {
	src, err := proj4.InitPlus(wgs84GeodeticDefinition)
	if err != nil {
		return nil, fmt.Errorf("init geodetic projection: %w", err)
	}
	dst, err := proj4.InitPlus(wgs84GeocentricDefinition)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("init geocentric projection: %w", err)
	}

	return &proj4CoordinateConverter{
		geodetic:   src,
		geocentric: dst,
	}, nil
}

func (cc *proj4CoordinateConverter) GeodeticToCartesian(lat, lon, alt float64) (r3.Vector, error) {
	cc.Lock()
	defer cc.Unlock()

	// proj4 expects angular coordinates in radians
	x := []float64{lon * math.Pi / 180}
	y := []float64{lat * math.Pi / 180}
	z := []float64{alt}

	if err := proj4.TransformRaw(cc.geodetic, cc.geocentric, x, y, z); err != nil {
		return r3.Vector{}, err
	}

	return r3.Vector{X: x[0], Y: y[0], Z: z[0]}, nil
}

// Releases the proj4 handles
func (cc *proj4CoordinateConverter) Cleanup() {
	cc.Lock()
	defer cc.Unlock()

	if cc.geodetic != nil {
		cc.geodetic.Close()
		cc.geodetic = nil
	}
	if cc.geocentric != nil {
		cc.geocentric.Close()
		cc.geocentric = nil
	}
}
