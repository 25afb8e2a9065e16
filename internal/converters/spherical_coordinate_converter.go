package converters

import (
	"github.com/golang/geo/r3"

	"github.com/ecopia-map/globe_tiler/internal/tilecode"
)

// Maps geodetic positions onto a perfect sphere of the given radius
type SphericalCoordinateConverter struct {
	Radius float64
}

func NewSphericalCoordinateConverter(radius float64) CoordinateConverter {
	return &SphericalCoordinateConverter{
		Radius: radius,
	}
}

func (c *SphericalCoordinateConverter) GeodeticToCartesian(lat, lon, alt float64) (r3.Vector, error) {
	return tilecode.UnitFromLatLon(lat, lon).Mul(c.Radius + alt), nil
}

func (c *SphericalCoordinateConverter) Cleanup() {}
