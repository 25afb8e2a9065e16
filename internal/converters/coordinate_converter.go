package converters

import (
	"github.com/golang/geo/r3"
)

// Converts geodetic positions (degrees, meters above the reference surface) to the cartesian
// frame tiles and viewpoints are expressed in (Z towards the north pole, X towards lon 0)
type CoordinateConverter interface {
	GeodeticToCartesian(lat, lon, alt float64) (r3.Vector, error)
	Cleanup()
}

// Corrects a raw elevation sample taken at the given position
type ElevationCorrector interface {
	CorrectElevation(lon, lat, z float64) float64
}
