package pkg

import (
	"math"
	"time"

	"github.com/golang/geo/r3"

	"github.com/ecopia-map/globe_tiler/internal/converters"
)

// Flies the viewpoint straight down towards a target, from StartDistance to EndDistance
// planet radii above the surface. Altitude falls geometrically so each halving of the
// distance takes the same time.
type ApproachPath struct {
	converter     converters.CoordinateConverter
	radius        float64
	lat           float64
	lon           float64
	startDistance float64
	endDistance   float64
	duration      time.Duration
}

func NewApproachPath(converter converters.CoordinateConverter, radius, lat, lon, startDistance, endDistance float64, duration time.Duration) *ApproachPath {
	return &ApproachPath{
		converter:     converter,
		radius:        radius,
		lat:           lat,
		lon:           lon,
		startDistance: startDistance,
		endDistance:   endDistance,
		duration:      duration,
	}
}

// Altitude in planet radii after elapsed
func (p *ApproachPath) Altitude(elapsed time.Duration) float64 {
	if p.duration <= 0 || elapsed >= p.duration {
		return p.endDistance
	}
	if elapsed <= 0 {
		return p.startDistance
	}
	t := float64(elapsed) / float64(p.duration)
	if p.startDistance <= 0 || p.endDistance <= 0 {
		return p.startDistance + (p.endDistance-p.startDistance)*t
	}
	return p.startDistance * math.Pow(p.endDistance/p.startDistance, t)
}

func (p *ApproachPath) Viewpoint(elapsed time.Duration) (r3.Vector, error) {
	return p.converter.GeodeticToCartesian(p.lat, p.lon, p.Altitude(elapsed)*p.radius)
}

// Point of the surface below the viewpoint
func (p *ApproachPath) Target() (r3.Vector, error) {
	return p.converter.GeodeticToCartesian(p.lat, p.lon, 0)
}

func (p *ApproachPath) Done(elapsed time.Duration) bool {
	return elapsed >= p.duration
}
