package tilecode

import (
	"math"

	"github.com/golang/geo/r3"
)

// Cartesian frame used throughout: Z points to the north pole, X to lat 0 / lon 0,
// Y to lat 0 / lon 90 (same orientation as ECEF).

type Face int

const (
	FaceTop Face = iota
	FaceBottom
	FaceLeft
	FaceRight
	FaceFront
	FaceBack
)

var Faces = [...]Face{FaceTop, FaceBottom, FaceLeft, FaceRight, FaceFront, FaceBack}

var faceNames = [...]string{"Top", "Bottom", "Left", "Right", "Front", "Back"}

func (f Face) String() string {
	if f < FaceTop || f > FaceBack {
		return "Unknown"
	}
	return faceNames[f]
}

func parseFace(name string) (Face, bool) {
	for i, n := range faceNames {
		if n == name {
			return Face(i), true
		}
	}
	return 0, false
}

// Half of the angular span of a face, in degrees
const faceHalfAngle = 45.0

// Orthonormal frame of a cube face: center is the face normal, right and up span the face
type faceFrame struct {
	center r3.Vector
	right  r3.Vector
	up     r3.Vector
}

var faceFrames = [...]faceFrame{
	FaceTop:    {center: r3.Vector{X: 0, Y: 0, Z: 1}, right: r3.Vector{X: 0, Y: 1, Z: 0}, up: r3.Vector{X: -1, Y: 0, Z: 0}},
	FaceBottom: {center: r3.Vector{X: 0, Y: 0, Z: -1}, right: r3.Vector{X: 0, Y: 1, Z: 0}, up: r3.Vector{X: 1, Y: 0, Z: 0}},
	FaceLeft:   {center: r3.Vector{X: 0, Y: -1, Z: 0}, right: r3.Vector{X: 1, Y: 0, Z: 0}, up: r3.Vector{X: 0, Y: 0, Z: 1}},
	FaceRight:  {center: r3.Vector{X: 0, Y: 1, Z: 0}, right: r3.Vector{X: -1, Y: 0, Z: 0}, up: r3.Vector{X: 0, Y: 0, Z: 1}},
	FaceFront:  {center: r3.Vector{X: 1, Y: 0, Z: 0}, right: r3.Vector{X: 0, Y: 1, Z: 0}, up: r3.Vector{X: 0, Y: 0, Z: 1}},
	FaceBack:   {center: r3.Vector{X: -1, Y: 0, Z: 0}, right: r3.Vector{X: 0, Y: -1, Z: 0}, up: r3.Vector{X: 0, Y: 0, Z: 1}},
}

// Maps face angles (degrees, horizontal a and vertical b, both in [-45,45]) to the unit sphere.
// The tangent mapping keeps angular spacing uniform, so halving the angles at every level
// yields tiles of similar size across the whole face.
func FacePosition(face Face, a, b float64) r3.Vector {
	frame := faceFrames[face]
	ta := math.Tan(a * math.Pi / 180)
	tb := math.Tan(b * math.Pi / 180)
	p := frame.center.Add(frame.right.Mul(ta)).Add(frame.up.Mul(tb))
	return p.Normalize()
}

// Inverse of FacePosition: picks the face the direction falls on and returns its face angles
func FaceAngles(dir r3.Vector) (Face, float64, float64) {
	face := faceForDirection(dir)
	frame := faceFrames[face]
	d := frame.center.Dot(dir)
	a := math.Atan(frame.right.Dot(dir)/d) * 180 / math.Pi
	b := math.Atan(frame.up.Dot(dir)/d) * 180 / math.Pi
	return face, a, b
}

func faceForDirection(dir r3.Vector) Face {
	ax, ay, az := math.Abs(dir.X), math.Abs(dir.Y), math.Abs(dir.Z)
	switch {
	case az >= ax && az >= ay:
		if dir.Z >= 0 {
			return FaceTop
		}
		return FaceBottom
	case ax >= ay:
		if dir.X >= 0 {
			return FaceFront
		}
		return FaceBack
	default:
		if dir.Y >= 0 {
			return FaceRight
		}
		return FaceLeft
	}
}

// Unit vector of a geographic position given in degrees
func UnitFromLatLon(lat, lon float64) r3.Vector {
	latRad := lat * math.Pi / 180
	lonRad := lon * math.Pi / 180
	return r3.Vector{
		X: math.Cos(latRad) * math.Cos(lonRad),
		Y: math.Cos(latRad) * math.Sin(lonRad),
		Z: math.Sin(latRad),
	}
}

// Geographic position in degrees of a (not necessarily normalized) direction
func LatLonFromUnit(v r3.Vector) (float64, float64) {
	n := v.Normalize()
	lat := math.Asin(math.Max(-1, math.Min(1, n.Z))) * 180 / math.Pi
	lon := math.Atan2(n.Y, n.X) * 180 / math.Pi
	return lat, lon
}
