package mesh

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"

	"github.com/ecopia-map/globe_tiler/internal/data"
)

// Section is the part of the sphere a mesh is built for. Tile codes satisfy it.
type Section interface {
	String() string
	GeographicBounds() orb.Bound
	UnitPosition(u, v float64) r3.Vector
}

type MeshBuilder interface {
	BuildSphereSection(section Section, radius float64, colors *data.ColorGrid, elevation *data.ElevationGrid) (*data.MeshPayload, error)
}

var ErrInvalidInput = errors.New("invalid mesh input")

// Builds one vertex per elevation sample, displaced along the sphere normal
type SphereSectionBuilder struct{}

func NewSphereSectionBuilder() MeshBuilder {
	return &SphereSectionBuilder{}
}

func (b *SphereSectionBuilder) BuildSphereSection(section Section, radius float64, colors *data.ColorGrid, elevation *data.ElevationGrid) (*data.MeshPayload, error) {
	switch {
	case section == nil:
		return nil, fmt.Errorf("%w: nil section", ErrInvalidInput)
	case elevation == nil || elevation.Width < 2 || elevation.Height < 2:
		return nil, fmt.Errorf("%w: elevation grid must be at least 2x2", ErrInvalidInput)
	case colors == nil:
		return nil, fmt.Errorf("%w: nil color grid", ErrInvalidInput)
	case radius <= 0:
		return nil, fmt.Errorf("%w: radius %v", ErrInvalidInput, radius)
	}

	cols, rows := elevation.Width, elevation.Height
	numVertices := cols * rows
	center := section.UnitPosition(0.5, 0.5).Mul(radius)

	payload := &data.MeshPayload{
		Code:      section.String(),
		Cols:      cols,
		Rows:      rows,
		Center:    center,
		Positions: make([]float32, 0, numVertices*3),
		Normals:   make([]float32, numVertices*3),
		UVs:       make([]float32, 0, numVertices*2),
		Colors:    make([]uint8, 0, numVertices*4),
		Indices:   make([]uint32, 0, (cols-1)*(rows-1)*6),
		Heights:   make([]float32, 0, numVertices),
	}

	absolute := make([]r3.Vector, numVertices)
	for y := 0; y < rows; y++ {
		v := float64(y) / float64(rows-1)
		for x := 0; x < cols; x++ {
			u := float64(x) / float64(cols-1)
			h := elevation.At(x, y)

			p := section.UnitPosition(u, v).Mul(radius + float64(h))
			absolute[y*cols+x] = p

			local := p.Sub(center)
			payload.Positions = append(payload.Positions, float32(local.X), float32(local.Y), float32(local.Z))
			payload.UVs = append(payload.UVs, float32(u), float32(v))
			c := colors.Sample(u, v)
			payload.Colors = append(payload.Colors, c.R, c.G, c.B, c.A)
			payload.Heights = append(payload.Heights, h)
		}
	}

	// two counter-clockwise triangles per cell, seen from outside the sphere
	for y := 0; y < rows-1; y++ {
		for x := 0; x < cols-1; x++ {
			tl := uint32(y*cols + x)
			tr := tl + 1
			bl := tl + uint32(cols)
			br := bl + 1
			payload.Indices = append(payload.Indices, tl, bl, tr, tr, bl, br)
		}
	}

	computeNormals(payload, absolute, cols, rows)
	return payload, nil
}

// Central differences over the grid, falling back to one sided differences on the border
func computeNormals(payload *data.MeshPayload, positions []r3.Vector, cols, rows int) {
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			left, right := maxInt(x-1, 0), minInt(x+1, cols-1)
			up, down := maxInt(y-1, 0), minInt(y+1, rows-1)

			du := positions[y*cols+right].Sub(positions[y*cols+left])
			dv := positions[up*cols+x].Sub(positions[down*cols+x])
			n := du.Cross(dv)
			if n.Norm() == 0 {
				n = positions[y*cols+x]
			}
			n = n.Normalize()

			i := (y*cols + x) * 3
			payload.Normals[i] = float32(n.X)
			payload.Normals[i+1] = float32(n.Y)
			payload.Normals[i+2] = float32(n.Z)
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
