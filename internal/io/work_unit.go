package io

import (
	"context"

	"github.com/ecopia-map/globe_tiler/internal/data"
	"github.com/ecopia-map/globe_tiler/internal/tilecode"
)

// Contains the minimal data needed to construct a single tile. Ctx is owned by the tile: it is
// cancelled when the tile is deleted.
type WorkUnit struct {
	TileID uint64
	Code   tilecode.TileCode
	Ctx    context.Context
}

func (w *WorkUnit) context() context.Context {
	if w.Ctx == nil {
		return context.Background()
	}
	return w.Ctx
}

// Intermediate grids of one construction. Handed to the owner together with the payload and
// released once the tile is finalized.
type Scratch struct {
	Elevation *data.ElevationGrid
	Colors    *data.ColorGrid
}

func (s *Scratch) Release() {
	if s == nil {
		return
	}
	s.Elevation = nil
	s.Colors = nil
}

// Posted by a consumer once the background construction of a tile is over
type WorkResult struct {
	TileID    uint64
	Code      tilecode.TileCode
	Payload   *data.MeshPayload
	Scratch   *Scratch
	FromCache bool
	Err       error
}
