package scene

import (
	"github.com/ecopia-map/globe_tiler/internal/data"
	"github.com/ecopia-map/globe_tiler/internal/tilecode"
)

// Opaque reference to a tile attached to the scene
type SceneHandle string

// Projects tiles into the renderer's scene graph. All methods are called from the goroutine
// that ticks the tile manager.
type SceneIntegration interface {
	// Attaches the payload hidden
	Attach(code tilecode.TileCode, payload *data.MeshPayload) (SceneHandle, error)
	SetVisible(handle SceneHandle, visible bool)
	Detach(handle SceneHandle)
}

// Implemented by scenes that can cull a tile closer than a given distance
type VisibilityRangeSetter interface {
	SetVisibilityRange(handle SceneHandle, minDistance float64)
}
