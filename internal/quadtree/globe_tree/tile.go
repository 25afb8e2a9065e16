package globe_tree

import (
	"context"
	"time"

	"github.com/golang/geo/r3"

	"github.com/ecopia-map/globe_tiler/internal/data"
	"github.com/ecopia-map/globe_tiler/internal/io"
	"github.com/ecopia-map/globe_tiler/internal/quadtree"
	"github.com/ecopia-map/globe_tiler/internal/scene"
	"github.com/ecopia-map/globe_tiler/internal/tilecode"
)

// Models a tile of the globe quadtree. A tile owns its children exclusively and is only
// mutated by the goroutine ticking its manager.
type Tile struct {
	id       uint64
	code     tilecode.TileCode
	center   r3.Vector // relative to the reference origin
	parent   *Tile
	children []*Tile

	constructionStarted  bool
	backgroundComplete   bool
	constructionComplete bool
	activeVisibility     bool
	visibleState         bool
	childrenVisibleState bool
	failed               bool
	deleted              bool
	fromCache            bool

	ctx    context.Context
	cancel context.CancelFunc

	handle        scene.SceneHandle
	attached      bool
	payload       *data.MeshPayload // between intake and finalize
	scratch       *io.Scratch
	heights       *data.ElevationGrid // kept for elevation queries
	finalizeStage finalizeStage
	nextEval      time.Time
}

func newTile(id uint64, code tilecode.TileCode, center r3.Vector, parent *Tile, parentCtx context.Context) *Tile {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Tile{
		id:     id,
		code:   code,
		center: center,
		parent: parent,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (t *Tile) GetCode() tilecode.TileCode {
	return t.code
}

func (t *Tile) GetLevel() int {
	return t.code.Level()
}

func (t *Tile) GetParent() quadtree.ITile {
	if t.parent == nil {
		return nil
	}
	return t.parent
}

func (t *Tile) GetChildren() []quadtree.ITile {
	children := make([]quadtree.ITile, 0, len(t.children))
	for _, child := range t.children {
		children = append(children, child)
	}
	return children
}

func (t *Tile) IsRoot() bool {
	return t.parent == nil
}

func (t *Tile) IsLeaf() bool {
	return len(t.children) == 0
}

func (t *Tile) IsVisible() bool {
	return t.visibleState
}

func (t *Tile) IsChildrenVisible() bool {
	return t.childrenVisibleState
}

func (t *Tile) IsActive() bool {
	return t.activeVisibility
}

func (t *Tile) IsConstructionComplete() bool {
	return t.constructionComplete
}

func (t *Tile) GetState() quadtree.State {
	switch {
	case t.deleted:
		return quadtree.StateDeleted
	case t.failed:
		return quadtree.StateFailed
	case !t.constructionStarted:
		return quadtree.StatePending
	case !t.backgroundComplete:
		return quadtree.StateConstructing
	case !t.constructionComplete:
		return quadtree.StateAwaitingFinalize
	case !t.activeVisibility:
		return quadtree.StateInactive
	case t.childrenVisibleState:
		return quadtree.StateChildrenDisplayed
	}
	return quadtree.StateDisplayed
}

// All children exist and report constructionComplete
func (t *Tile) childrenLoaded() bool {
	if len(t.children) == 0 {
		return false
	}
	for _, child := range t.children {
		if !child.constructionComplete {
			return false
		}
	}
	return true
}

func (t *Tile) info(distanceFraction float64) quadtree.TileInfo {
	return quadtree.TileInfo{
		Code:                 t.code.String(),
		Level:                t.code.Level(),
		State:                t.GetState(),
		Active:               t.activeVisibility,
		Visible:              t.visibleState,
		ChildrenVisible:      t.childrenVisibleState,
		ConstructionComplete: t.constructionComplete,
		FromCache:            t.fromCache,
		Children:             len(t.children),
		DistanceFraction:     distanceFraction,
	}
}
