package globe_tree

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/golang/glog"

	"github.com/ecopia-map/globe_tiler/internal/converters"
	"github.com/ecopia-map/globe_tiler/internal/io"
	"github.com/ecopia-map/globe_tiler/internal/quadtree"
	"github.com/ecopia-map/globe_tiler/internal/scene"
	"github.com/ecopia-map/globe_tiler/internal/tilecode"
	"github.com/ecopia-map/globe_tiler/internal/tiler"
)

// Reports whether a tile has elevation data worth subdividing for
type ElevationAvailability interface {
	Available(code tilecode.TileCode) bool
}

type opKind int

const (
	opCreateChildren opKind = iota
	opDeleteChildren
)

// Tree mutation decided during the walk and applied after it
type deferredOp struct {
	kind opKind
	tile *Tile
}

type counters struct {
	Created   int64
	Deleted   int64
	Finalized int64
	CacheHits int64
	Failures  int64
	Evaluated int64
	Dropped   int64
}

// Owns the tile tree. Construction results arrive on the results channel and are only
// applied by Tick.
type TileManager struct {
	ctx          *tiler.TilingContext
	scheme       tilecode.Scheme
	producer     io.Producer
	results      <-chan *io.WorkResult
	scene        scene.SceneIntegration
	availability ElevationAvailability
	converter    converters.CoordinateConverter

	roots         []*Tile
	tiles         map[uint64]*Tile
	byCode        map[string]*Tile
	finalizeQueue []*Tile
	ops           []deferredOp
	nextID        uint64
	stats         counters
	closed        bool

	baseCtx   context.Context
	cancelAll context.CancelFunc

	sync.RWMutex
}

// Builds the manager and submits the root tiles of the scheme for construction
func NewTileManager(
	tilingContext *tiler.TilingContext,
	scheme tilecode.Scheme,
	producer io.Producer,
	results <-chan *io.WorkResult,
	sceneIntegration scene.SceneIntegration,
	availability ElevationAvailability,
	converter converters.CoordinateConverter,
) (*TileManager, error) {
	if err := tilingContext.Validate(); err != nil {
		return nil, err
	}
	roots := tilecode.Roots(scheme)
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: unknown scheme %q", tilecode.ErrInvalidTileCode, scheme)
	}
	if converter == nil {
		converter = converters.NewSphericalCoordinateConverter(tilingContext.Radius)
	}

	baseCtx, cancelAll := context.WithCancel(context.Background())
	m := &TileManager{
		ctx:          tilingContext,
		scheme:       scheme,
		producer:     producer,
		results:      results,
		scene:        sceneIntegration,
		availability: availability,
		converter:    converter,
		tiles:        make(map[uint64]*Tile),
		byCode:       make(map[string]*Tile),
		baseCtx:      baseCtx,
		cancelAll:    cancelAll,
	}

	for _, code := range roots {
		m.roots = append(m.roots, m.createTile(code, nil))
	}
	glog.Infof("tile manager started with %d %s roots", len(roots), scheme)
	return m, nil
}

func (m *TileManager) SetViewpoint(viewpoint r3.Vector) {
	m.Lock()
	defer m.Unlock()
	m.ctx.Viewpoint = viewpoint
}

func (m *TileManager) ShiftReferenceOrigin(delta r3.Vector) {
	m.Lock()
	defer m.Unlock()

	m.ctx.Origin = m.ctx.Origin.Add(delta)
	for _, t := range m.tiles {
		t.center = t.center.Sub(delta)
	}
}

func (m *TileManager) Tick(now time.Time) {
	m.Lock()
	defer m.Unlock()

	if m.closed {
		return
	}

	m.producer.Flush()
	m.drainResults()
	m.finalize(now)
	for _, root := range m.roots {
		m.walk(root, now)
	}
	m.applyDeferred()
	m.producer.Flush()
}

func (m *TileManager) drainResults() {
	for {
		select {
		case result, ok := <-m.results:
			if !ok {
				return
			}
			m.intake(result)
		default:
			return
		}
	}
}

func (m *TileManager) enqueue(op deferredOp) {
	m.ops = append(m.ops, op)
}

func (m *TileManager) applyDeferred() {
	ops := m.ops
	m.ops = nil

	for _, op := range ops {
		if op.tile.deleted {
			continue
		}
		switch op.kind {
		case opCreateChildren:
			m.createChildren(op.tile)
		case opDeleteChildren:
			m.deleteChildren(op.tile)
		}
	}
}

func (m *TileManager) createChildren(t *Tile) {
	if len(t.children) > 0 || !t.constructionComplete {
		return
	}
	for _, code := range t.code.Children(m.ctx.MaxLevel) {
		t.children = append(t.children, m.createTile(code, t))
	}
	glog.V(2).Infof("tile %s: created %d children", t.code, len(t.children))
}

func (m *TileManager) deleteChildren(t *Tile) {
	// deactivation already happened during the walk, this only frees
	for _, child := range t.children {
		m.free(child)
	}
	t.children = nil
	t.childrenVisibleState = false
}

// Creates a pending tile and submits its construction
func (m *TileManager) createTile(code tilecode.TileCode, parent *Tile) *Tile {
	m.nextID++
	t := newTile(m.nextID, code, m.tileCenter(code), parent, m.baseCtx)
	m.tiles[t.id] = t
	m.byCode[code.String()] = t
	m.stats.Created++

	// construction starts with any prior visibility cleared
	t.constructionStarted = true
	t.visibleState = false
	m.producer.Produce(&io.WorkUnit{TileID: t.id, Code: code, Ctx: t.ctx})
	return t
}

// Frees the subtree depth first. Deleted tiles never come back.
func (m *TileManager) free(t *Tile) {
	for _, child := range t.children {
		m.free(child)
	}
	t.children = nil

	t.cancel()
	if t.attached {
		m.scene.Detach(t.handle)
		t.attached = false
	}
	t.activeVisibility = false
	t.visibleState = false
	t.childrenVisibleState = false
	t.deleted = true
	t.payload = nil
	t.heights = nil
	t.scratch.Release()
	t.scratch = nil

	delete(m.tiles, t.id)
	if m.byCode[t.code.String()] == t {
		delete(m.byCode, t.code.String())
	}
	m.stats.Deleted++
}

// Fixed center of the tile on the surface, relative to the current reference origin
func (m *TileManager) tileCenter(code tilecode.TileCode) r3.Vector {
	unit := code.CenterPosition()
	lat, lon := tilecode.LatLonFromUnit(unit)
	center, err := m.converter.GeodeticToCartesian(lat, lon, 0)
	if err != nil {
		glog.Warningf("tile %s: falling back to a spherical center: %v", code, err)
		center = unit.Mul(m.ctx.Radius)
	}
	return center.Sub(m.ctx.Origin)
}

func (m *TileManager) TileCount() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.tiles)
}

// Samples the height of the deepest constructed tile containing the position
func (m *TileManager) ElevationAt(lat, lon float64) (float64, bool) {
	m.RLock()
	defer m.RUnlock()

	for _, root := range m.roots {
		if _, _, ok := root.code.LocalUV(lat, lon); !ok {
			continue
		}

		var found *Tile
		for t := root; t != nil; {
			if t.heights != nil {
				found = t
			}
			t = childContaining(t, lat, lon)
		}
		if found == nil {
			continue
		}
		u, v, _ := found.code.LocalUV(lat, lon)
		return found.heights.Sample(u, v), true
	}
	return 0, false
}

func childContaining(t *Tile, lat, lon float64) *Tile {
	for _, child := range t.children {
		if !child.constructionComplete {
			continue
		}
		if _, _, ok := child.code.LocalUV(lat, lon); ok {
			return child
		}
	}
	return nil
}

func (m *TileManager) Stats() quadtree.Stats {
	m.RLock()
	defer m.RUnlock()

	stats := quadtree.Stats{
		Tiles:     len(m.tiles),
		Queued:    m.producer.Pending(),
		Created:   m.stats.Created,
		Deleted:   m.stats.Deleted,
		Finalized: m.stats.Finalized,
		CacheHits: m.stats.CacheHits,
		Failures:  m.stats.Failures,
		Evaluated: m.stats.Evaluated,
		Dropped:   m.stats.Dropped,
	}
	for _, t := range m.tiles {
		if level := t.code.Level(); level > stats.MaxLevel {
			stats.MaxLevel = level
		}
		switch t.GetState() {
		case quadtree.StatePending:
			stats.Pending++
		case quadtree.StateConstructing:
			stats.Constructing++
		case quadtree.StateAwaitingFinalize:
			stats.AwaitingFinalize++
		case quadtree.StateInactive:
			stats.Inactive++
		case quadtree.StateDisplayed:
			stats.Displayed++
		case quadtree.StateChildrenDisplayed:
			stats.ChildrenDisplayed++
		case quadtree.StateFailed:
			stats.Failed++
		}
	}
	return stats
}

func (m *TileManager) Lookup(code string) (quadtree.TileInfo, bool) {
	m.RLock()
	defer m.RUnlock()

	t, ok := m.byCode[code]
	if !ok {
		return quadtree.TileInfo{}, false
	}
	return t.info(m.ctx.DistanceFraction(t.center)), true
}

func (m *TileManager) Walk(fn func(tile quadtree.ITile) bool) {
	m.RLock()
	defer m.RUnlock()

	var visit func(t *Tile) bool
	visit = func(t *Tile) bool {
		if !fn(t) {
			return false
		}
		for _, child := range t.children {
			if !visit(child) {
				return false
			}
		}
		return true
	}
	for _, root := range m.roots {
		if !visit(root) {
			return
		}
	}
}

func (m *TileManager) Close() {
	m.Lock()
	defer m.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.cancelAll()
	for _, root := range m.roots {
		m.free(root)
	}
	m.roots = nil
	m.finalizeQueue = nil
	m.ops = nil
	m.producer.Close()
	glog.Infof("tile manager closed")
}
