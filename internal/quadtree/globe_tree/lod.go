package globe_tree

import (
	"time"

	"github.com/golang/glog"

	"github.com/ecopia-map/globe_tiler/internal/scene"
	"github.com/ecopia-map/globe_tiler/internal/tiler"
)

// Everything a LOD decision depends on
type lodInput struct {
	distanceFraction            float64
	thresholds                  tiler.LevelThresholds
	atMaxLevel                  bool
	constructionComplete        bool
	childTilesExist             bool
	childTilesLoaded            bool
	childElevationDataAvailable bool
}

type lodDecision struct {
	createChildren  bool
	displayChildren bool
	deleteChildren  bool
}

func decide(in lodInput) lodDecision {
	withinChildDisplayDistance := in.distanceFraction < in.thresholds.Display
	withinChildCreateDistance := in.distanceFraction < in.thresholds.Create
	beyondChildDeleteDistance := in.distanceFraction > in.thresholds.Delete

	d := lodDecision{
		createChildren: withinChildCreateDistance &&
			in.constructionComplete &&
			!in.childTilesExist &&
			!in.atMaxLevel &&
			in.childElevationDataAvailable,
		displayChildren: withinChildDisplayDistance && in.childTilesLoaded,
		deleteChildren:  in.childTilesLoaded && (beyondChildDeleteDistance || in.atMaxLevel),
	}
	if d.deleteChildren {
		d.displayChildren = false
	}
	return d
}

// Visits the subtree. Inactive tiles are forced hidden and not evaluated.
func (m *TileManager) walk(t *Tile, now time.Time) {
	if !t.activeVisibility {
		m.setVisible(t, false)
	} else if !now.Before(t.nextEval) {
		m.evaluate(t, now)
		t.nextEval = m.ctx.NextEvaluation(now)
	}

	for _, child := range t.children {
		m.walk(child, now)
	}
}

func (m *TileManager) evaluate(t *Tile, now time.Time) {
	m.stats.Evaluated++

	level := t.code.Level()
	in := lodInput{
		distanceFraction:     m.ctx.DistanceFraction(t.center),
		thresholds:           m.ctx.Thresholds.At(level),
		atMaxLevel:           level >= m.ctx.MaxLevel,
		constructionComplete: t.constructionComplete,
		childTilesExist:      len(t.children) > 0,
		childTilesLoaded:     t.childrenLoaded(),
	}
	// only consulted when everything else allows creation
	if !in.childTilesExist && !in.atMaxLevel && in.constructionComplete && in.distanceFraction < in.thresholds.Create {
		in.childElevationDataAvailable = m.childElevationDataAvailable(t)
	}

	d := decide(in)

	if d.createChildren {
		m.enqueue(deferredOp{kind: opCreateChildren, tile: t})
	}

	if d.deleteChildren {
		glog.V(2).Infof("tile %s: deleting children at distance %.4f", t.code, in.distanceFraction)
		m.undisplayChildren(t)
		m.enqueue(deferredOp{kind: opDeleteChildren, tile: t})
		return
	}

	if d.displayChildren != t.childrenVisibleState {
		if d.displayChildren {
			m.displayChildren(t, now)
		} else {
			m.undisplayChildren(t)
		}
	}
	m.setVisible(t, !t.childrenVisibleState)
}

func (m *TileManager) childElevationDataAvailable(t *Tile) bool {
	if m.availability == nil {
		return true
	}
	for _, code := range t.code.Children(m.ctx.MaxLevel) {
		if !m.availability.Available(code) {
			return false
		}
	}
	return true
}

// Children take over display duty: they become active and visible, the tile hides
func (m *TileManager) displayChildren(t *Tile, now time.Time) {
	for _, child := range t.children {
		child.activeVisibility = true
		child.childrenVisibleState = false
		m.setVisible(child, true)
		child.nextEval = m.ctx.NextEvaluation(now)
	}
	t.childrenVisibleState = true
	m.setVisible(t, false)
}

// The tile takes display duty back from its children
func (m *TileManager) undisplayChildren(t *Tile) {
	for _, child := range t.children {
		m.deactivate(child)
	}
	t.childrenVisibleState = false
	m.setVisible(t, true)
}

// Deactivates the subtree depth first
func (m *TileManager) deactivate(t *Tile) {
	for _, child := range t.children {
		m.deactivate(child)
	}
	t.activeVisibility = false
	t.childrenVisibleState = false
	m.setVisible(t, false)
}

// Applies the visibility to the scene on transitions only
func (m *TileManager) setVisible(t *Tile, visible bool) {
	if visible && !t.activeVisibility {
		visible = false
	}
	if t.visibleState == visible {
		return
	}
	t.visibleState = visible
	if t.attached {
		m.scene.SetVisible(t.handle, visible)
	}
}

func (m *TileManager) setVisibilityRange(t *Tile) {
	if setter, ok := m.scene.(scene.VisibilityRangeSetter); ok {
		minView := m.ctx.Thresholds.At(t.code.Level()).MinView
		setter.SetVisibilityRange(t.handle, minView*m.ctx.Radius)
	}
}
