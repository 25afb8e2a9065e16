package globe_tree

import (
	"time"

	"github.com/golang/glog"

	"github.com/ecopia-map/globe_tiler/internal/data"
	"github.com/ecopia-map/globe_tiler/internal/io"
)

type finalizeStage int

const (
	finalizeAttach finalizeStage = iota
	finalizeDone
)

// Takes the background result of a tile and queues it for finalize
func (m *TileManager) intake(result *io.WorkResult) {
	t, ok := m.tiles[result.TileID]
	if !ok || t.deleted || t.code.String() != result.Code.String() {
		m.stats.Dropped++
		result.Scratch.Release()
		return
	}

	if result.Err != nil {
		t.failed = true
		m.stats.Failures++
		glog.Warningf("tile %s left pending: %v", t.code, result.Err)
		return
	}

	t.backgroundComplete = true
	t.payload = result.Payload
	t.scratch = result.Scratch
	t.fromCache = result.FromCache
	t.finalizeStage = finalizeAttach
	if result.FromCache {
		m.stats.CacheHits++
	}
	m.finalizeQueue = append(m.finalizeQueue, t)
}

// Advances queued tiles by one stage each until the action budget of the tick is spent
func (m *TileManager) finalize(now time.Time) {
	budget := m.ctx.ActionBudget
	remaining := m.finalizeQueue[:0]

	for i, t := range m.finalizeQueue {
		if t.deleted || t.failed {
			continue
		}
		if budget <= 0 {
			remaining = append(remaining, m.finalizeQueue[i:]...)
			break
		}
		budget--

		if !m.advance(t, now) {
			remaining = append(remaining, t)
		}
	}

	for i := len(remaining); i < len(m.finalizeQueue); i++ {
		m.finalizeQueue[i] = nil
	}
	m.finalizeQueue = remaining
}

// Runs one finalize stage, returns true once the tile is finalized
func (m *TileManager) advance(t *Tile, now time.Time) bool {
	switch t.finalizeStage {
	case finalizeAttach:
		handle, err := m.scene.Attach(t.code, t.payload)
		if err != nil {
			t.failed = true
			t.payload = nil
			t.scratch.Release()
			t.scratch = nil
			m.stats.Failures++
			glog.Warningf("tile %s left pending: %v", t.code, err)
			return true
		}
		t.handle = handle
		t.attached = true
		m.setVisibilityRange(t)
		t.finalizeStage = finalizeDone
		return false

	case finalizeDone:
		t.constructionComplete = true
		t.backgroundComplete = true

		t.heights = &data.ElevationGrid{Width: t.payload.Cols, Height: t.payload.Rows, Values: t.payload.Heights}
		t.payload = nil
		t.scratch.Release()
		t.scratch = nil
		m.stats.Finalized++

		if t.IsRoot() {
			t.activeVisibility = true
			m.setVisible(t, true)
			t.nextEval = m.ctx.RootActivation(now)
		}
		return true
	}
	return true
}
