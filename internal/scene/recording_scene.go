package scene

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ecopia-map/globe_tiler/internal/data"
	"github.com/ecopia-map/globe_tiler/internal/tilecode"
)

type SceneNode struct {
	Handle      SceneHandle
	Code        string
	Vertices    int
	Triangles   int
	Visible     bool
	MinDistance float64
}

// Headless scene keeping track of attached tiles. Used by the run command and by tests.
type RecordingScene struct {
	mu       sync.RWMutex
	nodes    map[SceneHandle]*SceneNode
	attached int
	detached int
	toggles  int
}

func NewRecordingScene() *RecordingScene {
	return &RecordingScene{
		nodes: make(map[SceneHandle]*SceneNode),
	}
}

func (s *RecordingScene) Attach(code tilecode.TileCode, payload *data.MeshPayload) (SceneHandle, error) {
	if payload == nil {
		return "", fmt.Errorf("attach %s: nil payload", code)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	handle := SceneHandle(uuid.NewString())
	s.nodes[handle] = &SceneNode{
		Handle:    handle,
		Code:      code.String(),
		Vertices:  payload.NumVertices(),
		Triangles: payload.NumTriangles(),
	}
	s.attached++
	return handle, nil
}

func (s *RecordingScene) SetVisible(handle SceneHandle, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if node, ok := s.nodes[handle]; ok && node.Visible != visible {
		node.Visible = visible
		s.toggles++
	}
}

func (s *RecordingScene) SetVisibilityRange(handle SceneHandle, minDistance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if node, ok := s.nodes[handle]; ok {
		node.MinDistance = minDistance
	}
}

func (s *RecordingScene) Detach(handle SceneHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[handle]; ok {
		delete(s.nodes, handle)
		s.detached++
	}
}

func (s *RecordingScene) Node(handle SceneHandle) (SceneNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[handle]
	if !ok {
		return SceneNode{}, false
	}
	return *node, true
}

func (s *RecordingScene) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Sorted codes of the visible tiles
func (s *RecordingScene) VisibleCodes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var codes []string
	for _, node := range s.nodes {
		if node.Visible {
			codes = append(codes, node.Code)
		}
	}
	sort.Strings(codes)
	return codes
}

type SceneStats struct {
	Nodes    int `json:"nodes"`
	Visible  int `json:"visible"`
	Attached int `json:"attached"`
	Detached int `json:"detached"`
	Toggles  int `json:"toggles"`
}

func (s *RecordingScene) Stats() SceneStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := SceneStats{
		Nodes:    len(s.nodes),
		Attached: s.attached,
		Detached: s.detached,
		Toggles:  s.toggles,
	}
	for _, node := range s.nodes {
		if node.Visible {
			stats.Visible++
		}
	}
	return stats
}
