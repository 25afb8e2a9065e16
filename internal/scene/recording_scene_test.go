package scene

import (
	"testing"

	"github.com/ecopia-map/globe_tiler/internal/data"
	"github.com/ecopia-map/globe_tiler/internal/tilecode"
)

func TestRecordingScene(t *testing.T) {
	s := NewRecordingScene()
	var _ SceneIntegration = s
	var _ VisibilityRangeSetter = s

	roots := tilecode.Roots(tilecode.SchemeFace)
	payload := &data.MeshPayload{Positions: make([]float32, 12), Indices: []uint32{0, 1, 2, 2, 1, 3}}

	a, err := s.Attach(roots[0], payload)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Attach(roots[1], payload)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("handles must be unique")
	}
	if len(s.VisibleCodes()) != 0 {
		t.Error("attached tiles must start hidden")
	}

	s.SetVisible(b, true)
	s.SetVisible(b, true)
	s.SetVisibilityRange(b, 12.5)
	if codes := s.VisibleCodes(); len(codes) != 1 || codes[0] != roots[1].String() {
		t.Errorf("unexpected visible codes %v", codes)
	}
	node, ok := s.Node(b)
	if !ok || node.Vertices != 4 || node.Triangles != 2 || node.MinDistance != 12.5 {
		t.Errorf("unexpected node %+v", node)
	}

	s.Detach(a)
	s.Detach(a)
	stats := s.Stats()
	if stats.Nodes != 1 || stats.Visible != 1 || stats.Attached != 2 || stats.Detached != 1 || stats.Toggles != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	if _, err := s.Attach(roots[2], nil); err == nil {
		t.Error("expected an error for a nil payload")
	}
}
