package data

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/golang/geo/r3"
)

func TestElevationGridSample(t *testing.T) {
	g := NewElevationGrid(2, 2)
	g.Set(0, 0, 0)
	g.Set(1, 0, 10)
	g.Set(0, 1, 20)
	g.Set(1, 1, 30)

	tests := []struct {
		u, v float64
		want float64
	}{
		{0, 0, 0},
		{1, 0, 10},
		{0, 1, 20},
		{1, 1, 30},
		{0.5, 0.5, 15},
		{0.5, 0, 5},
		{2, 2, 30}, // clamped
	}
	for _, tt := range tests {
		if got := g.Sample(tt.u, tt.v); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Sample(%v,%v) = %v, want %v", tt.u, tt.v, got, tt.want)
		}
	}
}

func TestElevationGridCrop(t *testing.T) {
	g := NewElevationGrid(3, 3)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			g.Set(x, y, float32(x*100))
		}
	}
	out := g.Crop(0.5, 0, 1, 1, 5, 5)
	if out.Width != 5 || out.Height != 5 {
		t.Fatalf("unexpected size %dx%d", out.Width, out.Height)
	}
	if out.At(0, 0) != 100 || out.At(4, 4) != 200 {
		t.Errorf("crop corners = %v, %v", out.At(0, 0), out.At(4, 4))
	}
}

func TestElevationGridClamp(t *testing.T) {
	g := &ElevationGrid{Width: 3, Height: 1, Values: []float32{-5, 50, 20000}}
	g.Clamp(0, 10000)
	min, max := g.MinMax()
	if min != 0 || max != 10000 {
		t.Errorf("expected [0,10000], got [%v,%v]", min, max)
	}
}

func TestColorGrid(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	g := NewUniformColorGrid(4, 4, red)
	if !g.IsUniform() {
		t.Error("expected uniform grid")
	}
	if g.Sample(0.99, 0.99) != red {
		t.Errorf("unexpected sample %v", g.Sample(0.99, 0.99))
	}
	g.Image.SetRGBA(3, 3, color.RGBA{B: 255, A: 255})
	if g.IsUniform() {
		t.Error("expected non uniform grid")
	}
	if g.Sample(1, 1).B != 255 {
		t.Error("expected bottom-right sample to hit the modified pixel")
	}
}

func testPayload() *MeshPayload {
	return &MeshPayload{
		Code:      "Front_01",
		Cols:      2,
		Rows:      2,
		Center:    r3.Vector{X: 6371000, Y: 12.5, Z: -3},
		Positions: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0},
		Normals:   []float32{0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1},
		UVs:       []float32{0, 0, 1, 0, 0, 1, 1, 1},
		Colors:    []uint8{1, 2, 3, 255, 4, 5, 6, 255, 7, 8, 9, 255, 10, 11, 12, 255},
		Indices:   []uint32{0, 2, 1, 1, 2, 3},
		Heights:   []float32{0, 100, 200, 300},
	}
}

func TestMeshPayloadCodec(t *testing.T) {
	p := testPayload()
	blob, err := EncodeMeshPayload(p)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodeMeshPayload(blob)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Code != p.Code || decoded.Cols != 2 || decoded.Rows != 2 || decoded.Center != p.Center {
		t.Errorf("header mismatch: %+v", decoded)
	}
	if decoded.NumVertices() != 4 || decoded.NumTriangles() != 2 {
		t.Errorf("unexpected counts %d/%d", decoded.NumVertices(), decoded.NumTriangles())
	}
	if decoded.Colors[12] != 10 || decoded.Indices[5] != 3 || decoded.Heights[3] != 300 {
		t.Error("array contents mismatch")
	}
	if h := decoded.HeightAt(0.5, 0.5); math.Abs(h-150) > 1e-9 {
		t.Errorf("HeightAt(0.5,0.5) = %v", h)
	}
	if v := decoded.Vertex(1); v.X != 6371001 {
		t.Errorf("Vertex(1) = %v", v)
	}
}

func TestDecodeCorruptPayload(t *testing.T) {
	valid, err := EncodeMeshPayload(testPayload())
	if err != nil {
		t.Fatal(err)
	}

	broken := testPayload()
	broken.Indices = []uint32{0, 1, 9}
	badIndex, err := EncodeMeshPayload(broken)
	if err != nil {
		t.Fatal(err)
	}

	tests := map[string][]byte{
		"empty":      nil,
		"garbage":    []byte("definitely not zstd"),
		"truncated":  valid[:len(valid)/2],
		"bad index":  badIndex,
		"raw header": []byte(payloadMagic),
	}
	for name, blob := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeMeshPayload(blob); !errors.Is(err, ErrCorruptPayload) {
				t.Errorf("expected ErrCorruptPayload, got %v", err)
			}
		})
	}
}
