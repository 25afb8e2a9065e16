package providers

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/tiff"

	"github.com/ecopia-map/globe_tiler/internal/converters/elevation/offset_elevation_corrector"
	"github.com/ecopia-map/globe_tiler/internal/tilecode"
)

func mustFaceCode(t *testing.T, face tilecode.Face, quadrants ...int) tilecode.FaceCode {
	t.Helper()
	code, err := tilecode.NewFaceCode(face, quadrants...)
	if err != nil {
		t.Fatal(err)
	}
	return code
}

func writeFile(t *testing.T, path string, write func(f *os.File) error) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := write(f); err != nil {
		t.Fatal(err)
	}
}

func writeHeightMap(t *testing.T, path string, value uint16) {
	img := image.NewGray16(image.Rect(0, 0, 8, 8))
	for i := 0; i < 64; i++ {
		img.SetGray16(i%8, i/8, color.Gray16{Y: value})
	}
	writeFile(t, path, func(f *os.File) error { return tiff.Encode(f, img, nil) })
}

func TestElevationPlaceholder(t *testing.T) {
	paths := PathResolver{ElevationRoot: t.TempDir()}
	provider := NewFileElevationProvider(paths, nil, DefaultElevationOptions())

	code := mustFaceCode(t, tilecode.FaceFront, 0, 3, 1)
	grid, err := provider.Load(context.Background(), code)
	if err != nil {
		t.Fatal(err)
	}
	if grid.Width != 20 || grid.Height != 20 {
		t.Fatalf("expected 20x20 placeholder, got %dx%d", grid.Width, grid.Height)
	}
	for _, v := range grid.Values {
		if v < 0 || v > 10000 {
			t.Fatalf("placeholder value %v outside [0,10000]", v)
		}
	}
}

func TestElevationOwnSourceWithCorrection(t *testing.T) {
	root := t.TempDir()
	paths := PathResolver{ElevationRoot: root}
	code := mustFaceCode(t, tilecode.FaceTop, 2)
	writeHeightMap(t, paths.ElevationPaths(code)[0], 500)

	provider := NewFileElevationProvider(paths, offset_elevation_corrector.NewOffsetElevationCorrector(25), DefaultElevationOptions())
	grid, err := provider.Load(context.Background(), code)
	if err != nil {
		t.Fatal(err)
	}
	if grid.Width != 8 || grid.Height != 8 {
		t.Fatalf("expected source resolution 8x8, got %dx%d", grid.Width, grid.Height)
	}
	if grid.At(3, 3) != 525 {
		t.Errorf("expected corrected value 525, got %v", grid.At(3, 3))
	}

	// the cached source is not modified by the correction
	again, err := provider.Load(context.Background(), code)
	if err != nil {
		t.Fatal(err)
	}
	if again.At(3, 3) != 525 {
		t.Errorf("correction applied twice: %v", again.At(3, 3))
	}
}

func TestElevationAncestorExtrapolation(t *testing.T) {
	paths := PathResolver{ElevationRoot: t.TempDir()}
	parent := mustFaceCode(t, tilecode.FaceBack, 1)
	writeHeightMap(t, paths.ElevationPaths(parent)[0], 1234)

	opts := DefaultElevationOptions()
	opts.PlaceholderMaxLevel = 0
	provider := NewFileElevationProvider(paths, nil, opts)

	child := mustFaceCode(t, tilecode.FaceBack, 1, 2, 0)
	grid, err := provider.Load(context.Background(), child)
	if err != nil {
		t.Fatal(err)
	}
	if grid.Width != 20 || grid.At(10, 10) != 1234 {
		t.Errorf("expected extrapolated 20x20 grid of 1234, got %dx%d with %v", grid.Width, grid.Height, grid.At(10, 10))
	}

	if !provider.Available(child) {
		t.Error("child with a sourced ancestor should be available")
	}
	if provider.Available(mustFaceCode(t, tilecode.FaceFront, 1, 2)) {
		t.Error("tile without any sourced ancestor should not be available beyond the placeholder level")
	}
}

func TestElevationCorruptSource(t *testing.T) {
	paths := PathResolver{ElevationRoot: t.TempDir()}
	code := mustFaceCode(t, tilecode.FaceLeft)
	writeFile(t, paths.ElevationPaths(code)[0], func(f *os.File) error {
		_, err := f.WriteString("not a tiff")
		return err
	})

	provider := NewFileElevationProvider(paths, nil, DefaultElevationOptions())
	if _, err := provider.Load(context.Background(), code); err == nil {
		t.Error("expected a decode error")
	}
}

func TestElevationAvailableWithoutDecoding(t *testing.T) {
	paths := PathResolver{ElevationRoot: t.TempDir()}
	sourced := mustFaceCode(t, tilecode.FaceTop, 3)
	writeFile(t, paths.ElevationPaths(sourced)[0], func(f *os.File) error {
		_, err := f.WriteString("not a tiff")
		return err
	})

	opts := DefaultElevationOptions()
	opts.PlaceholderMaxLevel = 0
	provider := NewFileElevationProvider(paths, nil, opts)

	tests := []struct {
		code tilecode.TileCode
		want bool
	}{
		{sourced, true},
		{mustFaceCode(t, tilecode.FaceTop, 3, 1), true},
		{mustFaceCode(t, tilecode.FaceTop, 2), false},
		{mustFaceCode(t, tilecode.FaceTop), true},
	}
	for _, tt := range tests {
		if got := provider.Available(tt.code); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.code, got, tt.want)
		}
	}
	if n := provider.sources.ItemCount(); n != 0 {
		t.Errorf("availability decoded %d sources", n)
	}
}

func TestElevationCancelled(t *testing.T) {
	provider := NewFileElevationProvider(PathResolver{}, nil, DefaultElevationOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := provider.Load(ctx, mustFaceCode(t, tilecode.FaceTop)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestImageBlankWhenNoSource(t *testing.T) {
	provider := NewFileImageProvider(PathResolver{ImageryRoot: t.TempDir()}, DefaultBlankColor, 0)
	grid, err := provider.Sample(context.Background(), mustFaceCode(t, tilecode.FaceFront, 1, 1), 16, 16)
	if err != nil {
		t.Fatal(err)
	}
	if !grid.IsUniform() || grid.At(0, 0) != DefaultBlankColor {
		t.Error("expected a blank grid")
	}
}

func TestImageSampledFromGrandparent(t *testing.T) {
	paths := PathResolver{ImageryRoot: t.TempDir()}
	grandparent := mustFaceCode(t, tilecode.FaceRight, 3)

	// left half red, right half blue
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := color.RGBA{R: 255, A: 255}
			if x >= 32 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	writeFile(t, paths.ImageryPaths(grandparent)[0], func(f *os.File) error { return png.Encode(f, img) })

	provider := NewFileImageProvider(paths, DefaultBlankColor, 0)

	tests := []struct {
		quadrants []int
		want      color.RGBA
	}{
		{[]int{tilecode.QuadrantTopLeft, tilecode.QuadrantTopLeft}, color.RGBA{R: 255, A: 255}},
		{[]int{tilecode.QuadrantBottomRight, tilecode.QuadrantTopRight}, color.RGBA{B: 255, A: 255}},
	}
	for _, tt := range tests {
		leaf := mustFaceCode(t, tilecode.FaceRight, append([]int{3}, tt.quadrants...)...)
		grid, err := provider.Sample(context.Background(), leaf, 8, 8)
		if err != nil {
			t.Fatal(err)
		}
		if got := grid.At(4, 4); got != tt.want {
			t.Errorf("%s: expected %v from the grandparent crop, got %v", leaf, tt.want, got)
		}
		if grid.At(4, 4) == DefaultBlankColor {
			t.Errorf("%s: got a blank grid", leaf)
		}
	}
}

func TestImageForgetReadsNewSource(t *testing.T) {
	paths := PathResolver{ImageryRoot: t.TempDir()}
	code := mustFaceCode(t, tilecode.FaceBack)
	provider := NewFileImageProvider(paths, DefaultBlankColor, 0)

	sample := func() color.RGBA {
		grid, err := provider.Sample(context.Background(), code, 4, 4)
		if err != nil {
			t.Fatal(err)
		}
		return grid.At(2, 2)
	}
	if got := sample(); got != DefaultBlankColor {
		t.Fatalf("expected blank, got %v", got)
	}

	green := color.RGBA{G: 255, A: 255}
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < 64; i++ {
		img.SetRGBA(i%8, i/8, green)
	}
	writeFile(t, paths.ImageryTarget(code), func(f *os.File) error { return png.Encode(f, img) })

	if got := sample(); got != DefaultBlankColor {
		t.Errorf("missing source should stay cached, got %v", got)
	}
	provider.Forget(code)
	if got := sample(); got != green {
		t.Errorf("expected %v after forget, got %v", green, got)
	}
}

func TestLatLonStem(t *testing.T) {
	code, err := tilecode.NewGridCode(29, 14, 2)
	if err != nil {
		t.Fatal(err)
	}
	// 7.5 degree cells: lon -180+29*7.5 = 37.5, lat -90+14*7.5 = 15
	if stem := LatLonStem(code); stem != "N15.000_E037.500" {
		t.Errorf("unexpected stem %q", stem)
	}

	south, _ := tilecode.NewGridCode(0, 0, 0)
	if stem := LatLonStem(south); stem != "S90.000_W180.000" {
		t.Errorf("unexpected stem %q", stem)
	}

	// 30/2^15 degree cells are narrower than a thousandth of a degree
	deep, _ := tilecode.NewGridCode(196608, 98304, 15)
	if stem := LatLonStem(deep); stem != "N00.0000_E000.0000" {
		t.Errorf("unexpected stem %q", stem)
	}
}

func TestLatLonStemDistinctNeighbours(t *testing.T) {
	for _, level := range []int{10, 14, 15, 18, 22} {
		seen := make(map[string]bool)
		for i := 0; i < 64; i++ {
			code, err := tilecode.NewGridCode(i, 3*i, level)
			if err != nil {
				t.Fatal(err)
			}
			stem := LatLonStem(code)
			if seen[stem] {
				t.Fatalf("level %d: stem %s shared by two cells", level, stem)
			}
			seen[stem] = true
		}
	}
}
