package data

import (
	"image"
	"image/color"
	"math"
)

// Contains the elevation samples of a tile in meters. Row 0 is the top (north/up) edge of the
// tile and column 0 its left edge; samples are laid on the tile corners so that the first and
// last column coincide with the tile edges.
type ElevationGrid struct {
	Width  int
	Height int
	Values []float32
}

// Builds a zero filled elevation grid
func NewElevationGrid(width, height int) *ElevationGrid {
	return &ElevationGrid{
		Width:  width,
		Height: height,
		Values: make([]float32, width*height),
	}
}

func (g *ElevationGrid) At(x, y int) float32 {
	return g.Values[y*g.Width+x]
}

func (g *ElevationGrid) Set(x, y int, value float32) {
	g.Values[y*g.Width+x] = value
}

// Bilinear sample at fractional coordinates (u, v) in [0,1]
func (g *ElevationGrid) Sample(u, v float64) float64 {
	return bilinear(g.Values, g.Width, g.Height, u, v)
}

func (g *ElevationGrid) MinMax() (float32, float32) {
	if len(g.Values) == 0 {
		return 0, 0
	}
	min, max := g.Values[0], g.Values[0]
	for _, v := range g.Values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// Resamples the sub-rectangle [minU,maxU]x[minV,maxV] of the grid into a new grid of the
// given size
func (g *ElevationGrid) Crop(minU, minV, maxU, maxV float64, width, height int) *ElevationGrid {
	out := NewElevationGrid(width, height)
	for y := 0; y < height; y++ {
		v := minV + (maxV-minV)*float64(y)/float64(maxInt(height-1, 1))
		for x := 0; x < width; x++ {
			u := minU + (maxU-minU)*float64(x)/float64(maxInt(width-1, 1))
			out.Set(x, y, float32(g.Sample(u, v)))
		}
	}
	return out
}

// Clamps all values into [min,max]
func (g *ElevationGrid) Clamp(min, max float32) {
	for i, v := range g.Values {
		if v < min {
			g.Values[i] = min
		} else if v > max {
			g.Values[i] = max
		}
	}
}

// Contains the colors of a tile, row 0 at the top
type ColorGrid struct {
	Image *image.RGBA
}

func NewColorGrid(width, height int) *ColorGrid {
	return &ColorGrid{Image: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Builds a grid filled with a single color
func NewUniformColorGrid(width, height int, c color.RGBA) *ColorGrid {
	grid := NewColorGrid(width, height)
	for i := 0; i < len(grid.Image.Pix); i += 4 {
		grid.Image.Pix[i] = c.R
		grid.Image.Pix[i+1] = c.G
		grid.Image.Pix[i+2] = c.B
		grid.Image.Pix[i+3] = c.A
	}
	return grid
}

func (g *ColorGrid) Width() int {
	return g.Image.Bounds().Dx()
}

func (g *ColorGrid) Height() int {
	return g.Image.Bounds().Dy()
}

func (g *ColorGrid) At(x, y int) color.RGBA {
	return g.Image.RGBAAt(x, y)
}

// Nearest pixel at fractional coordinates (u, v) in [0,1]
func (g *ColorGrid) Sample(u, v float64) color.RGBA {
	w, h := g.Width(), g.Height()
	x := clampInt(int(u*float64(w)), 0, w-1)
	y := clampInt(int(v*float64(h)), 0, h-1)
	return g.Image.RGBAAt(x, y)
}

// True when every pixel has the same color
func (g *ColorGrid) IsUniform() bool {
	pix := g.Image.Pix
	for i := 4; i < len(pix); i += 4 {
		if pix[i] != pix[0] || pix[i+1] != pix[1] || pix[i+2] != pix[2] || pix[i+3] != pix[3] {
			return false
		}
	}
	return true
}

func bilinear(values []float32, width, height int, u, v float64) float64 {
	if width == 0 || height == 0 {
		return 0
	}
	fx := clampFloat(u, 0, 1) * float64(width-1)
	fy := clampFloat(v, 0, 1) * float64(height-1)
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	x1, y1 := minInt(x0+1, width-1), minInt(y0+1, height-1)
	tx, ty := fx-float64(x0), fy-float64(y0)

	top := float64(values[y0*width+x0])*(1-tx) + float64(values[y0*width+x1])*tx
	bottom := float64(values[y1*width+x0])*(1-tx) + float64(values[y1*width+x1])*tx
	return top*(1-ty) + bottom*ty
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
