package providers

import (
	"math"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ecopia-map/globe_tiler/internal/tilecode"
)

var imageryExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

// Resolves the source files of a tile. Files live in one folder per level, named after the
// canonical tile code (e.g. <root>/3/Front_012.tif). Grid tiles may also be named after their
// south-west corner (e.g. <root>/3/N45.000_E007.500.tif).
type PathResolver struct {
	ElevationRoot string
	ImageryRoot   string
}

func (r PathResolver) ElevationPaths(code tilecode.TileCode) []string {
	if r.ElevationRoot == "" {
		return nil
	}
	return r.candidates(r.ElevationRoot, code, []string{".tif", ".tiff"})
}

func (r PathResolver) ImageryPaths(code tilecode.TileCode) []string {
	if r.ImageryRoot == "" {
		return nil
	}
	return r.candidates(r.ImageryRoot, code, imageryExtensions)
}

// Canonical path where imported imagery for the tile is stored
func (r PathResolver) ImageryTarget(code tilecode.TileCode) string {
	return filepath.Join(r.ImageryRoot, strconv.Itoa(code.Level()), code.String()+".png")
}

func (r PathResolver) candidates(root string, code tilecode.TileCode, extensions []string) []string {
	dir := filepath.Join(root, strconv.Itoa(code.Level()))
	stems := []string{code.String()}
	if gc, ok := code.(tilecode.GridCode); ok {
		stems = append(stems, LatLonStem(gc))
	}

	paths := make([]string, 0, len(stems)*len(extensions))
	for _, stem := range stems {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(dir, stem+ext))
		}
	}
	return paths
}

// Names a grid tile after its south-west corner. Decimal formatting keeps the stem stable
// for cell sizes like 3.75 that print differently with %g. Three decimals up to level 14,
// more below so that neighbouring cells never share a stem.
func LatLonStem(code tilecode.GridCode) string {
	b := code.GeographicBounds()
	lat := decimal.NewFromFloat(b.Min[1])
	lon := decimal.NewFromFloat(b.Min[0])
	places := stemPlaces(b.Max[0] - b.Min[0])

	latPrefix, lonPrefix := "N", "E"
	if lat.IsNegative() {
		latPrefix = "S"
	}
	if lon.IsNegative() {
		lonPrefix = "W"
	}

	return latPrefix + padDegrees(lat.Abs().StringFixed(places), 2) + "_" + lonPrefix + padDegrees(lon.Abs().StringFixed(places), 3)
}

// Decimal places at which two corners one cell apart round to different values
func stemPlaces(cellSize float64) int32 {
	places := int32(3)
	if cellSize <= 0 {
		return places
	}
	if p := int32(math.Ceil(math.Log10(2 / cellSize))); p > places {
		places = p
	}
	return places
}

func padDegrees(value string, digits int) string {
	intPart := len(value)
	for i := 0; i < len(value); i++ {
		if value[i] == '.' {
			intPart = i
			break
		}
	}
	for ; intPart < digits; intPart++ {
		value = "0" + value
	}
	return value
}
