package providers

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/karlseguin/ccache/v3"
	"golang.org/x/image/tiff"
	"golang.org/x/sync/singleflight"

	"github.com/ecopia-map/globe_tiler/internal/converters"
	"github.com/ecopia-map/globe_tiler/internal/data"
	"github.com/ecopia-map/globe_tiler/internal/tilecode"
)

// decoded sources (and known-missing files) are kept this long
const sourceTTL = 10 * time.Minute

const existsCacheSize = 1 << 14

type ElevationProvider interface {
	// Returns the elevation grid of the tile. Missing source data is not an error: the
	// provider falls back to an ancestor extrapolation or a flat placeholder grid.
	Load(ctx context.Context, code tilecode.TileCode) (*data.ElevationGrid, error)

	// Reports whether the provider can serve meaningful elevation for the tile. Never decodes
	// a source: it runs on the goroutine that ticks the tree.
	Available(code tilecode.TileCode) bool
}

type ElevationOptions struct {
	PlaceholderSize     int     // width and height of fallback grids
	MinElevation        float32 // samples are clamped into [MinElevation, MaxElevation]
	MaxElevation        float32
	PlaceholderMaxLevel int   // tiles up to this level are always available
	CacheSize           int64 // decoded source grids kept in memory
}

func DefaultElevationOptions() ElevationOptions {
	return ElevationOptions{
		PlaceholderSize:     20,
		MinElevation:        0,
		MaxElevation:        10000,
		PlaceholderMaxLevel: 1 << 10,
		CacheSize:           256,
	}
}

type elevationSource struct {
	grid *data.ElevationGrid // nil when no file exists
}

// Reads 16 bit grayscale TIFF height maps, one meter per unit
type FileElevationProvider struct {
	paths     PathResolver
	corrector converters.ElevationCorrector
	opts      ElevationOptions
	sources   *ccache.Cache[*elevationSource]
	exists    *ccache.Cache[bool] // stat results, never decoded
	inflight  singleflight.Group
}

func NewFileElevationProvider(paths PathResolver, corrector converters.ElevationCorrector, opts ElevationOptions) *FileElevationProvider {
	if opts.PlaceholderSize < 2 {
		opts.PlaceholderSize = 2
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultElevationOptions().CacheSize
	}
	return &FileElevationProvider{
		paths:     paths,
		corrector: corrector,
		opts:      opts,
		sources:   ccache.New(ccache.Configure[*elevationSource]().MaxSize(opts.CacheSize).ItemsToPrune(uint32(opts.CacheSize/8 + 1))),
		exists:    ccache.New(ccache.Configure[bool]().MaxSize(existsCacheSize).ItemsToPrune(existsCacheSize / 8)),
	}
}

func (p *FileElevationProvider) Load(ctx context.Context, code tilecode.TileCode) (*data.ElevationGrid, error) {
	current := code
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		source, err := p.source(current)
		if err != nil {
			return nil, err
		}
		if source != nil {
			var grid *data.ElevationGrid
			if current.String() == code.String() {
				grid = &data.ElevationGrid{
					Width:  source.Width,
					Height: source.Height,
					Values: append([]float32(nil), source.Values...),
				}
			} else {
				rect, _ := tilecode.RelativeRect(code, current)
				grid = source.Crop(rect.MinU, rect.MinV, rect.MaxU, rect.MaxV, p.opts.PlaceholderSize, p.opts.PlaceholderSize)
				glog.V(3).Infof("elevation for %s extrapolated from %s", code, current)
			}
			p.correct(code, grid)
			return grid, nil
		}

		parent, ok := current.Parent()
		if !ok {
			break
		}
		current = parent
	}

	grid := data.NewElevationGrid(p.opts.PlaceholderSize, p.opts.PlaceholderSize)
	p.correct(code, grid)
	return grid, nil
}

func (p *FileElevationProvider) Available(code tilecode.TileCode) bool {
	if code.Level() <= p.opts.PlaceholderMaxLevel {
		return true
	}
	current := code
	for {
		if p.sourceExists(current) {
			return true
		}
		parent, ok := current.Parent()
		if !ok {
			return false
		}
		current = parent
	}
}

// Applies the elevation corrector and clamps the result into the configured range
func (p *FileElevationProvider) correct(code tilecode.TileCode, grid *data.ElevationGrid) {
	if p.corrector != nil {
		for y := 0; y < grid.Height; y++ {
			v := float64(y) / float64(maxInt(grid.Height-1, 1))
			for x := 0; x < grid.Width; x++ {
				u := float64(x) / float64(maxInt(grid.Width-1, 1))
				lat, lon := tilecode.LatLonFromUnit(code.UnitPosition(u, v))
				grid.Set(x, y, float32(p.corrector.CorrectElevation(lon, lat, float64(grid.At(x, y)))))
			}
		}
	}
	grid.Clamp(p.opts.MinElevation, p.opts.MaxElevation)
}

// Reports whether a source file of exactly this tile exists. A file that later fails to
// decode still counts: the error surfaces in the background construction.
func (p *FileElevationProvider) sourceExists(code tilecode.TileCode) bool {
	key := code.String()
	if item := p.sources.Get(key); item != nil && !item.Expired() {
		return item.Value().grid != nil
	}
	if item := p.exists.Get(key); item != nil && !item.Expired() {
		return item.Value()
	}

	found := false
	for _, path := range p.paths.ElevationPaths(code) {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			found = true
			break
		}
	}
	p.exists.Set(key, found, sourceTTL)
	return found
}

// Returns the decoded source grid of exactly this tile, nil if there is none
func (p *FileElevationProvider) source(code tilecode.TileCode) (*data.ElevationGrid, error) {
	key := code.String()
	if item := p.sources.Get(key); item != nil && !item.Expired() {
		return item.Value().grid, nil
	}

	v, err, _ := p.inflight.Do(key, func() (interface{}, error) {
		grid, err := p.readSource(code)
		if err != nil {
			return nil, err
		}
		p.sources.Set(key, &elevationSource{grid: grid}, sourceTTL)
		return grid, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*data.ElevationGrid), nil
}

func (p *FileElevationProvider) readSource(code tilecode.TileCode) (*data.ElevationGrid, error) {
	for _, path := range p.paths.ElevationPaths(code) {
		file, err := os.Open(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open elevation %s: %w", path, err)
		}

		img, err := tiff.Decode(file)
		_ = file.Close()
		if err != nil {
			return nil, fmt.Errorf("decode elevation %s: %w", path, err)
		}

		glog.V(2).Infof("elevation source %s loaded from %s", code, path)
		return gridFromImage(img), nil
	}
	return nil, nil
}

func gridFromImage(img image.Image) *data.ElevationGrid {
	b := img.Bounds()
	grid := data.NewElevationGrid(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			grid.Set(x, y, float32(g.Y))
		}
	}
	return grid
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
