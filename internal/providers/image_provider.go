package providers

import (
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/golang/glog"
	"github.com/karlseguin/ccache/v3"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"

	"github.com/ecopia-map/globe_tiler/internal/data"
	"github.com/ecopia-map/globe_tiler/internal/tilecode"
)

type ImageProvider interface {
	// Returns a width x height color grid for the tile, cropped from the closest ancestor
	// (or the tile itself) that has source imagery, or a blank grid if none has
	Sample(ctx context.Context, code tilecode.TileCode, width, height int) (*data.ColorGrid, error)
}

var DefaultBlankColor = color.RGBA{R: 96, G: 96, B: 104, A: 255}

type imageSource struct {
	img image.Image // nil when no file exists
}

type FileImageProvider struct {
	paths    PathResolver
	blank    color.RGBA
	sources  *ccache.Cache[*imageSource]
	inflight singleflight.Group
}

func NewFileImageProvider(paths PathResolver, blank color.RGBA, cacheSize int64) *FileImageProvider {
	if cacheSize <= 0 {
		cacheSize = 64
	}
	return &FileImageProvider{
		paths:   paths,
		blank:   blank,
		sources: ccache.New(ccache.Configure[*imageSource]().MaxSize(cacheSize).ItemsToPrune(uint32(cacheSize/8 + 1))),
	}
}

func (p *FileImageProvider) Sample(ctx context.Context, code tilecode.TileCode, width, height int) (*data.ColorGrid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid color grid size %dx%d", width, height)
	}

	current := code
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		img, err := p.source(current)
		if err != nil {
			return nil, err
		}
		if img != nil {
			rect, _ := tilecode.RelativeRect(code, current)
			if current.String() != code.String() {
				glog.V(3).Infof("imagery for %s sampled from ancestor %s", code, current)
			}
			return cropAndScale(img, rect, width, height), nil
		}

		parent, ok := current.Parent()
		if !ok {
			break
		}
		current = parent
	}

	return data.NewUniformColorGrid(width, height, p.blank), nil
}

// Resamples the fractional sub-rectangle rect of img into a width x height grid. The whole
// source stays available to the bilinear kernel so crops blend across their edges.
func cropAndScale(img image.Image, rect tilecode.Rect, width, height int) *data.ColorGrid {
	b := img.Bounds()
	srcW, srcH := float64(b.Dx()), float64(b.Dy())

	kx := float64(width) / (rect.Width() * srcW)
	ky := float64(height) / (rect.Height() * srcH)
	ox := float64(b.Min.X) + rect.MinU*srcW
	oy := float64(b.Min.Y) + rect.MinV*srcH

	// maps source pixel space to destination pixel space
	s2d := f64.Aff3{
		kx, 0, -ox * kx,
		0, ky, -oy * ky,
	}

	grid := data.NewColorGrid(width, height)
	draw.BiLinear.Transform(grid.Image, s2d, img, b, draw.Src, nil)
	return grid
}

func (p *FileImageProvider) source(code tilecode.TileCode) (image.Image, error) {
	key := code.String()
	if item := p.sources.Get(key); item != nil && !item.Expired() {
		return item.Value().img, nil
	}

	v, err, _ := p.inflight.Do(key, func() (interface{}, error) {
		img, err := p.readSource(code)
		if err != nil {
			return nil, err
		}
		p.sources.Set(key, &imageSource{img: img}, sourceTTL)
		return &imageSource{img: img}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*imageSource).img, nil
}

// Drops the decoded (or known missing) source of the tile so the next sample reads it again
func (p *FileImageProvider) Forget(code tilecode.TileCode) {
	p.sources.Delete(code.String())
}

func (p *FileImageProvider) readSource(code tilecode.TileCode) (image.Image, error) {
	for _, path := range p.paths.ImageryPaths(code) {
		file, err := os.Open(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open imagery %s: %w", path, err)
		}

		img, _, err := image.Decode(file)
		_ = file.Close()
		if err != nil {
			return nil, fmt.Errorf("decode imagery %s: %w", path, err)
		}

		glog.V(2).Infof("imagery source %s loaded from %s", code, path)
		return img, nil
	}
	return nil, nil
}
