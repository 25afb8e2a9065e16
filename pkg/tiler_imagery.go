package pkg

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/golang/glog"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/ecopia-map/globe_tiler/internal/providers"
	"github.com/ecopia-map/globe_tiler/internal/tilecode"
	"github.com/ecopia-map/globe_tiler/internal/tiler"
	"github.com/ecopia-map/globe_tiler/tools"
)

// Lets a running image provider drop what it cached about a tile before the import
type sourceInvalidator interface {
	Forget(code tilecode.TileCode)
}

type LoadReport struct {
	Loaded  int64    `json:"loaded"`
	Skipped int64    `json:"skipped"`
	Files   []string `json:"files,omitempty"`
}

// Imports images named after their tile code (e.g. Front_012.jpg or G2_29_14.webp) into
// the imagery folder, re-encoded as PNG at the canonical path of the tile
type ImageryLoader struct {
	fileFinder  tools.FileFinder
	paths       providers.PathResolver
	invalidator sourceInvalidator
}

func NewImageryLoader(fileFinder tools.FileFinder, paths providers.PathResolver) *ImageryLoader {
	return &ImageryLoader{
		fileFinder: fileFinder,
		paths:      paths,
	}
}

func (l *ImageryLoader) WithInvalidator(invalidator sourceInvalidator) *ImageryLoader {
	l.invalidator = invalidator
	return l
}

func (l *ImageryLoader) RunTiler(opts *tiler.TilerOptions) error {
	report, err := l.Load(opts)
	if err != nil {
		return err
	}
	tools.LogOutput(fmt.Sprintf("> %d images loaded, %d skipped", report.Loaded, report.Skipped))
	return nil
}

func (l *ImageryLoader) Load(opts *tiler.TilerOptions) (*LoadReport, error) {
	loadOpts := opts.TilerLoadImageryOptions
	if loadOpts == nil {
		return nil, errors.New("missing load-imagery options")
	}
	if l.paths.ImageryRoot == "" {
		return nil, errors.New("imagery folder not set")
	}

	files, err := l.fileFinder.GetImageFilesToLoad(opts)
	if err != nil {
		return nil, err
	}
	glog.Infof("%d image files to load", len(files))

	concurrency := loadOpts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	report := &LoadReport{}
	loaded := make([]string, len(files))

	var group errgroup.Group
	group.SetLimit(concurrency)
	for i, filePath := range files {
		i, filePath := i, filePath
		group.Go(func() error {
			code, err := tileCodeFromFileName(filePath, opts.MaxLevel)
			if err != nil {
				atomic.AddInt64(&report.Skipped, 1)
				glog.Warningf("skipping %s: %v", filePath, err)
				return nil
			}
			target, err := l.loadImage(filePath, code)
			if err != nil {
				return err
			}
			atomic.AddInt64(&report.Loaded, 1)
			loaded[i] = target
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return report, err
	}

	for _, target := range loaded {
		if target != "" {
			report.Files = append(report.Files, target)
		}
	}
	return report, nil
}

func tileCodeFromFileName(filePath string, maxLevel int) (tilecode.TileCode, error) {
	name := filepath.Base(filePath)
	code, err := tilecode.Parse(strings.TrimSuffix(name, filepath.Ext(name)))
	if err != nil {
		return nil, err
	}
	if err := tilecode.Validate(code, maxLevel); err != nil {
		return nil, err
	}
	return code, nil
}

func (l *ImageryLoader) loadImage(filePath string, code tilecode.TileCode) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(file)
	_ = file.Close()
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", filePath, err)
	}

	target := l.paths.ImageryTarget(code)
	if err := tools.CreateDirectoryIfDoesNotExist(filepath.Dir(target)); err != nil {
		return "", err
	}

	// written aside and renamed so a concurrent reader never decodes half a file
	tmp := target + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if err := png.Encode(out, img); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("encode %s: %w", target, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, target); err != nil {
		return "", err
	}

	if l.invalidator != nil {
		l.invalidator.Forget(code)
	}
	glog.V(2).Infof("imagery %s loaded from %s", code, filePath)
	return target, nil
}
