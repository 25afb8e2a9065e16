package tools

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ecopia-map/globe_tiler/internal/tiler"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".tif":  true,
	".tiff": true,
}

type FileFinder interface {
	GetImageFilesToLoad(opts *tiler.TilerOptions) ([]string, error)
}

type StandardFileFinder struct{}

func NewStandardFileFinder() FileFinder {
	return &StandardFileFinder{}
}

// Looks for images in the input folder, eventually excluding nested folders if the
// Recursive flag is disabled. A file input is returned as is.
func (f *StandardFileFinder) GetImageFilesToLoad(opts *tiler.TilerOptions) ([]string, error) {
	loadOpts := opts.TilerLoadImageryOptions

	baseInfo, err := os.Stat(loadOpts.Input)
	if err != nil {
		return nil, err
	}
	if !baseInfo.IsDir() {
		return []string{loadOpts.Input}, nil
	}

	var imageFiles = make([]string, 0)
	err = filepath.Walk(
		loadOpts.Input,
		func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if !loadOpts.Recursive && !os.SameFile(info, baseInfo) {
					return filepath.SkipDir
				}
				return nil
			}
			if imageExtensions[strings.ToLower(filepath.Ext(info.Name()))] {
				imageFiles = append(imageFiles, path)
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	return imageFiles, nil
}
