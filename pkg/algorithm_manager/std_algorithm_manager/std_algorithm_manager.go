package std_algorithm_manager

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/ecopia-map/globe_tiler/internal/cache"
	"github.com/ecopia-map/globe_tiler/internal/converters"
	"github.com/ecopia-map/globe_tiler/internal/converters/elevation/offset_elevation_corrector"
	"github.com/ecopia-map/globe_tiler/internal/converters/proj4_coordinate_converter"
	"github.com/ecopia-map/globe_tiler/internal/mesh"
	"github.com/ecopia-map/globe_tiler/internal/providers"
	"github.com/ecopia-map/globe_tiler/internal/tiler"
	"github.com/ecopia-map/globe_tiler/pkg/algorithm_manager"
	"github.com/ecopia-map/globe_tiler/tools"
)

type StandardAlgorithmManager struct {
	coordinateConverter converters.CoordinateConverter
	elevationCorrector  converters.ElevationCorrector
	meshBuilder         mesh.MeshBuilder
	paths               providers.PathResolver
	elevation           *providers.FileElevationProvider
	imagery             *providers.FileImageProvider
	tileCache           cache.TileCache
	closeCache          func() error
}

func NewAlgorithmManager(opts *tiler.TilerOptions) (algorithm_manager.AlgorithmManager, error) {
	coordinateConverter, err := defineCoordinateConverterAlgorithm(opts)
	if err != nil {
		return nil, err
	}
	tileCache, closeCache, err := defineTileCache(opts)
	if err != nil {
		coordinateConverter.Cleanup()
		return nil, err
	}

	elevationCorrector := offset_elevation_corrector.NewOffsetElevationCorrector(opts.ZOffset)
	paths := PathResolverFor(opts)

	elevationOpts := providers.DefaultElevationOptions()
	if opts.PlaceholderSize > 0 {
		elevationOpts.PlaceholderSize = opts.PlaceholderSize
	}
	elevationOpts.PlaceholderMaxLevel = opts.PlaceholderMaxLevel

	return &StandardAlgorithmManager{
		coordinateConverter: coordinateConverter,
		elevationCorrector:  elevationCorrector,
		meshBuilder:         mesh.NewSphereSectionBuilder(),
		paths:               paths,
		elevation:           providers.NewFileElevationProvider(paths, elevationCorrector, elevationOpts),
		imagery:             providers.NewFileImageProvider(paths, providers.DefaultBlankColor, 0),
		tileCache:           tileCache,
		closeCache:          closeCache,
	}, nil
}

func PathResolverFor(opts *tiler.TilerOptions) providers.PathResolver {
	return providers.PathResolver{
		ElevationRoot: opts.ElevationRoot,
		ImageryRoot:   opts.ImageryRoot,
	}
}

func (am *StandardAlgorithmManager) GetElevationCorrectionAlgorithm() converters.ElevationCorrector {
	return am.elevationCorrector
}

func (am *StandardAlgorithmManager) GetCoordinateConverterAlgorithm() converters.CoordinateConverter {
	return am.coordinateConverter
}

func (am *StandardAlgorithmManager) GetMeshBuilderAlgorithm() mesh.MeshBuilder {
	return am.meshBuilder
}

func (am *StandardAlgorithmManager) GetElevationProvider() providers.ElevationProvider {
	return am.elevation
}

func (am *StandardAlgorithmManager) GetImageProvider() providers.ImageProvider {
	return am.imagery
}

func (am *StandardAlgorithmManager) GetPathResolver() providers.PathResolver {
	return am.paths
}

func (am *StandardAlgorithmManager) GetTileCache() cache.TileCache {
	return am.tileCache
}

func (am *StandardAlgorithmManager) Close() {
	am.coordinateConverter.Cleanup()
	if am.closeCache != nil {
		if err := am.closeCache(); err != nil {
			glog.Warningf("closing tile cache: %v", err)
		}
	}
}

// The ellipsoid converter goes through proj4, the sphere needs nothing but the radius
func defineCoordinateConverterAlgorithm(opts *tiler.TilerOptions) (converters.CoordinateConverter, error) {
	if !opts.Ellipsoid {
		return converters.NewSphericalCoordinateConverter(opts.Radius), nil
	}
	return proj4_coordinate_converter.NewProj4CoordinateConverter()
}

func defineTileCache(opts *tiler.TilerOptions) (cache.TileCache, func() error, error) {
	switch opts.CacheDriver {
	case tiler.CacheNone:
		return cache.NopTileCache{}, nil, nil
	case tiler.CacheMemory:
		return cache.NewMemoryTileCache(), nil, nil
	case tiler.CacheSqlite:
		dsn := opts.CacheDSN
		if dsn == "" {
			dsn = tools.DefaultCachePath()
		}
		dbCache, err := cache.OpenDBTileCache(cache.DriverSqlite, dsn)
		if err != nil {
			return nil, nil, err
		}
		return dbCache, dbCache.Close, nil
	case tiler.CachePostgres:
		dbCache, err := cache.OpenDBTileCache(cache.DriverPostgres, opts.CacheDSN)
		if err != nil {
			return nil, nil, err
		}
		return dbCache, dbCache.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown cache driver %q", opts.CacheDriver)
}
