package algorithm_manager

import (
	"github.com/ecopia-map/globe_tiler/internal/cache"
	"github.com/ecopia-map/globe_tiler/internal/converters"
	"github.com/ecopia-map/globe_tiler/internal/mesh"
	"github.com/ecopia-map/globe_tiler/internal/providers"
)

type AlgorithmManager interface {
	GetElevationCorrectionAlgorithm() converters.ElevationCorrector
	GetCoordinateConverterAlgorithm() converters.CoordinateConverter
	GetMeshBuilderAlgorithm() mesh.MeshBuilder
	GetElevationProvider() providers.ElevationProvider
	GetImageProvider() providers.ImageProvider
	GetPathResolver() providers.PathResolver
	GetTileCache() cache.TileCache
	Close()
}
