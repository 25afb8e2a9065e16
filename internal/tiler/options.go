package tiler

import (
	"strings"
	"time"

	"github.com/ecopia-map/globe_tiler/internal/tilecode"
)

type CacheDriver string

const (
	// Cache disabled: every tile is built from the providers
	CacheNone CacheDriver = "NONE"

	// Process lifetime cache, lost on exit
	CacheMemory CacheDriver = "MEMORY"

	// Persistent caches through gorm
	CacheSqlite   CacheDriver = "SQLITE"
	CachePostgres CacheDriver = "POSTGRES"
)

func ParseCacheDriver(value string) CacheDriver {
	switch strings.Trim(strings.ToUpper(value), " ") {
	case "NONE", "":
		return CacheNone
	case "MEMORY":
		return CacheMemory
	case "SQLITE":
		return CacheSqlite
	case "POSTGRES":
		return CachePostgres
	}
	return ""
}

func ParseScheme(value string) tilecode.Scheme {
	switch strings.Trim(strings.ToUpper(value), " ") {
	case "FACE", "CUBE":
		return tilecode.SchemeFace
	case "GRID", "LATLON":
		return tilecode.SchemeGrid
	}
	return ""
}

// Contains the options needed by the tiler
type TilerOptions struct {
	Scheme              tilecode.Scheme // Tile addressing scheme
	Radius              float64         // Planet radius in meters
	MaxLevel            int             // Deepest level the quadtree may reach
	ElevationRoot       string          // Folder of elevation tiles (<level>/<code>.tif)
	ImageryRoot         string          // Folder of imagery tiles (<level>/<code>.png)
	ZOffset             float64         // Offset in meters added to every elevation sample
	Ellipsoid           bool            // Place tile centers and the viewpoint on the WGS84 ellipsoid
	PlaceholderSize     int             // Size of the elevation grid used when no source exists
	PlaceholderMaxLevel int             // Tiles up to this level may always be subdivided
	ImagerySize         int             // Size of the color grid sampled for each tile
	CacheDriver         CacheDriver     // Tile cache backend
	CacheDSN            string          // sqlite file path or postgres connection string
	RebuildCorruptCache bool            // Rebuild tiles whose cached payload fails to decode
	Workers             int             // Number of construction workers, 0 means one per CPU
	ActionBudget        int             // Finalize stages allowed per tick
	ThresholdsFile      string          // YAML threshold table
	Thresholds          *ThresholdTable // Resolved threshold table

	Command                 string
	TilerRunOptions         *TilerRunOptions
	TilerLoadImageryOptions *TilerLoadImageryOptions
}

type TilerRunOptions struct {
	TargetLat     float64       // Latitude the viewpoint flies to
	TargetLon     float64       // Longitude the viewpoint flies to
	StartDistance float64       // Initial viewpoint altitude, in planet radii
	EndDistance   float64       // Final viewpoint altitude, in planet radii
	Duration      time.Duration // Time to fly from start to end
	Linger        time.Duration // Time spent at the end of the path before exiting
	Tick          time.Duration // Interval between two ticks
	StatsInterval time.Duration // Interval between two stats log lines
	HTTPAddr      string        // Status server address, empty disables it
	Seed          int64         // Seed for evaluation jitter, 0 means time based
}

type TilerLoadImageryOptions struct {
	Input       string // Folder of images named by tile code
	Recursive   bool   // Recursive lookup of images in subfolders
	Concurrency int    // Images converted in parallel
}

func (opt *TilerOptions) Copy() *TilerOptions {
	newOpt := *opt
	newOpt.TilerRunOptions = nil
	newOpt.TilerLoadImageryOptions = nil

	if opt.Thresholds != nil {
		newOpt.Thresholds = opt.Thresholds.Copy()
	}

	if opt.TilerRunOptions != nil {
		runOpt := *opt.TilerRunOptions
		newOpt.TilerRunOptions = &runOpt
	}

	if opt.TilerLoadImageryOptions != nil {
		loadOpt := *opt.TilerLoadImageryOptions
		newOpt.TilerLoadImageryOptions = &loadOpt
	}

	return &newOpt
}
