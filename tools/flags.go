package tools

import (
	"flag"
	"log"
	"time"
)

const (
	CommandRun         = "run"
	CommandLoadImagery = "load-imagery"
)

type FlagsGlobal struct {
	Help    *bool `json:"help"`
	Version *bool `json:"version"`
}

type TilerFlags struct {
	Scheme              *string  `json:"scheme"`
	Radius              *float64 `json:"radius"`
	MaxLevel            *int     `json:"max_level"`
	ElevationRoot       *string  `json:"elevation_root"`
	ImageryRoot         *string  `json:"imagery_root"`
	ZOffset             *float64 `json:"z_offset"`
	Ellipsoid           *bool    `json:"ellipsoid"`
	PlaceholderSize     *int     `json:"placeholder_size"`
	PlaceholderMaxLevel *int     `json:"placeholder_max_level"`
	ImagerySize         *int     `json:"imagery_size"`
	CacheDriver         *string  `json:"cache_driver"`
	CacheDSN            *string  `json:"cache_dsn"`
	RebuildCorruptCache *bool    `json:"rebuild_corrupt_cache"`
	Workers             *int     `json:"workers"`
	ActionBudget        *int     `json:"action_budget"`
	ThresholdsFile      *string  `json:"thresholds_file"`
	CreateThresholds    *string  `json:"create_thresholds"`
	DisplayThresholds   *string  `json:"display_thresholds"`
	DeleteThresholds    *string  `json:"delete_thresholds"`
	MinViewThresholds   *string  `json:"min_view_thresholds"`
}

type FlagsForCommandRun struct {
	TilerFlags
	TargetLat     *float64       `json:"target_lat"`
	TargetLon     *float64       `json:"target_lon"`
	StartDistance *float64       `json:"start_distance"`
	EndDistance   *float64       `json:"end_distance"`
	Duration      *time.Duration `json:"duration"`
	Linger        *time.Duration `json:"linger"`
	Tick          *time.Duration `json:"tick"`
	StatsInterval *time.Duration `json:"stats_interval"`
	HTTPAddr      *string        `json:"http_addr"`
	Seed          *int64         `json:"seed"`
	Silent        *bool
	LogTimestamp  *bool
	Help          *bool
	Version       *bool
}

type FlagsForCommandLoadImagery struct {
	Input        *string `json:"input"`
	ImageryRoot  *string `json:"imagery_root"`
	Recursive    *bool   `json:"recursive"`
	Concurrency  *int    `json:"concurrency"`
	MaxLevel     *int    `json:"max_level"`
	Silent       *bool
	LogTimestamp *bool
	Help         *bool
}

func ParseFlagsGlobal() FlagsGlobal {
	help := defineBoolFlag("help", "h", false, "Displays this help.")
	// -v belongs to glog
	version := defineBoolFlag("version", "", false, "Displays the version of globe_tiler.")

	flag.Parse()

	return FlagsGlobal{
		Help:    help,
		Version: version,
	}
}

func defineTilerFlags(flagCommand *flag.FlagSet) TilerFlags {
	return TilerFlags{
		Scheme:              defineStringFlagCommand(flagCommand, "scheme", "", "face", "Tile addressing scheme, can be 'face' (six cube faces) or 'grid' (12x6 lat/lon roots)."),
		Radius:              defineFloat64FlagCommand(flagCommand, "radius", "", 6371000, "Planet radius in meters."),
		MaxLevel:            defineIntFlagCommand(flagCommand, "max-level", "l", 16, "Deepest quadtree level that may be constructed."),
		ElevationRoot:       defineStringFlagCommand(flagCommand, "elevation", "e", "", "Folder of elevation tiles, one subfolder per level holding <code>.tif files."),
		ImageryRoot:         defineStringFlagCommand(flagCommand, "imagery", "i", "", "Folder of imagery tiles, one subfolder per level holding <code>.png/.jpg/.webp files."),
		ZOffset:             defineFloat64FlagCommand(flagCommand, "zoffset", "z", 0, "Vertical offset to apply to elevation samples, in meters."),
		Ellipsoid:           defineBoolFlagCommand(flagCommand, "ellipsoid", "", false, "Places tile centers and the viewpoint on the WGS84 ellipsoid instead of a sphere."),
		PlaceholderSize:     defineIntFlagCommand(flagCommand, "placeholder-size", "", 20, "Size of the flat elevation grid used for tiles without elevation data."),
		PlaceholderMaxLevel: defineIntFlagCommand(flagCommand, "placeholder-max-level", "", 6, "Tiles up to this level are subdivided even without elevation data."),
		ImagerySize:         defineIntFlagCommand(flagCommand, "imagery-size", "", 64, "Size of the color grid sampled for each tile."),
		CacheDriver:         defineStringFlagCommand(flagCommand, "cache", "c", "memory", "Tile cache backend, can be 'none', 'memory', 'sqlite' or 'postgres'."),
		CacheDSN:            defineStringFlagCommand(flagCommand, "cache-dsn", "", "", "sqlite file path or postgres connection string of the tile cache."),
		RebuildCorruptCache: defineBoolFlagCommand(flagCommand, "rebuild-corrupt-cache", "", false, "Rebuilds tiles whose cached payload cannot be decoded instead of leaving them pending."),
		Workers:             defineIntFlagCommand(flagCommand, "workers", "w", 0, "Number of construction workers, 0 means one per CPU."),
		ActionBudget:        defineIntFlagCommand(flagCommand, "action-budget", "", 5, "Finalize stages allowed per tick."),
		ThresholdsFile:      defineStringFlagCommand(flagCommand, "thresholds", "", "", "YAML file with the per level create/display/delete/min_view thresholds."),
		CreateThresholds:    defineStringFlagCommand(flagCommand, "create-thresholds", "", "", "Comma separated create thresholds per level, overrides the defaults."),
		DisplayThresholds:   defineStringFlagCommand(flagCommand, "display-thresholds", "", "", "Comma separated display thresholds per level, overrides the defaults."),
		DeleteThresholds:    defineStringFlagCommand(flagCommand, "delete-thresholds", "", "", "Comma separated delete thresholds per level."),
		MinViewThresholds:   defineStringFlagCommand(flagCommand, "min-view-thresholds", "", "", "Comma separated minimum view distances per level."),
	}
}

func ParseFlagsForCommandRun(args []string) FlagsForCommandRun {
	log.Println(FmtJSONString(args))

	flagCommand := flag.NewFlagSet("command-run", flag.ExitOnError)

	tilerFlags := defineTilerFlags(flagCommand)
	targetLat := defineFloat64FlagCommand(flagCommand, "lat", "", 45.0, "Latitude the viewpoint flies to.")
	targetLon := defineFloat64FlagCommand(flagCommand, "lon", "", 7.5, "Longitude the viewpoint flies to.")
	startDistance := defineFloat64FlagCommand(flagCommand, "start-distance", "", 3.0, "Initial viewpoint altitude, in planet radii.")
	endDistance := defineFloat64FlagCommand(flagCommand, "end-distance", "", 0.0005, "Final viewpoint altitude, in planet radii.")
	duration := defineDurationFlagCommand(flagCommand, "duration", "d", 30*time.Second, "Time to fly from the start to the end distance.")
	linger := defineDurationFlagCommand(flagCommand, "linger", "", 5*time.Second, "Time spent at the end distance before exiting.")
	tick := defineDurationFlagCommand(flagCommand, "tick", "", 16*time.Millisecond, "Interval between two ticks.")
	statsInterval := defineDurationFlagCommand(flagCommand, "stats-interval", "", time.Second, "Interval between two stats log lines.")
	httpAddr := defineStringFlagCommand(flagCommand, "http", "", "", "Address of the status server (e.g. :8080), empty disables it.")
	seed := defineInt64FlagCommand(flagCommand, "seed", "", 0, "Seed of the evaluation jitter, 0 means time based.")

	silent := defineBoolFlagCommand(flagCommand, "silent", "s", false, "Use to suppress all the non-error messages.")
	logTimestamp := defineBoolFlagCommand(flagCommand, "timestamp", "t", false, "Adds timestamp to log messages.")
	help := defineBoolFlagCommand(flagCommand, "help", "h", false, "Displays this help.")
	version := defineBoolFlagCommand(flagCommand, "version", "v", false, "Displays the version of globe_tiler.")

	flagCommand.Parse(args)

	return FlagsForCommandRun{
		TilerFlags:    tilerFlags,
		TargetLat:     targetLat,
		TargetLon:     targetLon,
		StartDistance: startDistance,
		EndDistance:   endDistance,
		Duration:      duration,
		Linger:        linger,
		Tick:          tick,
		StatsInterval: statsInterval,
		HTTPAddr:      httpAddr,
		Seed:          seed,
		Silent:        silent,
		LogTimestamp:  logTimestamp,
		Help:          help,
		Version:       version,
	}
}

func ParseFlagsForCommandLoadImagery(args []string) FlagsForCommandLoadImagery {
	log.Println(FmtJSONString(args))

	flagCommand := flag.NewFlagSet("command-load-imagery", flag.ExitOnError)

	input := defineStringFlagCommand(flagCommand, "input", "i", "", "Folder of images named after their tile code (e.g. Front_012.jpg).")
	imageryRoot := defineStringFlagCommand(flagCommand, "imagery", "o", "", "Imagery folder the images are imported into.")
	recursive := defineBoolFlagCommand(flagCommand, "recursive", "r", false, "Enables recursive lookup for images inside the subfolders.")
	concurrency := defineIntFlagCommand(flagCommand, "concurrency", "n", 0, "Images converted in parallel, 0 means one per CPU.")
	maxLevel := defineIntFlagCommand(flagCommand, "max-level", "l", 16, "Images of tiles deeper than this level are rejected.")
	silent := defineBoolFlagCommand(flagCommand, "silent", "s", false, "Use to suppress all the non-error messages.")
	logTimestamp := defineBoolFlagCommand(flagCommand, "timestamp", "t", false, "Adds timestamp to log messages.")
	help := defineBoolFlagCommand(flagCommand, "help", "h", false, "Displays this help.")

	flagCommand.Parse(args)

	return FlagsForCommandLoadImagery{
		Input:        input,
		ImageryRoot:  imageryRoot,
		Recursive:    recursive,
		Concurrency:  concurrency,
		MaxLevel:     maxLevel,
		Silent:       silent,
		LogTimestamp: logTimestamp,
		Help:         help,
	}
}

func defineBoolFlag(name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flag.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flag.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineStringFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue string, usage string) *string {
	var output string
	flagCommand.StringVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.StringVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineIntFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue int, usage string) *int {
	var output int
	flagCommand.IntVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.IntVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineInt64FlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue int64, usage string) *int64 {
	var output int64
	flagCommand.Int64Var(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.Int64Var(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineFloat64FlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue float64, usage string) *float64 {
	var output float64
	flagCommand.Float64Var(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.Float64Var(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineBoolFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flagCommand.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineDurationFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue time.Duration, usage string) *time.Duration {
	var output time.Duration
	flagCommand.DurationVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.DurationVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}
