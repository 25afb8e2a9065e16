package pkg

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/golang/glog"

	"github.com/ecopia-map/globe_tiler/internal/io"
	"github.com/ecopia-map/globe_tiler/internal/quadtree"
	"github.com/ecopia-map/globe_tiler/internal/quadtree/globe_tree"
	"github.com/ecopia-map/globe_tiler/internal/scene"
	"github.com/ecopia-map/globe_tiler/internal/tiler"
	"github.com/ecopia-map/globe_tiler/pkg/algorithm_manager"
	"github.com/ecopia-map/globe_tiler/tools"
)

// below this altitude, in planet radii, the reference origin moves to the target surface point
const rebaseAltitude = 0.1

type ITiler interface {
	RunTiler(opts *tiler.TilerOptions) error
}

// Streams the globe for a viewpoint flying down the approach path
type GlobeTiler struct {
	algorithmManager algorithm_manager.AlgorithmManager
	scene            *scene.RecordingScene

	lastStats quadtree.Stats
	mu        sync.Mutex
}

func NewTiler(algorithmManager algorithm_manager.AlgorithmManager) *GlobeTiler {
	return &GlobeTiler{
		algorithmManager: algorithmManager,
		scene:            scene.NewRecordingScene(),
	}
}

// Starts the tiling process. Returns when the approach path and the linger time are over or
// the process is interrupted.
func (gt *GlobeTiler) RunTiler(opts *tiler.TilerOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return gt.RunTilerContext(ctx, opts)
}

func (gt *GlobeTiler) RunTilerContext(ctx context.Context, opts *tiler.TilerOptions) error {
	runOpts := opts.TilerRunOptions
	if runOpts == nil {
		return fmt.Errorf("missing run options")
	}

	tilingContext := tiler.NewTilingContext(opts.Radius, opts.MaxLevel, opts.Thresholds, runOpts.Seed)
	if opts.ActionBudget > 0 {
		tilingContext.ActionBudget = opts.ActionBudget
	}

	// a consumer goroutine per CPU unless told otherwise
	numConsumers := opts.Workers
	if numConsumers <= 0 {
		numConsumers = runtime.NumCPU()
	}

	// init channels with a buffer 5 times greater than the number of consumers
	workChannel := make(chan *io.WorkUnit, numConsumers*5)
	resultChannel := make(chan *io.WorkResult, numConsumers*5)

	var waitGroup sync.WaitGroup
	consumerOpts := io.ConsumerOptions{
		Radius:              opts.Radius,
		MaxLevel:            opts.MaxLevel,
		ImageryWidth:        opts.ImagerySize,
		ImageryHeight:       opts.ImagerySize,
		RebuildCorruptCache: opts.RebuildCorruptCache,
	}
	for i := 0; i < numConsumers; i++ {
		waitGroup.Add(1)
		consumer := io.NewStandardConsumer(
			gt.algorithmManager.GetElevationProvider(),
			gt.algorithmManager.GetImageProvider(),
			gt.algorithmManager.GetMeshBuilderAlgorithm(),
			gt.algorithmManager.GetTileCache(),
			consumerOpts,
		)
		go consumer.Consume(workChannel, resultChannel, &waitGroup)
	}

	producer := io.NewStandardProducer(workChannel)
	converter := gt.algorithmManager.GetCoordinateConverterAlgorithm()
	manager, err := globe_tree.NewTileManager(
		tilingContext,
		opts.Scheme,
		producer,
		resultChannel,
		gt.scene,
		gt.algorithmManager.GetElevationProvider(),
		converter,
	)
	if err != nil {
		producer.Close()
		waitGroup.Wait()
		return err
	}

	if runOpts.HTTPAddr != "" {
		loader := NewImageryLoader(tools.NewStandardFileFinder(), gt.algorithmManager.GetPathResolver())
		if invalidator, ok := gt.algorithmManager.GetImageProvider().(sourceInvalidator); ok {
			loader.WithInvalidator(invalidator)
		}
		status := NewStatusServer(manager, gt.scene, loader, opts)
		stopServer := status.ListenAndServe(runOpts.HTTPAddr)
		defer stopServer()
	}

	path := NewApproachPath(converter, opts.Radius, runOpts.TargetLat, runOpts.TargetLon, runOpts.StartDistance, runOpts.EndDistance, runOpts.Duration)
	err = gt.loop(ctx, manager, path, runOpts)

	gt.setStats(manager.Stats())

	// cancels every pending construction, consumers drain the work channel and exit
	manager.Close()
	waitGroup.Wait()

	tools.LogOutput("> scene:", tools.FmtJSONString(gt.scene.Stats()))
	return err
}

func (gt *GlobeTiler) loop(ctx context.Context, manager *globe_tree.TileManager, path *ApproachPath, runOpts *tiler.TilerRunOptions) error {
	tick := runOpts.Tick
	if tick <= 0 {
		tick = 16 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	start := time.Now()
	lastStats := start
	origin := r3.Vector{}
	rebased := false

	for {
		select {
		case <-ctx.Done():
			tools.LogOutput("> interrupted")
			return nil
		case now := <-ticker.C:
			elapsed := now.Sub(start)
			viewpoint, err := path.Viewpoint(elapsed)
			if err != nil {
				return fmt.Errorf("viewpoint: %w", err)
			}

			if !rebased && path.Altitude(elapsed) < rebaseAltitude {
				target, err := path.Target()
				if err != nil {
					return fmt.Errorf("viewpoint target: %w", err)
				}
				manager.ShiftReferenceOrigin(target.Sub(origin))
				origin = target
				rebased = true
				glog.Infof("reference origin moved to %v", target)
			}

			manager.SetViewpoint(viewpoint)
			manager.Tick(now)

			if runOpts.StatsInterval > 0 && now.Sub(lastStats) >= runOpts.StatsInterval {
				lastStats = now
				stats := manager.Stats()
				gt.setStats(stats)
				tools.LogOutput(fmt.Sprintf("> altitude %.5f:", path.Altitude(elapsed)), tools.FmtJSONString(stats))
			}

			if elapsed >= runOpts.Duration+runOpts.Linger {
				return nil
			}
		}
	}
}

func (gt *GlobeTiler) setStats(stats quadtree.Stats) {
	gt.mu.Lock()
	defer gt.mu.Unlock()
	gt.lastStats = stats
}

// Stats of the tree as last sampled by the run loop
func (gt *GlobeTiler) Stats() quadtree.Stats {
	gt.mu.Lock()
	defer gt.mu.Unlock()
	return gt.lastStats
}

func (gt *GlobeTiler) Scene() *scene.RecordingScene {
	return gt.scene
}
