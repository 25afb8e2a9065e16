package io

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/ecopia-map/globe_tiler/internal/cache"
	"github.com/ecopia-map/globe_tiler/internal/data"
	"github.com/ecopia-map/globe_tiler/internal/mesh"
	"github.com/ecopia-map/globe_tiler/internal/providers"
	"github.com/ecopia-map/globe_tiler/internal/tilecode"
)

type ConsumerOptions struct {
	Radius        float64 // planet radius in meters
	MaxLevel      int     // deepest tile level that may be constructed
	ImageryWidth  int     // size of the color grid sampled for each tile
	ImageryHeight int

	// When false a cached blob that fails to decode is a construction error, otherwise the
	// tile is rebuilt from the providers
	RebuildCorruptCache bool
}

type StandardConsumer struct {
	elevation providers.ElevationProvider
	imagery   providers.ImageProvider
	builder   mesh.MeshBuilder
	tileCache cache.TileCache // nil when caching is disabled
	opts      ConsumerOptions
}

func NewStandardConsumer(
	elevation providers.ElevationProvider,
	imagery providers.ImageProvider,
	builder mesh.MeshBuilder,
	tileCache cache.TileCache,
	opts ConsumerOptions,
) *StandardConsumer {
	switch tileCache.(type) {
	case cache.NopTileCache, *cache.NopTileCache:
		tileCache = nil
	}
	if opts.ImageryWidth <= 0 {
		opts.ImageryWidth = 64
	}
	if opts.ImageryHeight <= 0 {
		opts.ImageryHeight = opts.ImageryWidth
	}
	return &StandardConsumer{
		elevation: elevation,
		imagery:   imagery,
		builder:   builder,
		tileCache: tileCache,
		opts:      opts,
	}
}

// Continually consumes WorkUnits submitted to a work channel and posts one WorkResult per
// construction. Continues working until the work channel is closed. Results of cancelled units
// are dropped.
func (c *StandardConsumer) Consume(workchan <-chan *WorkUnit, results chan<- *WorkResult, waitGroup *sync.WaitGroup) {
	defer waitGroup.Done()

	for work := range workchan {
		result := c.doWork(work)
		if result == nil {
			continue
		}

		ctx := work.context()
		select {
		case results <- result:
		case <-ctx.Done():
			glog.V(3).Infof("tile %s deleted before its result was posted", work.Code)
		}
	}
}

// Runs the construction of one tile. Returns nil when the unit was cancelled.
func (c *StandardConsumer) doWork(work *WorkUnit) (result *WorkResult) {
	ctx := work.context()
	result = &WorkResult{TileID: work.TileID, Code: work.Code}

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("construction of %s panicked: %v", work.Code, r)
			result.Payload = nil
		}
		if result.Err != nil {
			if IsCancelled(result.Err) || ctx.Err() != nil {
				result = nil
				return
			}
			glog.Errorf("construction of %s failed: %v", work.Code, result.Err)
		}
	}()

	if ctx.Err() != nil {
		return nil
	}

	// resolve
	if err := tilecode.Validate(work.Code, c.opts.MaxLevel); err != nil {
		result.Err = err
		return result
	}
	key := work.Code.String()

	if payload, err := c.readCache(key); err != nil {
		if !c.opts.RebuildCorruptCache {
			result.Err = err
			return result
		}
		glog.Warningf("rebuilding %s: %v", key, err)
	} else if payload != nil {
		result.Payload = payload
		result.FromCache = true
		return result
	}

	if ctx.Err() != nil {
		return nil
	}
	elevation, err := c.elevation.Load(ctx, work.Code)
	if err != nil {
		result.Err = fmt.Errorf("load elevation: %w", err)
		return result
	}

	if ctx.Err() != nil {
		return nil
	}
	colors, err := c.imagery.Sample(ctx, work.Code, c.opts.ImageryWidth, c.opts.ImageryHeight)
	if err != nil {
		result.Err = fmt.Errorf("sample imagery: %w", err)
		return result
	}

	if ctx.Err() != nil {
		return nil
	}
	payload, err := c.builder.BuildSphereSection(work.Code, c.opts.Radius, colors, elevation)
	if err != nil {
		result.Err = fmt.Errorf("build mesh: %w", err)
		return result
	}

	if err := c.writeCache(key, payload); err != nil {
		result.Err = err
		return result
	}

	result.Payload = payload
	result.Scratch = &Scratch{Elevation: elevation, Colors: colors}
	return result
}

// Returns nil, nil when there is no entry
func (c *StandardConsumer) readCache(key string) (*data.MeshPayload, error) {
	if c.tileCache == nil || !c.tileCache.Has(key) {
		return nil, nil
	}
	blob := c.tileCache.Get(key)
	if len(blob) == 0 {
		return nil, nil
	}

	payload, err := data.DecodeMeshPayload(blob)
	if err != nil {
		return nil, fmt.Errorf("cached payload %s: %w", key, err)
	}
	if payload.Code != key {
		return nil, fmt.Errorf("cached payload %s: %w: stored for %s", key, data.ErrCorruptPayload, payload.Code)
	}
	glog.V(2).Infof("tile %s read from cache", key)
	return payload, nil
}

func (c *StandardConsumer) writeCache(key string, payload *data.MeshPayload) error {
	if c.tileCache == nil || c.tileCache.Has(key) {
		return nil
	}
	blob, err := data.EncodeMeshPayload(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if !c.tileCache.Set(key, blob) {
		glog.Warningf("tile %s could not be cached", key)
	}
	return nil
}

// Reports whether err only signals that the construction was cancelled
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
