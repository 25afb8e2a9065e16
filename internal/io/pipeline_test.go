package io

import (
	"context"
	"errors"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ecopia-map/globe_tiler/internal/cache"
	"github.com/ecopia-map/globe_tiler/internal/data"
	"github.com/ecopia-map/globe_tiler/internal/mesh"
	"github.com/ecopia-map/globe_tiler/internal/tilecode"
)

type fakeElevation struct {
	loads int32
	err   error
}

func (f *fakeElevation) Load(ctx context.Context, code tilecode.TileCode) (*data.ElevationGrid, error) {
	atomic.AddInt32(&f.loads, 1)
	if f.err != nil {
		return nil, f.err
	}
	return data.NewElevationGrid(5, 5), nil
}

func (f *fakeElevation) Available(tilecode.TileCode) bool { return true }

type fakeImagery struct {
	block chan struct{}
}

func (f *fakeImagery) Sample(ctx context.Context, code tilecode.TileCode, w, h int) (*data.ColorGrid, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return data.NewUniformColorGrid(w, h, color.RGBA{R: 10, A: 255}), nil
}

type panickingBuilder struct{}

func (panickingBuilder) BuildSphereSection(mesh.Section, float64, *data.ColorGrid, *data.ElevationGrid) (*data.MeshPayload, error) {
	panic("boom")
}

func newConsumer(elevation *fakeElevation, tileCache cache.TileCache) *StandardConsumer {
	return NewStandardConsumer(elevation, &fakeImagery{}, mesh.NewSphereSectionBuilder(), tileCache, ConsumerOptions{
		Radius:   1000,
		MaxLevel: 4,
	})
}

func unit(t *testing.T, code string) *WorkUnit {
	t.Helper()
	c, err := tilecode.Parse(code)
	if err != nil {
		t.Fatal(err)
	}
	return &WorkUnit{TileID: 7, Code: c, Ctx: context.Background()}
}

func TestConsumerBuildsAndCaches(t *testing.T) {
	tileCache := cache.NewMemoryTileCache()
	elevation := &fakeElevation{}
	consumer := newConsumer(elevation, tileCache)

	result := consumer.doWork(unit(t, "Front_12"))
	if result == nil || result.Err != nil {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.TileID != 7 || result.FromCache {
		t.Errorf("unexpected result header %+v", result)
	}
	if result.Payload.NumVertices() != 25 {
		t.Errorf("expected 25 vertices, got %d", result.Payload.NumVertices())
	}
	if result.Scratch == nil || result.Scratch.Elevation == nil || result.Scratch.Colors == nil {
		t.Error("expected scratch grids with the result")
	}
	if !tileCache.Has("Front_12") {
		t.Fatal("payload not written to the cache")
	}

	// second construction reads the cache
	again := consumer.doWork(unit(t, "Front_12"))
	if again.Err != nil || !again.FromCache {
		t.Fatalf("expected a cache hit, got %+v", again)
	}
	if elevation.loads != 1 {
		t.Errorf("providers called %d times, expected 1", elevation.loads)
	}
	if again.Payload.NumTriangles() != result.Payload.NumTriangles() {
		t.Error("cached payload differs")
	}
}

func TestConsumerWithoutCache(t *testing.T) {
	tests := []struct {
		name      string
		tileCache cache.TileCache
	}{
		{"nil", nil},
		{"nop", cache.NopTileCache{}},
		{"nop pointer", &cache.NopTileCache{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			elevation := &fakeElevation{}
			consumer := newConsumer(elevation, tt.tileCache)
			if consumer.tileCache != nil {
				t.Fatal("a disabled cache should never be written")
			}

			for i := 0; i < 2; i++ {
				result := consumer.doWork(unit(t, "Right_01"))
				if result == nil || result.Err != nil || result.FromCache || result.Payload == nil {
					t.Fatalf("unexpected result %+v", result)
				}
			}
			if elevation.loads != 2 {
				t.Errorf("expected 2 constructions, got %d", elevation.loads)
			}
		})
	}
}

func TestConsumerCorruptCache(t *testing.T) {
	tests := []struct {
		name    string
		rebuild bool
	}{
		{"pending", false},
		{"rebuild", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tileCache := cache.NewMemoryTileCache()
			tileCache.Set("Back_3", []byte("garbage"))
			consumer := newConsumer(&fakeElevation{}, tileCache)
			consumer.opts.RebuildCorruptCache = tt.rebuild

			result := consumer.doWork(unit(t, "Back_3"))
			if tt.rebuild {
				if result.Err != nil || result.Payload == nil || result.FromCache {
					t.Errorf("expected a rebuilt payload, got %+v", result)
				}
				return
			}
			if !errors.Is(result.Err, data.ErrCorruptPayload) {
				t.Errorf("expected ErrCorruptPayload, got %v", result.Err)
			}
		})
	}
}

func TestConsumerErrors(t *testing.T) {
	ioErr := errors.New("disk on fire")

	t.Run("provider", func(t *testing.T) {
		consumer := newConsumer(&fakeElevation{err: ioErr}, nil)
		result := consumer.doWork(unit(t, "Top_0"))
		if !errors.Is(result.Err, ioErr) || result.Payload != nil {
			t.Errorf("expected wrapped provider error, got %+v", result)
		}
	})

	t.Run("beyond max level", func(t *testing.T) {
		consumer := newConsumer(&fakeElevation{}, nil)
		result := consumer.doWork(unit(t, "Top_01230"))
		if !errors.Is(result.Err, tilecode.ErrBeyondMaxLevel) {
			t.Errorf("expected ErrBeyondMaxLevel, got %v", result.Err)
		}
	})

	t.Run("panic", func(t *testing.T) {
		consumer := NewStandardConsumer(&fakeElevation{}, &fakeImagery{}, panickingBuilder{}, nil, ConsumerOptions{Radius: 1, MaxLevel: 2})
		result := consumer.doWork(unit(t, "Left_"))
		if result == nil || result.Err == nil {
			t.Error("expected the panic to be reported as an error")
		}
	})
}

func TestConsumerDropsCancelledWork(t *testing.T) {
	consumer := newConsumer(&fakeElevation{}, nil)
	w := unit(t, "Right_2")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Ctx = ctx

	if result := consumer.doWork(w); result != nil {
		t.Errorf("expected no result for a cancelled unit, got %+v", result)
	}
}

func TestConsumeLoop(t *testing.T) {
	work := make(chan *WorkUnit, 2)
	results := make(chan *WorkResult, 4)
	producer := NewStandardProducer(work)

	imagery := &fakeImagery{block: make(chan struct{})}
	consumer := NewStandardConsumer(&fakeElevation{}, imagery, mesh.NewSphereSectionBuilder(), nil, ConsumerOptions{Radius: 1, MaxLevel: 3})

	var wg sync.WaitGroup
	wg.Add(1)
	go consumer.Consume(work, results, &wg)

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := unit(t, "Bottom_1")
	cancelled.Ctx = ctx
	producer.Produce(cancelled)
	producer.Produce(unit(t, "Bottom_2"))

	cancel()
	close(imagery.block)
	producer.Close()
	wg.Wait()
	close(results)

	var got []string
	for r := range results {
		got = append(got, r.Code.String())
	}
	if len(got) != 1 || got[0] != "Bottom_2" {
		t.Errorf("expected only Bottom_2 to complete, got %v", got)
	}
}

func TestProducerBacklog(t *testing.T) {
	work := make(chan *WorkUnit, 1)
	producer := NewStandardProducer(work)

	ctx, cancel := context.WithCancel(context.Background())
	dropped := unit(t, "Front_0")
	dropped.Ctx = ctx

	producer.Produce(unit(t, "Front_"))
	producer.Produce(dropped)
	producer.Produce(unit(t, "Front_1"))
	if producer.Pending() != 2 {
		t.Fatalf("expected 2 queued units, got %d", producer.Pending())
	}

	<-work
	cancel()
	if remaining := producer.Flush(); remaining != 0 {
		t.Fatalf("expected an empty backlog, got %d", remaining)
	}
	if next := <-work; next.Code.String() != "Front_1" {
		t.Errorf("expected Front_1 after the cancelled unit was dropped, got %s", next.Code)
	}

	producer.Close()
	producer.Close()
	if producer.Produce(unit(t, "Front_2")) {
		t.Error("closed producer accepted work")
	}
}
