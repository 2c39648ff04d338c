package bake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/herd/config"
	"github.com/pthm-cable/herd/maps"
)

// InputLayer is a published input map together with the points it was
// baked from.
type InputLayer struct {
	Map    *maps.SpatialMap
	Points maps.InputPointSet
}

// Options configures a Pipeline.
type Options struct {
	Area    Area
	Slots   int
	Terrain TerrainBaker
	Heat    HeatBaker
	Input   InputBaker
}

// OptionsFromConfig returns pipeline options for cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Area:    AreaFromConfig(cfg),
		Slots:   cfg.Bake.BufferSlots,
		Terrain: TerrainFromConfig(cfg),
		Heat:    HeatFromConfig(cfg),
		Input:   InputFromConfig(cfg),
	}
}

// PipelineStats counts requests and publishes.
type PipelineStats struct {
	Requested         uint64
	Busy              uint64 // requests dropped while a bake was in flight
	MovementPublished uint64
	MovementDropped   uint64
	InputPublished    uint64
	InputDropped      uint64
	Failed            uint64 // bakes that returned an error
}

// Pipeline runs one producer goroutine per map. Requests never block: a
// request that arrives while the producer is busy is dropped and the
// simulation keeps reading the last published map.
type Pipeline struct {
	Movement *maps.Buffer[*maps.SpatialMap]
	Input    *maps.Buffer[*InputLayer]

	area    Area
	terrain *TerrainHandle

	heatMu  sync.Mutex
	heat    Handle
	inputMu sync.Mutex
	input   Handle

	heatReq  chan *Frame
	inputReq chan *Frame

	cancel context.CancelFunc
	g      *errgroup.Group

	requested atomic.Uint64
	busy      atomic.Uint64
	failed    atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// NewPipeline initializes every baker, bakes initial from scratch so that
// both buffers hold a map on return, and starts the producers. The
// producers stop when ctx is cancelled or Close is called.
func NewPipeline(ctx context.Context, opts Options, initial *Frame) (*Pipeline, error) {
	th, err := opts.Terrain.Initialize(opts.Area)
	if err != nil {
		return nil, fmt.Errorf("initializing terrain: %w", err)
	}
	terrain := th.(*TerrainHandle)

	heatBaker := opts.Heat
	heatBaker.Terrain = terrain.Layer()
	heatBaker.TerrainChannel = terrain.Channel()
	heat, err := heatBaker.Initialize(opts.Area)
	if err != nil {
		return nil, fmt.Errorf("initializing heat: %w", err)
	}
	input, err := opts.Input.Initialize(opts.Area)
	if err != nil {
		return nil, fmt.Errorf("initializing input: %w", err)
	}

	area := opts.Area
	p := &Pipeline{
		Movement: maps.NewBuffer(opts.Slots, area.NewMap),
		Input: maps.NewBuffer(opts.Slots, func() *InputLayer {
			return &InputLayer{Map: area.NewMap()}
		}),
		area:     area,
		terrain:  terrain,
		heat:     heat,
		input:    input,
		heatReq:  make(chan *Frame),
		inputReq: make(chan *Frame),
	}

	if err := p.BakeNow(ctx, initial); err != nil {
		return nil, fmt.Errorf("initial bake: %w", err)
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.g, ctx = errgroup.WithContext(ctx)
	p.g.Go(func() error { return p.produce(ctx, "movement", p.heatReq, p.bakeMovement) })
	p.g.Go(func() error { return p.produce(ctx, "input", p.inputReq, p.bakeInput) })

	slots := max(opts.Slots, 2)
	slog.Info("bake pipeline started",
		"texture_size", area.Size,
		"physical_side", area.Physical,
		"slots", slots,
		"terrain_coverage", terrain.Coverage(),
		"map_memory", humanize.Bytes(uint64(2*slots*area.Size*area.Size*maps.Channels)),
	)
	return p, nil
}

// Terrain returns the static obstacle layer.
func (p *Pipeline) Terrain() *TerrainHandle {
	return p.terrain
}

// Area returns the area every map covers.
func (p *Pipeline) Area() Area {
	return p.area
}

// Request hands f to whichever producers are idle. It reports whether both
// accepted it.
func (p *Pipeline) Request(f *Frame) bool {
	p.requested.Add(1)
	ok := true
	for _, ch := range []chan *Frame{p.heatReq, p.inputReq} {
		select {
		case ch <- f:
		default:
			p.busy.Add(1)
			ok = false
		}
	}
	return ok
}

// BakeNow bakes f into both buffers on the calling goroutine. Use it where
// runs must be reproducible; it waits for any in-flight producer bake.
func (p *Pipeline) BakeNow(ctx context.Context, f *Frame) error {
	return errors.Join(p.bakeMovement(ctx, f), p.bakeInput(ctx, f))
}

func (p *Pipeline) bakeMovement(ctx context.Context, f *Frame) error {
	p.heatMu.Lock()
	defer p.heatMu.Unlock()
	return p.Movement.Publish(func(dst *maps.SpatialMap) error {
		return p.heat.Bake(ctx, f, dst)
	})
}

func (p *Pipeline) bakeInput(ctx context.Context, f *Frame) error {
	p.inputMu.Lock()
	defer p.inputMu.Unlock()
	return p.Input.Publish(func(dst *InputLayer) error {
		if err := p.input.Bake(ctx, f, dst.Map); err != nil {
			return err
		}
		dst.Points = maps.InputPointSet{}
		if f != nil && f.Points != nil {
			dst.Points = *f.Points.Clone()
		}
		return nil
	})
}

// produce serves requests until ctx is done. A failed bake drops that
// refresh only; the producer keeps serving and readers keep the last map.
func (p *Pipeline) produce(ctx context.Context, name string, reqs <-chan *Frame, bake func(context.Context, *Frame) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-reqs:
			err := bake(ctx, f)
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled):
				return nil
			case errors.Is(err, maps.ErrNoFreeSlot), errors.Is(err, maps.ErrClosed):
				slog.Warn("dropping map refresh", "map", name, "error", err)
			default:
				p.failed.Add(1)
				slog.Error("map bake failed", "map", name, "error", err)
			}
		}
	}
}

// Stats returns the request and publish counters.
func (p *Pipeline) Stats() PipelineStats {
	s := PipelineStats{
		Requested: p.requested.Load(),
		Busy:      p.busy.Load(),
		Failed:    p.failed.Load(),
	}
	s.MovementPublished, s.MovementDropped = p.Movement.Stats()
	s.InputPublished, s.InputDropped = p.Input.Stats()
	return s
}

// Close stops the producers, waits for any bake in flight, then closes the
// buffers. Leases already held stay valid until released.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		p.closeErr = p.g.Wait()
		p.Movement.Close()
		p.Input.Close()
		s := p.Stats()
		slog.Info("bake pipeline stopped",
			"requested", s.Requested,
			"busy", s.Busy,
			"movement_published", s.MovementPublished,
			"movement_dropped", s.MovementDropped,
			"input_published", s.InputPublished,
			"input_dropped", s.InputDropped,
			"failed", s.Failed,
		)
	})
	return p.closeErr
}
