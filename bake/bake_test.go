package bake

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"math"
	"sync"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/herd/config"
	"github.com/pthm-cable/herd/maps"
)

func init() {
	config.MustInit("")
}

// testArea is 40 texels over 40 world units, one texel per unit.
var testArea = Area{Size: 40, Physical: 40}

func noTerrain() TerrainBaker {
	return TerrainBaker{Channel: 0}
}

func testOptions() Options {
	cfg := config.Cfg()
	opts := OptionsFromConfig(cfg)
	opts.Area = testArea
	opts.Terrain = noTerrain()
	opts.Input.RepulseRadius = 5
	opts.Input.AttractRadius = 3
	return opts
}

func TestDecalShape(t *testing.T) {
	d := NewDecal(5, 30, 10, 20)
	if d.Width != 5 || d.Height != 5 {
		t.Fatalf("decal %dx%d, want 5x5", d.Width, d.Height)
	}
	tests := []struct {
		x, y int
		want uint8
	}{
		{2, 0, 30}, {2, 1, 20}, {2, 2, 10}, {2, 3, 0},
		{1, 0, 10}, {3, 0, 10}, {1, 1, 10},
		{0, 0, 0}, {2, 4, 0},
	}
	for _, tt := range tests {
		if got := d.At(tt.x, tt.y); got != tt.want {
			t.Errorf("decal(%d,%d) = %d, want %d", tt.x, tt.y, got, tt.want)
		}
	}
	if even := NewDecal(4, 30, 10, 20); even.Width != 5 {
		t.Errorf("even width rounded to %d, want 5", even.Width)
	}
}

func TestHeatBakeStampsAndDecays(t *testing.T) {
	b := HeatFromConfig(config.Cfg())
	b.HeatDecay, b.TraceDecay = 0.5, 0.5
	h, err := b.Initialize(testArea)
	if err != nil {
		t.Fatal(err)
	}
	dst := testArea.NewMap()
	f := &Frame{Agents: []Splat{{Position: r2.Vec{X: 0.5, Y: 0.5}}}}
	if err := h.Bake(context.Background(), f, dst); err != nil {
		t.Fatal(err)
	}

	at := r3.Vec{X: 0.5, Z: 0.5}
	heat := dst.Sample(at, b.HeatChannel)
	if heat != b.Decal.At(b.Decal.Width/2, 0) {
		t.Errorf("heat under agent = %d, want %d", heat, b.Decal.At(b.Decal.Width/2, 0))
	}
	if trace := dst.Sample(at, b.TraceChannel); trace != b.TraceDeposit {
		t.Errorf("trace under agent = %d, want %d", trace, b.TraceDeposit)
	}
	// Facing +Z, the tail lies toward -Z.
	if behind := dst.Sample(r3.Vec{X: 0.5, Z: -0.5}, b.HeatChannel); behind == 0 || behind >= heat {
		t.Errorf("heat behind agent = %d, want in (0, %d)", behind, heat)
	}
	if ahead := dst.Sample(r3.Vec{X: 0.5, Z: 1.5}, b.HeatChannel); ahead != 0 {
		t.Errorf("heat ahead of agent = %d, want 0", ahead)
	}

	if err := h.Bake(context.Background(), &Frame{}, dst); err != nil {
		t.Fatal(err)
	}
	if got := dst.Sample(at, b.HeatChannel); got != toByte(float32(heat)*0.5) {
		t.Errorf("decayed heat = %d, want %d", got, heat/2)
	}
}

func TestHeatBakeComposesTerrainByMax(t *testing.T) {
	terrain := testArea.NewMap()
	terrain.Set(10, 10, 0, 250)

	b := HeatFromConfig(config.Cfg())
	b.Terrain = terrain
	b.TerrainChannel = 0
	h, err := b.Initialize(testArea)
	if err != nil {
		t.Fatal(err)
	}
	dst := testArea.NewMap()
	if err := h.Bake(context.Background(), nil, dst); err != nil {
		t.Fatal(err)
	}
	if got := dst.At(10, 10, b.HeatChannel); got != 250 {
		t.Errorf("terrain texel = %d, want 250", got)
	}
	if got := dst.At(11, 10, b.HeatChannel); got != 0 {
		t.Errorf("open texel = %d, want 0", got)
	}
}

func TestHeatBakeRejectsWrongSize(t *testing.T) {
	h, err := HeatFromConfig(config.Cfg()).Initialize(testArea)
	if err != nil {
		t.Fatal(err)
	}
	small := maps.New(8, 8, r2.Vec{X: 40, Y: 40})
	if err := h.Bake(context.Background(), nil, small); !errors.Is(err, maps.ErrSizeMismatch) {
		t.Errorf("Bake error = %v, want ErrSizeMismatch", err)
	}
}

func TestInputBake(t *testing.T) {
	b := InputBaker{RepulseChannel: 0, AttractIDChannel: 2, RepulseRadius: 5, RepulseStrength: 1, AttractRadius: 3}
	h, err := b.Initialize(testArea)
	if err != nil {
		t.Fatal(err)
	}
	dst := testArea.NewMap()
	f := &Frame{Points: &maps.InputPointSet{
		Attract: []r2.Vec{{X: -10, Y: -10}, {X: 10, Y: 10}},
		Repulse: []r2.Vec{{X: 0.5, Y: 0.5}},
	}}
	if err := h.Bake(context.Background(), f, dst); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		pos  r3.Vec
		ch   int
		want uint8
	}{
		{"repulse centre", r3.Vec{X: 0.5, Z: 0.5}, 0, 255},
		{"repulse outside radius", r3.Vec{X: 8.5, Z: 0.5}, 0, 0},
		{"first attract id", r3.Vec{X: -10.5, Z: -10.5}, 2, maps.IndexToColorCode(0)},
		{"second attract id", r3.Vec{X: 10.5, Z: 10.5}, 2, maps.IndexToColorCode(1)},
		{"no id between", r3.Vec{X: 0.5, Z: 0.5}, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dst.Sample(tt.pos, tt.ch); got != tt.want {
				t.Errorf("sample = %d, want %d", got, tt.want)
			}
		})
	}

	mid := dst.Sample(r3.Vec{X: 3, Z: 0.5}, 0)
	if mid == 0 || mid == 255 {
		t.Errorf("falloff sample = %d, want strictly between 0 and 255", mid)
	}
}

func TestTerrainIsDeterministic(t *testing.T) {
	b := TerrainBaker{Channel: 0, Seed: 7, Frequency: 0.1, Octaves: 3, Threshold: 0.6, ObstacleHeat: 250}
	h1, err := b.Initialize(testArea)
	if err != nil {
		t.Fatal(err)
	}
	h2, _ := b.Initialize(testArea)
	a := h1.(*TerrainHandle).Layer().Data
	c := h2.(*TerrainHandle).Layer().Data
	if !bytes.Equal(a, c) {
		t.Error("same seed produced different terrain")
	}
	for i, v := range a {
		if i%maps.Channels != 0 && v != 0 {
			t.Fatalf("terrain wrote channel %d", i%maps.Channels)
		}
		if v != 0 && v != 250 {
			t.Fatalf("terrain value %d", v)
		}
	}
	if cov := h1.(*TerrainHandle).Coverage(); cov < 0 || cov > 1 {
		t.Errorf("coverage = %v", cov)
	}

	b.Threshold = 1
	h3, _ := b.Initialize(testArea)
	if cov := h3.(*TerrainHandle).Coverage(); cov != 0 {
		t.Errorf("coverage above max threshold = %v, want 0", cov)
	}
}

func TestBakersRejectEmptyArea(t *testing.T) {
	bakers := map[string]Baker{
		"terrain": noTerrain(),
		"heat":    HeatFromConfig(config.Cfg()),
		"input":   InputFromConfig(config.Cfg()),
	}
	for name, b := range bakers {
		t.Run(name, func(t *testing.T) {
			if _, err := b.Initialize(Area{}); !errors.Is(err, maps.ErrSizeMismatch) {
				t.Errorf("Initialize error = %v, want ErrSizeMismatch", err)
			}
		})
	}
}

func TestPipelinePublishesInitialBake(t *testing.T) {
	f := &Frame{
		Agents: []Splat{{Position: r2.Vec{X: 0.5, Y: 0.5}}},
		Points: &maps.InputPointSet{Repulse: []r2.Vec{{X: 5, Y: 5}}},
	}
	p, err := NewPipeline(context.Background(), testOptions(), f)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	ml, ok := p.Movement.Acquire()
	if !ok {
		t.Fatal("no movement map after NewPipeline")
	}
	defer ml.Release()
	if ml.Value().Sample(r3.Vec{X: 0.5, Z: 0.5}, 0) == 0 {
		t.Error("initial movement map has no heat under the agent")
	}

	il, ok := p.Input.Acquire()
	if !ok {
		t.Fatal("no input layer after NewPipeline")
	}
	defer il.Release()
	if len(il.Value().Points.Repulse) != 1 {
		t.Errorf("input layer points = %+v", il.Value().Points)
	}
	f.Points.Repulse[0].X = 99
	if il.Value().Points.Repulse[0].X != 5 {
		t.Error("published points alias the request")
	}
}

func TestPipelineRequestPublishes(t *testing.T) {
	p, err := NewPipeline(context.Background(), testOptions(), &Frame{})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	start := p.Movement.Version()
	deadline := time.Now().Add(5 * time.Second)
	for p.Movement.Version() == start {
		if time.Now().After(deadline) {
			t.Fatal("no publish after requests")
		}
		p.Request(&Frame{Agents: []Splat{{Position: r2.Vec{X: 1, Y: 1}}}})
		time.Sleep(time.Millisecond)
	}
	if s := p.Stats(); s.Requested == 0 || s.MovementPublished < 2 {
		t.Errorf("stats = %+v", s)
	}
}

func TestPipelineCloseStopsProducers(t *testing.T) {
	p, err := NewPipeline(context.Background(), testOptions(), &Frame{})
	if err != nil {
		t.Fatal(err)
	}
	lease, ok := p.Movement.Acquire()
	if !ok {
		t.Fatal("no movement map")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	// A lease taken before Close stays readable.
	if err := lease.Value().Validate(); err != nil {
		t.Errorf("lease after close: %v", err)
	}
	lease.Release()

	if p.Request(&Frame{}) {
		t.Error("request accepted after Close")
	}
	if err := p.BakeNow(context.Background(), &Frame{}); !errors.Is(err, maps.ErrClosed) {
		t.Errorf("BakeNow after Close = %v, want ErrClosed", err)
	}
	if _, ok := p.Movement.Acquire(); ok {
		t.Error("Acquire succeeded after Close")
	}
}

func TestPipelineConcurrentReaders(t *testing.T) {
	p, err := NewPipeline(context.Background(), testOptions(), &Frame{})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				l, ok := p.Movement.Acquire()
				if !ok {
					continue
				}
				_ = l.Value().Sample(r3.Vec{}, 0)
				l.Release()
			}
		}()
	}
	for i := 0; i < 200; i++ {
		p.Request(&Frame{Agents: []Splat{{Position: r2.Vec{X: float64(i % 10)}, Yaw: math.Pi / 4}}})
	}
	wg.Wait()
}

func TestWritePNG(t *testing.T) {
	m := testArea.NewMap()
	m.Set(0, 0, 0, 200)
	var buf bytes.Buffer
	if err := WritePNG(&buf, m); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	r, _, _, a := img.At(0, testArea.Size-1).RGBA()
	if r>>8 != 200 || a>>8 != 255 {
		t.Errorf("bottom-left pixel r=%d a=%d", r>>8, a>>8)
	}
}

func TestInputsFromConfigScales(t *testing.T) {
	cfg := *config.Cfg()
	cfg.World.Scale = 2
	pts := InputsFromConfig(&cfg)
	if len(pts.Attract) != len(cfg.Inputs.Attract) || len(pts.Repulse) != len(cfg.Inputs.Repulse) {
		t.Fatalf("points = %+v", pts)
	}
	if pts.Attract[0].X != cfg.Inputs.Attract[0].X*2 {
		t.Errorf("attract x = %v, want %v", pts.Attract[0].X, cfg.Inputs.Attract[0].X*2)
	}
}

func TestProducerSurvivesBakeError(t *testing.T) {
	var p Pipeline
	reqs := make(chan *Frame)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	calls := 0
	bake := func(context.Context, *Frame) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return errors.New("bad frame")
		}
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- p.produce(ctx, "movement", reqs, bake) }()

	// reqs is unbuffered, so each send only completes once the producer
	// is back at its receive.
	for i := 0; i < 3; i++ {
		select {
		case reqs <- &Frame{}:
		case err := <-done:
			t.Fatalf("producer exited after %d requests: %v", i, err)
		case <-time.After(time.Second):
			t.Fatalf("producer stalled at request %d", i)
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("produce = %v, want nil", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Errorf("bakes = %d, want 3", calls)
	}
	if n := p.failed.Load(); n != 1 {
		t.Errorf("failed = %d, want 1", n)
	}
}
