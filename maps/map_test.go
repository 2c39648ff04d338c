package maps

import (
	"errors"
	"sync"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func testMap() *SpatialMap {
	// 10x10 texels over a 20x20 area: one texel per two units.
	m := New(10, 10, r2.Vec{X: 20, Y: 20})
	for i := range m.Data {
		m.Data[i] = uint8(i % 251)
	}
	return m
}

func TestSampleOutOfBounds(t *testing.T) {
	m := testMap()
	outside := []r3.Vec{
		{X: -10.5, Z: 0},
		{X: 10, Z: 0},
		{X: 0, Z: -10.01},
		{X: 0, Z: 10},
		{X: 1e6, Z: -1e6},
	}
	for _, pos := range outside {
		for ch := 0; ch < Channels; ch++ {
			if got := m.Sample(pos, ch); got != Blocked {
				t.Errorf("Sample(%v, %d) = %d, want %d", pos, ch, got, Blocked)
			}
			if idx := m.Index(pos, ch); idx != -1 {
				t.Errorf("Index(%v, %d) = %d, want -1", pos, ch, idx)
			}
		}
	}
}

func TestSampleIndexing(t *testing.T) {
	m := testMap()
	tests := []struct {
		name string
		pos  r3.Vec
		ch   int
		want int
	}{
		{"origin maps to centre texel", r3.Vec{}, 0, (5*10 + 5) * 4},
		{"lower corner", r3.Vec{X: -10, Z: -10}, 2, 2},
		{"upper corner", r3.Vec{X: 9.99, Z: 9.99}, 3, (9*10+9)*4 + 3},
		{"z selects row", r3.Vec{X: -10, Z: -7.5}, 0, 10 * 4},
		{"y ignored", r3.Vec{X: -10, Y: 50, Z: -10}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Index(tt.pos, tt.ch); got != tt.want {
				t.Errorf("Index = %d, want %d", got, tt.want)
			}
			if got := m.Sample(tt.pos, tt.ch); got != m.Data[tt.want] {
				t.Errorf("Sample = %d, want %d", got, m.Data[tt.want])
			}
		})
	}
}

func TestIndexRejectsShortData(t *testing.T) {
	m := testMap()
	m.Data = m.Data[:len(m.Data)-8]
	pos := r3.Vec{X: 9.99, Z: 9.99}
	if got := m.Sample(pos, 0); got != Blocked {
		t.Errorf("Sample on truncated data = %d, want %d", got, Blocked)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		m    *SpatialMap
		ok   bool
	}{
		{"valid", testMap(), true},
		{"nil", nil, false},
		{"short data", &SpatialMap{Width: 2, Height: 2, Data: make([]byte, 15), PhysicalSize: r2.Vec{X: 1, Y: 1}}, false},
		{"zero rect", &SpatialMap{Width: 2, Height: 2, Data: make([]byte, 16)}, false},
		{"zero grid", &SpatialMap{PhysicalSize: r2.Vec{X: 1, Y: 1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrSizeMismatch) {
				t.Fatalf("got %v, want ErrSizeMismatch", err)
			}
		})
	}
}

func TestTexelCenterRoundTrip(t *testing.T) {
	m := testMap()
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			c := m.TexelCenter(x, y)
			gx, gy := m.Texel(r3.Vec{X: c.X, Z: c.Y})
			if gx != x || gy != y {
				t.Fatalf("texel (%d,%d) centre maps back to (%d,%d)", x, y, gx, gy)
			}
		}
	}
}

func TestColorCodes(t *testing.T) {
	for i := 0; i < 12; i++ {
		if got := ColorCodeToIndex(IndexToColorCode(i)); got != i {
			t.Errorf("round trip of %d = %d", i, got)
		}
	}
	if got := ColorCodeToIndex(5); got != 0 {
		t.Errorf("ColorCodeToIndex(5) = %d, want 0", got)
	}
	if got := IndexToColorCode(100); got != 255 {
		t.Errorf("IndexToColorCode(100) = %d, want 255", got)
	}
}

func TestInputPointSet(t *testing.T) {
	var empty *InputPointSet
	if _, ok := empty.AttractAt(0); ok {
		t.Error("nil set should have no attract point")
	}

	s := &InputPointSet{Attract: []r2.Vec{{X: 1}, {X: 5}, {X: 10}}}
	if p, _ := s.AttractAt(7); p.X != 10 {
		t.Errorf("AttractAt(7) clamped to %v", p)
	}
	if p, _ := s.AttractAt(-3); p.X != 1 {
		t.Errorf("AttractAt(-3) clamped to %v", p)
	}
	if got := s.NearestAttract(r2.Vec{X: 6}); got != 1 {
		t.Errorf("NearestAttract = %d, want 1", got)
	}

	c := s.Clone()
	c.Attract[0].X = 99
	if s.Attract[0].X != 1 {
		t.Error("Clone shares storage")
	}
}

func newTestBuffer(n int) *Buffer[*SpatialMap] {
	return NewBuffer(n, func() *SpatialMap { return New(2, 2, r2.Vec{X: 1, Y: 1}) })
}

func fillWith(v byte) func(*SpatialMap) error {
	return func(m *SpatialMap) error {
		for i := range m.Data {
			m.Data[i] = v
		}
		return nil
	}
}

func TestBufferPublishAcquire(t *testing.T) {
	b := newTestBuffer(2)
	if _, ok := b.Acquire(); ok {
		t.Fatal("Acquire before publish should fail")
	}

	if err := b.Publish(fillWith(1)); err != nil {
		t.Fatal(err)
	}
	l, ok := b.Acquire()
	if !ok {
		t.Fatal("Acquire after publish failed")
	}
	if l.Value().Data[0] != 1 || l.Version() != 1 {
		t.Fatalf("lease value %d version %d", l.Value().Data[0], l.Version())
	}

	// One slot current and leased, the other free.
	if err := b.Publish(fillWith(2)); err != nil {
		t.Fatal(err)
	}
	// Slot 1 is leased, slot 2 is current: nothing is free.
	if err := b.Publish(fillWith(3)); !errors.Is(err, ErrNoFreeSlot) {
		t.Fatalf("got %v, want ErrNoFreeSlot", err)
	}
	if l.Value().Data[0] != 1 {
		t.Fatal("leased slot was rewritten")
	}

	l.Release()
	l.Release()
	if err := b.Publish(fillWith(3)); err != nil {
		t.Fatalf("publish after release: %v", err)
	}
	l2, _ := b.Acquire()
	defer l2.Release()
	if l2.Value().Data[0] != 3 {
		t.Errorf("current value = %d, want 3", l2.Value().Data[0])
	}

	published, dropped := b.Stats()
	if published != 3 || dropped != 1 {
		t.Errorf("stats = %d/%d, want 3/1", published, dropped)
	}
}

func TestBufferFillErrorPublishesNothing(t *testing.T) {
	b := newTestBuffer(3)
	boom := errors.New("boom")
	if err := b.Publish(func(*SpatialMap) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	if b.Version() != 0 {
		t.Errorf("version = %d after failed fill", b.Version())
	}
}

func TestBufferClose(t *testing.T) {
	b := newTestBuffer(2)
	if err := b.Publish(fillWith(1)); err != nil {
		t.Fatal(err)
	}
	b.Close()
	if err := b.Publish(fillWith(2)); !errors.Is(err, ErrClosed) {
		t.Fatalf("got %v, want ErrClosed", err)
	}
	if _, ok := b.Acquire(); ok {
		t.Error("Acquire after Close should fail")
	}
}

func TestBufferConcurrentReaders(t *testing.T) {
	b := newTestBuffer(3)
	if err := b.Publish(fillWith(0)); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				l, ok := b.Acquire()
				if !ok {
					continue
				}
				m := l.Value()
				first := m.Data[0]
				for _, v := range m.Data {
					if v != first {
						t.Errorf("torn read: %d != %d", v, first)
						break
					}
				}
				l.Release()
			}
		}()
	}

	for i := 1; i < 200; i++ {
		err := b.Publish(fillWith(byte(i)))
		if err != nil && !errors.Is(err, ErrNoFreeSlot) {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()
}
