package maps

import (
	"sync"
	"sync/atomic"
)

type slot[T any] struct {
	val     T
	leases  int
	writing bool
	version uint64
}

// Buffer hands values from one producer to many readers without copying.
// It keeps N slots; the producer fills a slot no reader holds and publishes
// it by swapping the current pointer. A leased slot is never rewritten.
type Buffer[T any] struct {
	mu      sync.Mutex
	slots   []*slot[T]
	current atomic.Pointer[slot[T]]
	closed  bool
	version uint64

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewBuffer creates a buffer with n slots (at least 2), each initialised by alloc.
func NewBuffer[T any](n int, alloc func() T) *Buffer[T] {
	if n < 2 {
		n = 2
	}
	b := &Buffer[T]{slots: make([]*slot[T], n)}
	for i := range b.slots {
		b.slots[i] = &slot[T]{val: alloc()}
	}
	return b
}

// Publish fills a free slot and makes it current. fill runs without the
// buffer lock held and may take as long as it needs. Returns ErrNoFreeSlot
// when every other slot is leased or being written, ErrClosed after Close,
// or the error from fill, in which case nothing is published.
func (b *Buffer[T]) Publish(fill func(dst T) error) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	cur := b.current.Load()
	var s *slot[T]
	for _, cand := range b.slots {
		if cand != cur && cand.leases == 0 && !cand.writing {
			s = cand
			break
		}
	}
	if s == nil {
		b.mu.Unlock()
		b.dropped.Add(1)
		return ErrNoFreeSlot
	}
	s.writing = true
	b.mu.Unlock()

	err := fill(s.val)

	b.mu.Lock()
	defer b.mu.Unlock()
	s.writing = false
	if err != nil {
		return err
	}
	if b.closed {
		return ErrClosed
	}
	b.version++
	s.version = b.version
	b.current.Store(s)
	b.published.Add(1)
	return nil
}

// Acquire leases the current value. ok is false before the first publish
// and after Close. The lease must be released.
func (b *Buffer[T]) Acquire() (l *Lease[T], ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false
	}
	s := b.current.Load()
	if s == nil {
		return nil, false
	}
	s.leases++
	return &Lease[T]{b: b, s: s}, true
}

// Version is the number of values published so far.
func (b *Buffer[T]) Version() uint64 {
	if s := b.current.Load(); s != nil {
		return s.version
	}
	return 0
}

// Stats returns the published and dropped publish counts.
func (b *Buffer[T]) Stats() (published, dropped uint64) {
	return b.published.Load(), b.dropped.Load()
}

// Close stops further publishing and leasing. Outstanding leases stay valid
// until released.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
}

func (b *Buffer[T]) release(s *slot[T]) {
	b.mu.Lock()
	s.leases--
	b.mu.Unlock()
}

// Lease pins one published value.
type Lease[T any] struct {
	b    *Buffer[T]
	s    *slot[T]
	once sync.Once
}

// Value returns the leased value. It must not be modified.
func (l *Lease[T]) Value() T {
	return l.s.val
}

// Version returns the publish sequence number of the leased value.
func (l *Lease[T]) Version() uint64 {
	return l.s.version
}

// Release returns the slot to the producer. Safe to call more than once
// and on a nil lease.
func (l *Lease[T]) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() { l.b.release(l.s) })
}
