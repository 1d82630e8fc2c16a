// Package mem provides in-memory implementations of the hal interfaces.
package mem

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/pkg"
)

// =============================================================================
// Windows
// =============================================================================

// Window is a window backed by a byte slice.
type Window struct {
	mu  sync.Mutex
	buf []byte
}

var _ hal.Window = (*Window)(nil)

// NewWindow returns a zeroed window of size bytes.
func NewWindow(size uint32) *Window {
	return &Window{buf: make([]byte, size)}
}

// Read32 implements hal.Window. Reads past the end return all ones, like an
// unclaimed bus cycle.
func (w *Window) Read32(off uint32) uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if uint64(off)+4 > uint64(len(w.buf)) {
		return 0xFFFFFFFF
	}
	return binary.LittleEndian.Uint32(w.buf[off:])
}

// Write32 implements hal.Window. Writes past the end are dropped.
func (w *Window) Write32(off uint32, v uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if uint64(off)+4 > uint64(len(w.buf)) {
		return
	}
	binary.LittleEndian.PutUint32(w.buf[off:], v)
}

// Size implements hal.Window.
func (w *Window) Size() uint32 {
	return uint32(len(w.buf))
}

// Funcs adapts a pair of functions to hal.Window. Register models use it to
// react to each access.
type Funcs struct {
	Len   uint32
	Read  func(off uint32) uint32
	Write func(off uint32, v uint32)
}

var _ hal.Window = Funcs{}

// Read32 implements hal.Window.
func (f Funcs) Read32(off uint32) uint32 { return f.Read(off) }

// Write32 implements hal.Window.
func (f Funcs) Write32(off uint32, v uint32) { f.Write(off, v) }

// Size implements hal.Window.
func (f Funcs) Size() uint32 { return f.Len }

// Counter wraps a window and counts accesses.
type Counter struct {
	hal.Window
	reads  atomic.Uint64
	writes atomic.Uint64
}

var _ hal.Window = (*Counter)(nil)

// NewCounter wraps w.
func NewCounter(w hal.Window) *Counter {
	return &Counter{Window: w}
}

// Read32 implements hal.Window.
func (c *Counter) Read32(off uint32) uint32 {
	c.reads.Add(1)
	return c.Window.Read32(off)
}

// Write32 implements hal.Window.
func (c *Counter) Write32(off uint32, v uint32) {
	c.writes.Add(1)
	c.Window.Write32(off, v)
}

// Reads returns the number of reads so far.
func (c *Counter) Reads() uint64 { return c.reads.Load() }

// Writes returns the number of writes so far.
func (c *Counter) Writes() uint64 { return c.writes.Load() }

// Accesses returns reads plus writes.
func (c *Counter) Accesses() uint64 { return c.Reads() + c.Writes() }

// CountWindows wraps every window of r in a Counter and returns them.
func CountWindows(r *hal.BusResource) []*Counter {
	counters := make([]*Counter, len(r.Windows))
	for i, w := range r.Windows {
		counters[i] = NewCounter(w)
		r.Windows[i] = counters[i]
	}
	return counters
}

// =============================================================================
// DMA
// =============================================================================

// Allocator hands out heap buffers with fake, non-overlapping physical
// addresses and can translate an address back to its buffer.
type Allocator struct {
	mu      sync.Mutex
	next    uint64
	buffers map[uint64]*Buffer
	limit   int // Bytes outstanding before Alloc fails, 0 for no limit
	inUse   int
}

var _ hal.Allocator = (*Allocator)(nil)

// NewAllocator returns an allocator whose addresses start at base.
func NewAllocator(base uint64) *Allocator {
	return &Allocator{next: base, buffers: make(map[uint64]*Buffer)}
}

// SetLimit caps the outstanding allocation size. Zero removes the cap.
func (a *Allocator) SetLimit(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.limit = n
}

// Alloc implements hal.Allocator.
func (a *Allocator) Alloc(size int) (hal.DMABuffer, error) {
	if size <= 0 {
		return nil, pkg.ErrInvalidParameter
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.limit > 0 && a.inUse+size > a.limit {
		return nil, pkg.ErrNoMemory
	}
	b := &Buffer{alloc: a, phys: a.next, buf: make([]byte, size)}
	a.buffers[b.phys] = b
	// Keep addresses page aligned.
	a.next += (uint64(size) + 0xFFF) &^ 0xFFF
	a.inUse += size
	return b, nil
}

// Lookup returns the live buffer containing phys and the offset into it.
func (a *Allocator) Lookup(phys uint64) ([]byte, int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for base, b := range a.buffers {
		if phys >= base && phys < base+uint64(len(b.buf)) {
			return b.buf, int(phys - base), true
		}
	}
	return nil, 0, false
}

// Outstanding returns the number of live buffers.
func (a *Allocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buffers)
}

// Buffer is a DMA buffer from an Allocator.
type Buffer struct {
	alloc *Allocator
	phys  uint64
	buf   []byte
}

var _ hal.DMABuffer = (*Buffer)(nil)

// Bytes implements hal.DMABuffer.
func (b *Buffer) Bytes() []byte { return b.buf }

// PhysAddr implements hal.DMABuffer.
func (b *Buffer) PhysAddr() uint64 { return b.phys }

// Free implements hal.DMABuffer.
func (b *Buffer) Free() error {
	a := b.alloc
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.buffers[b.phys]; !ok {
		return pkg.ErrClosed
	}
	delete(a.buffers, b.phys)
	a.inUse -= len(b.buf)
	return nil
}
