package mem

import (
	"errors"
	"testing"

	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/pkg"
)

func TestWindow(t *testing.T) {
	w := NewWindow(16)
	w.Write32(4, 0xDEADBEEF)
	if got := w.Read32(4); got != 0xDEADBEEF {
		t.Errorf("Read32(4) = %#x, want 0xdeadbeef", got)
	}
	if got := w.Read32(16); got != 0xFFFFFFFF {
		t.Errorf("Read32 past end = %#x, want all ones", got)
	}
	w.Write32(14, 1) // straddles the end
	if got := w.Read32(12); got != 0 {
		t.Errorf("out of range write landed: %#x", got)
	}
	if w.Size() != 16 {
		t.Errorf("Size() = %d, want 16", w.Size())
	}
}

func TestFuncs(t *testing.T) {
	var last uint32
	f := Funcs{
		Len:   8,
		Read:  func(off uint32) uint32 { return off * 2 },
		Write: func(off uint32, v uint32) { last = off + v },
	}
	if f.Read32(3) != 6 {
		t.Errorf("Read32(3) = %d", f.Read32(3))
	}
	f.Write32(1, 2)
	if last != 3 {
		t.Errorf("write hook saw %d, want 3", last)
	}
}

func TestCounter(t *testing.T) {
	r := &hal.BusResource{Windows: []hal.Window{NewWindow(8), NewWindow(8)}}
	counters := CountWindows(r)

	r.Windows[0].Write32(0, 1)
	r.Windows[0].Read32(0)
	r.Windows[1].Read32(4)

	if counters[0].Writes() != 1 || counters[0].Reads() != 1 {
		t.Errorf("window 0 counts = %d/%d", counters[0].Reads(), counters[0].Writes())
	}
	if counters[1].Accesses() != 1 {
		t.Errorf("window 1 accesses = %d, want 1", counters[1].Accesses())
	}
}

func TestAllocator(t *testing.T) {
	a := NewAllocator(0x10000000)

	b1, err := a.Alloc(100)
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	b2, err := a.Alloc(5000)
	if err != nil {
		t.Fatalf("Alloc() error = %v", err)
	}
	if b2.PhysAddr() < b1.PhysAddr()+100 {
		t.Errorf("buffers overlap: %#x, %#x", b1.PhysAddr(), b2.PhysAddr())
	}
	if b2.PhysAddr()&0xFFF != 0 {
		t.Errorf("address %#x not page aligned", b2.PhysAddr())
	}

	b2.Bytes()[10] = 0x5A
	buf, off, ok := a.Lookup(b2.PhysAddr() + 10)
	if !ok || buf[off] != 0x5A {
		t.Errorf("Lookup() = %v, %d, %v", buf != nil, off, ok)
	}

	if err := b1.Free(); err != nil {
		t.Errorf("Free() error = %v", err)
	}
	if err := b1.Free(); !errors.Is(err, pkg.ErrClosed) {
		t.Errorf("double Free() error = %v, want ErrClosed", err)
	}
	if _, _, ok := a.Lookup(b1.PhysAddr()); ok {
		t.Error("freed buffer still found")
	}
	if a.Outstanding() != 1 {
		t.Errorf("Outstanding() = %d, want 1", a.Outstanding())
	}
}

func TestAllocatorLimit(t *testing.T) {
	a := NewAllocator(0)
	a.SetLimit(64)
	if _, err := a.Alloc(65); !errors.Is(err, pkg.ErrNoMemory) {
		t.Errorf("Alloc over limit error = %v, want ErrNoMemory", err)
	}
	if _, err := a.Alloc(0); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("Alloc(0) error = %v, want ErrInvalidParameter", err)
	}
}
