//go:build linux

package linux

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/pkg"
)

// =============================================================================
// Mapped Windows
// =============================================================================

// window is a BAR mapped into this process. Accesses go through atomic
// loads and stores so the compiler neither tears nor elides them.
type window struct {
	mem []byte
}

// Read32 reads the word at off. Out-of-range or unaligned offsets read as
// all ones, like a master abort on the bus.
func (w *window) Read32(off uint32) uint32 {
	if !w.valid(off) {
		return 0xFFFFFFFF
	}
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&w.mem[off])))
}

// Write32 writes the word at off. Out-of-range or unaligned writes are
// dropped.
func (w *window) Write32(off uint32, v uint32) {
	if !w.valid(off) {
		return
	}
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&w.mem[off])), v)
}

func (w *window) Size() uint32 { return uint32(len(w.mem)) }

func (w *window) valid(off uint32) bool {
	return off&3 == 0 && uint64(off)+4 <= uint64(len(w.mem))
}

// mapFile maps size bytes of the file at path for shared read and write.
func mapFile(path string, size uint64) ([]byte, error) {
	if size == 0 || size > MaxWindowSize {
		return nil, fmt.Errorf("map %s: size %#x: %w", path, size, pkg.ErrNotSupported)
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mem, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", path, err)
	}
	return mem, nil
}

// =============================================================================
// Device Mapping
// =============================================================================

// Mapping is an opened PCI function: its memory BARs mapped as windows and
// a DMA allocator, packaged as a bus resource.
type Mapping struct {
	Resource *hal.BusResource

	mutex   sync.Mutex
	regions [][]byte
	closed  bool
}

// OpenOptions tunes Open.
type OpenOptions struct {
	// Enable writes the sysfs "enable" attribute before mapping.
	Enable bool

	// DMA overrides the allocator. Nil selects a hugepage allocator.
	DMA hal.Allocator
}

// Open maps every memory BAR of dev. Windows keep BAR numbering: a BAR
// that is absent or I/O mapped leaves a nil window in its slot.
func Open(dev Device, opts OpenOptions) (*Mapping, error) {
	if opts.Enable {
		if err := writeSysfsString(filepath.Join(dev.Path, "enable"), "1"); err != nil {
			pkg.LogWarn(pkg.ComponentHAL, "enable failed",
				"device", dev.Address, "error", err)
		}
	}

	m := &Mapping{}
	last := -1
	for _, bar := range dev.BARs {
		if bar.IsMemory() && bar.Size() > 0 {
			last = bar.Index
		}
	}
	windows := make([]hal.Window, last+1)
	for _, bar := range dev.BARs {
		if bar.Index > last || !bar.IsMemory() || bar.Size() == 0 {
			continue
		}
		path := filepath.Join(dev.Path, fmt.Sprintf("resource%d", bar.Index))
		mem, err := mapFile(path, bar.Size())
		if err != nil {
			m.unmap()
			return nil, err
		}
		m.regions = append(m.regions, mem)
		windows[bar.Index] = &window{mem: mem}
		pkg.LogDebug(pkg.ComponentHAL, "mapped BAR",
			"device", dev.Address, "bar", bar.Index, "size", bar.Size())
	}

	dma := opts.DMA
	if dma == nil {
		dma = NewHugePageAllocator()
	}
	m.Resource = &hal.BusResource{
		Name:    dev.Address,
		IDs:     dev.IDs,
		Windows: windows,
		DMA:     dma,
	}
	return m, nil
}

// Close unmaps every window. Windows must not be used afterwards.
func (m *Mapping) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return pkg.ErrClosed
	}
	m.closed = true
	return m.unmap()
}

func (m *Mapping) unmap() error {
	var errs []error
	for _, mem := range m.regions {
		if err := unix.Munmap(mem); err != nil {
			errs = append(errs, err)
		}
	}
	m.regions = nil
	return errors.Join(errs...)
}
