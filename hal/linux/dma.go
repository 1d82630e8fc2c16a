//go:build linux

package linux

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/pkg"
)

// =============================================================================
// Hugepage DMA
// =============================================================================

// HugePageAllocator hands out DMA buffers backed by one locked huge page
// each. The bus address comes from the process pagemap, which needs
// CAP_SYS_ADMIN.
type HugePageAllocator struct {
	Pagemap string // Defaults to PagemapPath
}

// NewHugePageAllocator returns an allocator reading PagemapPath.
func NewHugePageAllocator() *HugePageAllocator {
	return &HugePageAllocator{Pagemap: PagemapPath}
}

// Alloc maps a huge page, locks it and resolves its bus address. Buffers
// larger than a huge page or resolving above 4 GiB fail with ErrNoMemory.
func (a *HugePageAllocator) Alloc(size int) (hal.DMABuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("dma alloc %d: %w", size, pkg.ErrInvalidParameter)
	}
	if size > HugePageSize {
		return nil, fmt.Errorf("dma alloc %d: exceeds huge page: %w", size, pkg.ErrNoMemory)
	}

	mem, err := unix.Mmap(-1, 0, HugePageSize,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_HUGETLB|unix.MAP_POPULATE)
	if err != nil {
		return nil, fmt.Errorf("dma alloc: %w: %w", pkg.ErrNoMemory, err)
	}
	if err := unix.Mlock(mem); err != nil {
		unix.Munmap(mem)
		return nil, fmt.Errorf("dma lock: %w: %w", pkg.ErrNoMemory, err)
	}

	path := a.Pagemap
	if path == "" {
		path = PagemapPath
	}
	vaddr := uint64(uintptr(unsafe.Pointer(&mem[0])))
	phys, err := lookupPhys(path, vaddr)
	if err != nil || phys+uint64(size)-1 > MaxDMAAddr {
		unix.Munmap(mem)
		if err == nil {
			err = fmt.Errorf("bus address %#x above 4 GiB", phys)
		}
		return nil, fmt.Errorf("dma alloc: %w: %w", pkg.ErrNoMemory, err)
	}

	pkg.LogDebug(pkg.ComponentHAL, "dma buffer",
		"size", size, "phys", fmt.Sprintf("%#x", phys))
	return &hugeBuffer{mem: mem, size: size, phys: phys}, nil
}

// lookupPhys resolves the physical address of vaddr through a pagemap file.
func lookupPhys(path string, vaddr uint64) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	pageSize := uint64(os.Getpagesize())
	var entry [pagemapEntry]byte
	if _, err := file.ReadAt(entry[:], int64(vaddr/pageSize*pagemapEntry)); err != nil {
		return 0, err
	}
	phys, ok := physAddr(binary.LittleEndian.Uint64(entry[:]), vaddr, pageSize)
	if !ok {
		return 0, fmt.Errorf("page %#x not resolvable", vaddr)
	}
	return phys, nil
}

// physAddr decodes one pagemap entry. A missing page or a zero frame number
// (pagemap hides frames from unprivileged readers) is not resolvable.
func physAddr(entry, vaddr, pageSize uint64) (uint64, bool) {
	if entry&pagemapPresent == 0 {
		return 0, false
	}
	pfn := entry & pagemapPFNMask
	if pfn == 0 {
		return 0, false
	}
	return pfn*pageSize + vaddr%pageSize, true
}

// hugeBuffer is one mapped huge page.
type hugeBuffer struct {
	mutex sync.Mutex
	mem   []byte
	size  int
	phys  uint64
}

func (b *hugeBuffer) Bytes() []byte { return b.mem[:b.size:b.size] }

func (b *hugeBuffer) PhysAddr() uint64 { return b.phys }

func (b *hugeBuffer) Free() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.mem == nil {
		return pkg.ErrClosed
	}
	err := unix.Munmap(b.mem)
	b.mem = nil
	return err
}
