//go:build linux

package linux

// =============================================================================
// System Paths
// =============================================================================

// SysfsPCIPath is the base path for PCI devices in sysfs.
const SysfsPCIPath = "/sys/bus/pci/devices"

// PagemapPath is the virtual to physical page table of this process.
const PagemapPath = "/proc/self/pagemap"

// =============================================================================
// PCI Resources
// =============================================================================

// MaxBARs is the number of base address registers of a PCI function.
const MaxBARs = 6

// Resource flags from the sysfs "resource" file.
const (
	ResourceIO       = 0x00000100
	ResourceMem      = 0x00000200
	ResourcePrefetch = 0x00002000
)

// MaxWindowSize bounds a mapped BAR; windows address 32-bit offsets.
const MaxWindowSize = 1 << 31

// =============================================================================
// DMA
// =============================================================================

// HugePageSize is the size of one huge page. A buffer inside one huge page
// is physically contiguous.
const HugePageSize = 2 << 20

// Pagemap entry fields.
const (
	pagemapPresent = 1 << 63
	pagemapPFNMask = 1<<55 - 1
	pagemapEntry   = 8
)

// MaxDMAAddr is the highest bus address the adapters can reach.
const MaxDMAAddr = 0xFFFFFFFF
