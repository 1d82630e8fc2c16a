package hal

import "fmt"

// Window is a memory-mapped register or memory region of an adapter. Offsets
// are in bytes and must be 32-bit aligned.
//
// Implementations must not cache or reorder accesses: every call reaches the
// hardware in program order.
type Window interface {
	// Read32 reads the 32-bit word at off.
	Read32(off uint32) uint32

	// Write32 writes the 32-bit word at off.
	Write32(off uint32, v uint32)

	// Size returns the window length in bytes.
	Size() uint32
}

// IDs are the bus identifiers of an adapter.
type IDs struct {
	Vendor          uint16
	Device          uint16
	SubsystemVendor uint16
	SubsystemDevice uint16
}

// String returns "vvvv:dddd (ssss:ssss)".
func (id IDs) String() string {
	return fmt.Sprintf("%04x:%04x (%04x:%04x)", id.Vendor, id.Device,
		id.SubsystemVendor, id.SubsystemDevice)
}

// DMABuffer is host memory the adapter can reach by bus mastering.
type DMABuffer interface {
	// Bytes returns the buffer contents. The slice aliases the DMA memory.
	Bytes() []byte

	// PhysAddr returns the bus address of the first byte.
	PhysAddr() uint64

	// Free releases the buffer. Bytes must not be used afterwards.
	Free() error
}

// Allocator provides physically contiguous DMA buffers.
type Allocator interface {
	// Alloc returns a zeroed buffer of at least size bytes.
	Alloc(size int) (DMABuffer, error)
}

// BusResource is everything the adapter layer needs from the bus: identity,
// mapped windows and a DMA allocator.
type BusResource struct {
	Name    string   // Bus location, e.g. "0000:03:00.0"
	IDs     IDs      // Bus identifiers
	Windows []Window // Mapped BARs in order
	DMA     Allocator
}

// Window returns window i or nil if the resource has fewer windows.
func (r *BusResource) Window(i int) Window {
	if i < 0 || i >= len(r.Windows) {
		return nil
	}
	return r.Windows[i]
}
