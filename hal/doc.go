// Package hal defines the hardware abstraction between the HPI transport
// backends and the bus an adapter sits on.
//
// The backends only ever touch hardware through a [Window]: 32-bit reads and
// writes at byte offsets into a mapped region. Bus-mastering adapters also
// need host memory the DSP can reach, obtained from an [Allocator]. A
// [BusResource] bundles the windows, the allocator and the bus identifiers
// used to select a backend.
//
// # Implementations
//
//   - [github.com/ardnew/softhpi/hal/mem]: plain memory windows, access
//     counting and a heap-backed DMA allocator, used by tests and the DSP
//     simulator.
//   - [github.com/ardnew/softhpi/hal/linux]: PCI discovery through sysfs,
//     BARs mapped with mmap and hugepage DMA buffers.
package hal
