// Package linux binds adapters on a Linux host to the HAL without a kernel
// driver.
//
// Discovery reads the PCI tree in sysfs (/sys/bus/pci/devices/). Opening a
// device maps its memory BARs through the sysfs resourceN files, so register
// access is plain loads and stores from user space. It is pure Go with no
// cgo dependencies.
//
// # Requirements
//
// Mapping BARs needs read/write access to the resourceN files, which
// normally means running as root. Bus-master adapters additionally need:
//   - Reserved 2 MiB huge pages (vm.nr_hugepages)
//   - CAP_SYS_ADMIN, so /proc/self/pagemap reports frame numbers
//   - Huge pages below 4 GiB, since the adapters use 32-bit bus addresses
//
// # Architecture
//
// A Mapping packages one opened function as a hal.BusResource:
//   - Each memory BAR becomes a hal.Window at its BAR index
//   - Window accesses are 32-bit atomic loads and stores on the mapping
//   - DMA buffers are single locked huge pages, physically contiguous
//
// An IOMMU in translating mode makes the pagemap addresses meaningless to
// the device; such hosts need a VFIO binding this package does not provide.
package linux
