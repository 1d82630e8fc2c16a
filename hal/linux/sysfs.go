//go:build linux

package linux

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ardnew/softhpi/hal"
)

// =============================================================================
// PCI Device Information
// =============================================================================

// Device is a PCI function discovered via sysfs.
type Device struct {
	Address string  // Bus location, e.g. "0000:03:00.0"
	Path    string  // Directory in sysfs
	IDs     hal.IDs // Vendor, device and subsystem identifiers
	Class   uint32  // Class code
	BARs    []BAR   // Base address registers in order
}

// BAR is one base address register as sysfs reports it.
type BAR struct {
	Index int
	Start uint64
	End   uint64
	Flags uint64
}

// Size returns the length of the region in bytes.
func (b BAR) Size() uint64 {
	if b.End < b.Start || b.Start == 0 && b.End == 0 {
		return 0
	}
	return b.End - b.Start + 1
}

// IsMemory reports whether the region is memory mapped.
func (b BAR) IsMemory() bool {
	return b.Flags&ResourceMem != 0
}

// =============================================================================
// Sysfs Parsing
// =============================================================================

// Scan lists the PCI functions under root, sorted by address. An empty root
// selects SysfsPCIPath.
func Scan(root string) ([]Device, error) {
	if root == "" {
		root = SysfsPCIPath
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var devices []Device
	for _, entry := range entries {
		// PCI functions have names like "0000:03:00.0"
		name := entry.Name()
		if strings.Count(name, ":") != 2 {
			continue
		}
		dev, err := ParseDevice(filepath.Join(root, name))
		if err != nil {
			continue // Skip functions we can't parse
		}
		devices = append(devices, dev)
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Address < devices[j].Address
	})
	return devices, nil
}

// ParseDevice reads the identity and resources of the PCI function at path.
func ParseDevice(path string) (Device, error) {
	dev := Device{
		Address: filepath.Base(path),
		Path:    path,
	}

	var err error
	if dev.IDs.Vendor, err = readSysfsHexUint16(filepath.Join(path, "vendor")); err != nil {
		return dev, err
	}
	if dev.IDs.Device, err = readSysfsHexUint16(filepath.Join(path, "device")); err != nil {
		return dev, err
	}

	// Subsystem identifiers and class are optional
	if v, err := readSysfsHexUint16(filepath.Join(path, "subsystem_vendor")); err == nil {
		dev.IDs.SubsystemVendor = v
	}
	if v, err := readSysfsHexUint16(filepath.Join(path, "subsystem_device")); err == nil {
		dev.IDs.SubsystemDevice = v
	}
	if v, err := readSysfsHex(filepath.Join(path, "class"), 32); err == nil {
		dev.Class = uint32(v)
	}

	dev.BARs, err = parseResources(filepath.Join(path, "resource"))
	if err != nil {
		return dev, err
	}
	return dev, nil
}

// parseResources reads the BAR lines of a sysfs "resource" file. Each line
// holds start, end and flags in hex.
func parseResources(path string) ([]BAR, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var bars []BAR
	scanner := bufio.NewScanner(file)
	for i := 0; i < MaxBARs && scanner.Scan(); i++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 3 {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, os.ErrInvalid)
		}
		var v [3]uint64
		for j, f := range fields {
			if v[j], err = strconv.ParseUint(strings.TrimPrefix(f, "0x"), 16, 64); err != nil {
				return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
			}
		}
		bars = append(bars, BAR{Index: i, Start: v[0], End: v[1], Flags: v[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return bars, nil
}

// =============================================================================
// Sysfs Read Helpers
// =============================================================================

// readSysfsString reads a string from a sysfs attribute file.
func readSysfsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// readSysfsHex reads a hexadecimal value from a sysfs attribute file.
func readSysfsHex(path string, bitSize int) (uint64, error) {
	s, err := readSysfsString(path)
	if err != nil {
		return 0, err
	}
	// Remove any "0x" prefix
	s = strings.TrimPrefix(s, "0x")
	return strconv.ParseUint(s, 16, bitSize)
}

// readSysfsHexUint16 reads a hexadecimal uint16 from a sysfs attribute file.
func readSysfsHexUint16(path string) (uint16, error) {
	v, err := readSysfsHex(path, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// writeSysfsString writes an attribute file.
func writeSysfsString(path, s string) error {
	return os.WriteFile(path, []byte(s), 0)
}
