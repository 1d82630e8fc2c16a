//go:build linux

package pciid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ardnew/softhpi/hal"
)

// DefaultPaths lists the standard locations for the PCI ID database.
var DefaultPaths = []string{
	"/usr/share/hwdata/pci.ids",
	"/usr/share/misc/pci.ids",
	"/usr/share/pci.ids",
}

// Database caches vendor, device and subsystem names from the PCI ID
// database.
type Database struct {
	vendors    map[uint16]string // Vendor -> name
	devices    map[uint32]string // (vendor<<16)|device -> name
	subsystems map[uint64]string // (vendor<<48)|(device<<32)|(subvendor<<16)|subdevice -> name
	loaded     bool
	mu         sync.RWMutex
	paths      []string
}

// New creates a database that searches the default paths.
func New() *Database {
	return NewWithPaths(DefaultPaths)
}

// NewWithPaths creates a database that searches the given paths in order.
func NewWithPaths(paths []string) *Database {
	return &Database{
		vendors:    make(map[uint16]string),
		devices:    make(map[uint32]string),
		subsystems: make(map[uint64]string),
		paths:      paths,
	}
}

// Load parses the first database file found. It is idempotent: later calls
// do nothing once a load was attempted.
//
// Returns true if the database was loaded (or already loaded), false if no
// database file could be found.
func (db *Database) Load() bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.loaded {
		return len(db.vendors) > 0
	}
	// Mark as loaded even if no file is found to prevent repeated searches
	db.loaded = true

	for _, path := range db.paths {
		file, err := os.Open(path)
		if err != nil {
			continue
		}
		err = db.parse(file)
		file.Close()
		if err == nil {
			return true
		}
	}
	return false
}

// Read parses a database from r, adding to any names already present.
func (db *Database) Read(r io.Reader) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.loaded = true
	return db.parse(r)
}

// parse reads the pci.ids format. Vendor lines have no indent, device lines
// one tab and subsystem lines two tabs:
//
//	175c  AudioScience Inc
//	\t6205  ASI6205
//	\t\t175c 5040  ASI5040
//
// The class section ("C xx  name") ends the vendor list.
func (db *Database) parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	var (
		vendor uint16
		device uint16
		inDev  bool
	)

	for scanner.Scan() {
		line := scanner.Text()

		// Skip empty lines and comments
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if strings.HasPrefix(line, "C ") {
			break
		}

		depth := len(line) - len(strings.TrimLeft(line, "\t"))
		line = line[depth:]

		switch depth {
		case 0:
			id, name, ok := splitID(line)
			if !ok {
				vendor, inDev = 0, false
				continue
			}
			vendor, inDev = id, false
			db.vendors[vendor] = name

		case 1:
			if vendor == 0 {
				continue
			}
			id, name, ok := splitID(line)
			if !ok {
				inDev = false
				continue
			}
			device, inDev = id, true
			db.devices[uint32(vendor)<<16|uint32(id)] = name

		case 2:
			if !inDev {
				continue
			}
			subVendor, rest, ok := splitID(line)
			if !ok {
				continue
			}
			subDevice, name, ok := splitID(rest)
			if !ok {
				continue
			}
			db.subsystems[subsystemKey(vendor, device, subVendor, subDevice)] = name
		}
	}
	return scanner.Err()
}

// splitID splits "xxxx name" into its hex identifier and the rest.
func splitID(s string) (uint16, string, bool) {
	if len(s) < 6 || s[4] != ' ' {
		return 0, "", false
	}
	id, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, "", false
	}
	return uint16(id), strings.TrimLeft(s[5:], " "), true
}

func subsystemKey(vendor, device, subVendor, subDevice uint16) uint64 {
	return uint64(vendor)<<48 | uint64(device)<<32 | uint64(subVendor)<<16 | uint64(subDevice)
}

// LookupVendor returns the vendor name, or an empty string if unknown.
func (db *Database) LookupVendor(vendor uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.vendors[vendor]
}

// LookupDevice returns the device name, or an empty string if unknown.
func (db *Database) LookupDevice(vendor, device uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.devices[uint32(vendor)<<16|uint32(device)]
}

// LookupSubsystem returns the subsystem name, or an empty string if unknown.
func (db *Database) LookupSubsystem(ids hal.IDs) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.subsystems[subsystemKey(ids.Vendor, ids.Device, ids.SubsystemVendor, ids.SubsystemDevice)]
}

// Describe names an adapter as precisely as the database allows: the
// subsystem name, else "vendor device", else the raw identifiers.
func (db *Database) Describe(ids hal.IDs) string {
	if name := db.LookupSubsystem(ids); name != "" {
		return name
	}
	vendor := db.LookupVendor(ids.Vendor)
	device := db.LookupDevice(ids.Vendor, ids.Device)
	switch {
	case vendor != "" && device != "":
		return vendor + " " + device
	case vendor != "":
		return fmt.Sprintf("%s device %04x", vendor, ids.Device)
	}
	return ids.String()
}

// IsLoaded returns true if the database has been loaded (or load was attempted).
func (db *Database) IsLoaded() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.loaded
}

// VendorCount returns the number of vendors in the database.
func (db *Database) VendorCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.vendors)
}

// DeviceCount returns the number of devices in the database.
func (db *Database) DeviceCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.devices)
}
