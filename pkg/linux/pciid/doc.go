//go:build linux

// Package pciid looks up PCI vendor, device and subsystem names in the
// pci.ids database shipped with most Linux systems.
//
// # Usage
//
//	db := pciid.New()
//	db.Load()
//	fmt.Println(db.Describe(res.IDs))
//
// # Database Locations
//
// The package searches for the database in these locations:
//
//   - /usr/share/hwdata/pci.ids
//   - /usr/share/misc/pci.ids
//   - /usr/share/pci.ids
//
// If no file is found, lookups return empty strings and Describe falls back
// to the raw identifiers.
//
// All methods are safe for concurrent use.
package pciid
