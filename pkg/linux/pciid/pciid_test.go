//go:build linux

package pciid

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardnew/softhpi/hal"
)

const testDatabase = "# PCI ID database\n" +
	"# Comment line\n" +
	"\n" +
	"10b5  PLX Technology, Inc.\n" +
	"\t9050  PCI <-> IOBus Bridge\n" +
	"\t\t175c 4501  ASI4501\n" +
	"175c  AudioScience Inc\n" +
	"\t6205  ASI6205\n" +
	"\t\t175c 5040  ASI5040\n" +
	"\t\t175c 6585  ASI6585\n" +
	"\t6244  ASI6244\n" +
	"1234  Vendor Without Devices\n" +
	"C 04  Multimedia controller\n" +
	"\t01  Multimedia audio controller\n"

func writeDatabase(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pci.ids")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

// TestNew verifies that New() searches the default paths.
func TestNew(t *testing.T) {
	db := New()
	if len(db.paths) != len(DefaultPaths) {
		t.Errorf("Expected %d paths, got %d", len(DefaultPaths), len(db.paths))
	}
	if db.vendors == nil || db.devices == nil || db.subsystems == nil {
		t.Error("Database maps not initialized")
	}
}

// TestLoad_FileNotFound verifies that Load() handles missing files gracefully.
func TestLoad_FileNotFound(t *testing.T) {
	db := NewWithPaths([]string{"/nonexistent/path/pci.ids"})
	if db.Load() {
		t.Error("Load() should return false when file not found")
	}
	if !db.IsLoaded() {
		t.Error("IsLoaded() should return true after Load() attempt")
	}
	if db.Load() {
		t.Error("second Load() should still report no database")
	}
}

// TestLoad_FallsThrough verifies that later paths are tried in order.
func TestLoad_FallsThrough(t *testing.T) {
	path := writeDatabase(t, testDatabase)
	db := NewWithPaths([]string{"/nonexistent/pci.ids", path})
	if !db.Load() {
		t.Fatal("Load() failed")
	}
	vendors, devices := db.VendorCount(), db.DeviceCount()
	if vendors != 3 || devices != 3 {
		t.Errorf("counts = %d vendors, %d devices, want 3, 3", vendors, devices)
	}

	// Second load is a no-op
	if !db.Load() {
		t.Error("Second Load() failed")
	}
	if db.VendorCount() != vendors || db.DeviceCount() != devices {
		t.Error("Second Load() modified the database")
	}
}

// TestLookup verifies vendor, device and subsystem lookups.
func TestLookup(t *testing.T) {
	db := NewWithPaths(nil)
	if err := db.Read(strings.NewReader(testDatabase)); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	tests := []struct {
		name          string
		ids           hal.IDs
		wantVendor    string
		wantDevice    string
		wantSubsystem string
	}{
		{
			name:          "Bus master adapter",
			ids:           hal.IDs{Vendor: 0x175c, Device: 0x6205, SubsystemVendor: 0x175c, SubsystemDevice: 0x5040},
			wantVendor:    "AudioScience Inc",
			wantDevice:    "ASI6205",
			wantSubsystem: "ASI5040",
		},
		{
			name:          "Bridge subsystem",
			ids:           hal.IDs{Vendor: 0x10b5, Device: 0x9050, SubsystemVendor: 0x175c, SubsystemDevice: 0x4501},
			wantVendor:    "PLX Technology, Inc.",
			wantDevice:    "PCI <-> IOBus Bridge",
			wantSubsystem: "ASI4501",
		},
		{
			name:       "Device without subsystems",
			ids:        hal.IDs{Vendor: 0x175c, Device: 0x6244, SubsystemVendor: 0x175c, SubsystemDevice: 0x6244},
			wantVendor: "AudioScience Inc",
			wantDevice: "ASI6244",
		},
		{
			name:       "Subsystem under another device",
			ids:        hal.IDs{Vendor: 0x175c, Device: 0x6244, SubsystemVendor: 0x175c, SubsystemDevice: 0x5040},
			wantVendor: "AudioScience Inc",
			wantDevice: "ASI6244",
		},
		{
			name: "Unknown vendor",
			ids:  hal.IDs{Vendor: 0xffff},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := db.LookupVendor(tt.ids.Vendor); got != tt.wantVendor {
				t.Errorf("LookupVendor() = %q, want %q", got, tt.wantVendor)
			}
			if got := db.LookupDevice(tt.ids.Vendor, tt.ids.Device); got != tt.wantDevice {
				t.Errorf("LookupDevice() = %q, want %q", got, tt.wantDevice)
			}
			if got := db.LookupSubsystem(tt.ids); got != tt.wantSubsystem {
				t.Errorf("LookupSubsystem() = %q, want %q", got, tt.wantSubsystem)
			}
		})
	}
}

// TestClassSectionIgnored verifies that class codes do not leak into devices.
func TestClassSectionIgnored(t *testing.T) {
	db := NewWithPaths(nil)
	if err := db.Read(strings.NewReader(testDatabase)); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got := db.LookupDevice(0x1234, 0x0001); got != "" {
		t.Errorf("LookupDevice() = %q, want empty", got)
	}
}

// TestMalformedLines verifies that unparsable lines are skipped.
func TestMalformedLines(t *testing.T) {
	content := "zzzz  Bad Vendor\n" +
		"\tabcd  Orphan Device\n" +
		"175c  AudioScience Inc\n" +
		"\tshort\n" +
		"\t\t175c 5040  Orphan Subsystem\n" +
		"\t6205  ASI6205\n" +
		"\t\tbad\n"
	db := NewWithPaths(nil)
	if err := db.Read(strings.NewReader(content)); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if db.VendorCount() != 1 || db.DeviceCount() != 1 {
		t.Errorf("counts = %d vendors, %d devices, want 1, 1", db.VendorCount(), db.DeviceCount())
	}
	if got := db.LookupSubsystem(hal.IDs{Vendor: 0x175c, Device: 0x6205, SubsystemVendor: 0x175c, SubsystemDevice: 0x5040}); got != "" {
		t.Errorf("orphan subsystem attached to %q", got)
	}
}

// TestDescribe verifies the naming fallbacks.
func TestDescribe(t *testing.T) {
	db := NewWithPaths(nil)
	if err := db.Read(strings.NewReader(testDatabase)); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	tests := []struct {
		ids  hal.IDs
		want string
	}{
		{hal.IDs{Vendor: 0x175c, Device: 0x6205, SubsystemVendor: 0x175c, SubsystemDevice: 0x6585}, "ASI6585"},
		{hal.IDs{Vendor: 0x175c, Device: 0x6244}, "AudioScience Inc ASI6244"},
		{hal.IDs{Vendor: 0x175c, Device: 0x8800}, "AudioScience Inc device 8800"},
		{hal.IDs{Vendor: 0xabcd, Device: 0x0001, SubsystemVendor: 0x0002, SubsystemDevice: 0x0003}, "abcd:0001 (0002:0003)"},
	}
	for _, tt := range tests {
		if got := db.Describe(tt.ids); got != tt.want {
			t.Errorf("Describe(%v) = %q, want %q", tt.ids, got, tt.want)
		}
	}
}
