//go:build linux

package linux

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ardnew/softhpi/hal"
)

// fakeDevice writes a sysfs function directory under root. Empty attribute
// values are omitted.
func fakeDevice(t *testing.T, root, addr string, attrs map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, addr)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	for name, value := range attrs {
		if value == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(value), 0o644); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", name, err)
		}
	}
	return dir
}

const asiResources = "0x00000000f7e00000 0x00000000f7e0ffff 0x0000000000040200\n" +
	"0x0000000000000000 0x0000000000000000 0x0000000000000000\n" +
	"0x000000000000e000 0x000000000000e0ff 0x0000000000040101\n" +
	"0x0000000000000000 0x0000000000000000 0x0000000000000000\n" +
	"0x0000000000000000 0x0000000000000000 0x0000000000000000\n" +
	"0x0000000000000000 0x0000000000000000 0x0000000000000000\n" +
	"0x00000000f7f00000 0x00000000f7f7ffff 0x0000000000046200\n"

func asiAttrs() map[string]string {
	return map[string]string{
		"vendor":           "0x104c\n",
		"device":           "0xa106\n",
		"subsystem_vendor": "0x175c\n",
		"subsystem_device": "0x5040\n",
		"class":            "0x040100\n",
		"resource":         asiResources,
	}
}

// =============================================================================
// ParseDevice Tests
// =============================================================================

func TestParseDevice(t *testing.T) {
	dir := fakeDevice(t, t.TempDir(), "0000:03:00.0", asiAttrs())

	dev, err := ParseDevice(dir)
	if err != nil {
		t.Fatalf("ParseDevice() error = %v", err)
	}
	want := hal.IDs{Vendor: 0x104c, Device: 0xa106, SubsystemVendor: 0x175c, SubsystemDevice: 0x5040}
	if dev.IDs != want {
		t.Errorf("IDs = %v, want %v", dev.IDs, want)
	}
	if dev.Address != "0000:03:00.0" {
		t.Errorf("Address = %q", dev.Address)
	}
	if dev.Class != 0x040100 {
		t.Errorf("Class = %#x, want 0x040100", dev.Class)
	}
	if len(dev.BARs) != MaxBARs {
		t.Fatalf("len(BARs) = %d, want %d", len(dev.BARs), MaxBARs)
	}

	bar0 := dev.BARs[0]
	if !bar0.IsMemory() || bar0.Size() != 0x10000 || bar0.Start != 0xf7e00000 {
		t.Errorf("BAR0 = %+v, size %#x", bar0, bar0.Size())
	}
	if dev.BARs[1].Size() != 0 {
		t.Errorf("BAR1 size = %#x, want 0", dev.BARs[1].Size())
	}
	if dev.BARs[2].IsMemory() {
		t.Error("BAR2 is I/O, reported as memory")
	}
}

func TestParseDeviceOptionalAttributes(t *testing.T) {
	attrs := asiAttrs()
	delete(attrs, "subsystem_vendor")
	delete(attrs, "subsystem_device")
	delete(attrs, "class")
	dir := fakeDevice(t, t.TempDir(), "0000:04:00.0", attrs)

	dev, err := ParseDevice(dir)
	if err != nil {
		t.Fatalf("ParseDevice() error = %v", err)
	}
	if dev.IDs.SubsystemVendor != 0 || dev.Class != 0 {
		t.Errorf("Device = %+v, want zero optional fields", dev)
	}
}

func TestParseDeviceErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(map[string]string)
	}{
		{"no vendor", func(a map[string]string) { delete(a, "vendor") }},
		{"bad device", func(a map[string]string) { a["device"] = "0xzz\n" }},
		{"wide vendor", func(a map[string]string) { a["vendor"] = "0x12345\n" }},
		{"no resource", func(a map[string]string) { delete(a, "resource") }},
		{"short resource line", func(a map[string]string) { a["resource"] = "0x0 0x0\n" }},
		{"bad resource value", func(a map[string]string) { a["resource"] = "0x0 0xq 0x0\n" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := asiAttrs()
			tt.modify(attrs)
			dir := fakeDevice(t, t.TempDir(), "0000:05:00.0", attrs)
			if _, err := ParseDevice(dir); err == nil {
				t.Error("ParseDevice() succeeded, want error")
			}
		})
	}
}

// =============================================================================
// Scan Tests
// =============================================================================

func TestScan(t *testing.T) {
	root := t.TempDir()
	fakeDevice(t, root, "0000:05:00.0", asiAttrs())
	fakeDevice(t, root, "0000:03:00.0", asiAttrs())

	broken := asiAttrs()
	delete(broken, "vendor")
	fakeDevice(t, root, "0000:06:00.0", broken)

	// Not a PCI function name
	fakeDevice(t, root, "pci0000:00", asiAttrs())

	devices, err := Scan(root)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("Scan() found %d devices, want 2", len(devices))
	}
	if devices[0].Address != "0000:03:00.0" || devices[1].Address != "0000:05:00.0" {
		t.Errorf("Scan() order = %s, %s", devices[0].Address, devices[1].Address)
	}
}

func TestScanMissingRoot(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "none")); err == nil {
		t.Error("Scan() succeeded on a missing root")
	}
}

// =============================================================================
// BAR Tests
// =============================================================================

func TestBARSize(t *testing.T) {
	tests := []struct {
		bar  BAR
		want uint64
	}{
		{BAR{Start: 0x1000, End: 0x1fff}, 0x1000},
		{BAR{Start: 0x1000, End: 0x1000}, 1},
		{BAR{}, 0},
		{BAR{Start: 0x2000, End: 0x1000}, 0},
	}
	for _, tt := range tests {
		if got := tt.bar.Size(); got != tt.want {
			t.Errorf("%+v.Size() = %#x, want %#x", tt.bar, got, tt.want)
		}
	}
}
