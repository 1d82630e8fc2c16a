//go:build linux

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ardnew/softhpi/adapter"
	"github.com/ardnew/softhpi/backend"
	"github.com/ardnew/softhpi/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Transport.IdleSpin = 200
	cfg.Transport.AckSpin = 200
	cfg.Transport.BootSpin = 5000
	cfg.Sysfs.Root = t.TempDir()
	return cfg
}

// addFunction writes a sysfs PCI function with the given identifiers.
func addFunction(t *testing.T, root, addr string, vendor, device, subVendor uint16) {
	t.Helper()
	dir := filepath.Join(root, addr)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	attrs := map[string]string{
		"vendor":           hex16(vendor),
		"device":           hex16(device),
		"subsystem_vendor": hex16(subVendor),
		"subsystem_device": "0x6585\n",
		"resource":         "0x00000000f7e00000 0x00000000f7e0ffff 0x0000000000040200\n",
	}
	for name, value := range attrs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(value), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func hex16(v uint16) string {
	return fmt.Sprintf("0x%04x\n", v)
}

// =============================================================================
// Scan Tests
// =============================================================================

func TestScan(t *testing.T) {
	root := t.TempDir()
	addFunction(t, root, "0000:04:00.0", backend.VendorTI, backend.DeviceC6205, backend.VendorAudioScience)
	addFunction(t, root, "0000:03:00.0", backend.VendorMotorola, backend.DeviceDSP56301, backend.VendorAudioScience)
	addFunction(t, root, "0000:05:00.0", backend.VendorTI, backend.DeviceC6205, 0x1028) // Foreign subsystem
	addFunction(t, root, "0000:00:1f.3", 0x8086, 0xa348, 0x8086)

	found, err := scan(root, nil)
	if err != nil {
		t.Fatalf("scan() error = %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("scan() found %d adapters, want 2", len(found))
	}
	if found[0].kind != backend.KindSerial || found[1].kind != backend.KindBusMaster {
		t.Errorf("kinds = %v, %v", found[0].kind, found[1].kind)
	}

	found, err = scan(root, []string{"0000:04:00.0"})
	if err != nil {
		t.Fatalf("scan(filtered) error = %v", err)
	}
	if len(found) != 1 || found[0].dev.Address != "0000:04:00.0" {
		t.Errorf("scan(filtered) = %+v", found)
	}
}

func TestRunList(t *testing.T) {
	cfg := testConfig(t)
	addFunction(t, cfg.Sysfs.Root, "0000:03:00.0", backend.VendorTI, backend.DevicePCI2040, backend.VendorAudioScience)

	var out bytes.Buffer
	if err := runList(cfg, nil, &out); err != nil {
		t.Fatalf("runList() error = %v", err)
	}
	if !strings.Contains(out.String(), "0000:03:00.0") || !strings.Contains(out.String(), "bridge") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunListEmpty(t *testing.T) {
	var out bytes.Buffer
	if err := runList(testConfig(t), nil, &out); err != nil {
		t.Fatalf("runList() error = %v", err)
	}
	if !strings.Contains(out.String(), "no supported adapters") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRunBootWithoutAdapters(t *testing.T) {
	var out bytes.Buffer
	if err := runBoot(testConfig(t), nil, &out); err == nil {
		t.Error("runBoot() succeeded with no adapters")
	}
}

// =============================================================================
// Simulation Tests
// =============================================================================

func TestRunSim(t *testing.T) {
	var out bytes.Buffer
	if err := runSim(testConfig(t), []string{"-stall", "2"}, &out); err != nil {
		t.Fatalf("runSim() error = %v", err)
	}
	text := out.String()
	for _, want := range []string{"sim-serial", "sim-bridge", "sim-busmaster", "adapter 2", "serial", "busmaster"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "crashed") {
		t.Errorf("stalls crashed an adapter:\n%s", text)
	}
}

func TestRunSimHang(t *testing.T) {
	cfg := testConfig(t)
	cfg.Adapter.CrashThreshold = 3

	var out bytes.Buffer
	if err := runSim(cfg, []string{"-hang"}, &out); err != nil {
		t.Fatalf("runSim() error = %v", err)
	}
	if !strings.Contains(out.String(), "crashed") {
		t.Errorf("output has no crashed adapter:\n%s", out.String())
	}
}

func TestBootAllReportsEveryFailure(t *testing.T) {
	sim := newSimulated()
	sub := adapter.NewSubsystem(nil, sim.firmware, testConfig(t).AdapterOptions())
	defer sub.Close()

	if _, err := bootAll(sub, sim.resources, 2); err != nil {
		t.Fatalf("bootAll() error = %v", err)
	}

	// A second set of adapters collides on every index.
	again := newSimulated()
	results, err := bootAll(sub, again.resources, 2)
	if err == nil {
		t.Fatal("second bootAll() succeeded")
	}
	for _, r := range results {
		if r.err == nil {
			t.Errorf("%s booted twice", r.name)
		}
	}
	if sub.Registry().Len() != len(sim.resources) {
		t.Errorf("Len() = %d, want %d", sub.Registry().Len(), len(sim.resources))
	}
}
