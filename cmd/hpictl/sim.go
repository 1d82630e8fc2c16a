//go:build linux

package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/ardnew/softhpi/adapter"
	"github.com/ardnew/softhpi/config"
	"github.com/ardnew/softhpi/firmware"
	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/hal/mem"
	"github.com/ardnew/softhpi/hpi"
	"github.com/ardnew/softhpi/internal/dspsim"
	"github.com/ardnew/softhpi/pkg"
)

// simulated holds one adapter of each transport family.
type simulated struct {
	faults    *dspsim.Faults // Shared by the serial adapter only
	resources []*hal.BusResource
	firmware  firmware.Chain
}

func newSimulated() *simulated {
	s := &simulated{faults: &dspsim.Faults{}}

	cfg := dspsim.DefaultConfig()
	cfg.Index = 0
	serial := dspsim.NewSerial(dspsim.NewEngine(cfg, s.faults), s.faults, 5)

	cfg = dspsim.DefaultConfig()
	cfg.Index = 1
	primary := dspsim.NewEngine(cfg, nil)
	cfg.Controls = []dspsim.Control{}
	cfg.SerialNumber++
	bridge := dspsim.NewBridge(nil, primary, dspsim.NewEngine(cfg, nil))

	cfg = dspsim.DefaultConfig()
	cfg.Index = 2
	busMaster := dspsim.NewBusMaster(nil, dspsim.NewEngine(cfg, nil), mem.NewAllocator(0x10000000))

	s.resources = []*hal.BusResource{
		serial.Resource("sim-serial"),
		bridge.Resource("sim-bridge"),
		busMaster.Resource("sim-busmaster"),
	}
	s.firmware = firmware.Chain{serial.SerialFirmware(), bridge.Firmware(), busMaster.Firmware()}
	return s
}

func runSim(cfg *config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sim", flag.ContinueOnError)
	stalls := fs.Int("stall", 0, "Stall the serial adapter's next n handshakes")
	hang := fs.Bool("hang", false, "Hang the serial adapter until it is marked crashed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sim := newSimulated()
	sub := adapter.NewSubsystem(nil, sim.firmware, cfg.AdapterOptions())
	defer sub.Close()

	results, err := bootAll(sub, sim.resources, len(sim.resources))
	if perr := printResults(out, results); perr != nil {
		return perr
	}
	if err != nil {
		return err
	}

	for _, index := range sub.Registry().Indexes() {
		if err := exercise(sub, uint16(index)); err != nil {
			return err
		}
	}

	if *stalls > 0 {
		sim.faults.Stall(*stalls)
		for range *stalls {
			r := sub.Call(hpi.NewMessage(hpi.AdapterGetInfo, 0, 0))
			pkg.LogInfo(componentCLI, "stalled call", "code", r.Error.String())
		}
	}
	if *hang {
		sim.faults.Hang(true)
		crashAdapter(sub, 0, cfg.Adapter.CrashThreshold)
	}

	fmt.Fprintln(out)
	return report(out, sub)
}

// exercise opens an adapter and its first output stream, then closes both.
func exercise(sub *adapter.Subsystem, index uint16) error {
	steps := []*hpi.Message{
		hpi.NewMessage(hpi.AdapterOpen, index, 0),
		hpi.NewMessage(hpi.OStreamOpen, index, 0),
		hpi.NewMessage(hpi.OStreamGetInfo, index, 0),
		hpi.NewMessage(hpi.OStreamClose, index, 0),
		hpi.NewMessage(hpi.AdapterClose, index, 0),
	}
	for _, m := range steps {
		r := sub.Call(m)
		if r.Error != hpi.ErrorNone {
			return fmt.Errorf("adapter %d %s: %s", index, m.Function, r.Error)
		}
		pkg.LogDebug(componentCLI, "exercised",
			"index", index,
			"function", m.Function.String())
	}
	return nil
}

// crashAdapter sends messages until the adapter is marked crashed.
func crashAdapter(sub *adapter.Subsystem, index uint16, threshold int) {
	a := sub.Registry().Find(int(index))
	if a == nil {
		return
	}
	for n := 1; !a.Crashed() && n <= threshold; n++ {
		r := sub.Call(hpi.NewMessage(hpi.AdapterGetInfo, index, 0))
		pkg.LogInfo(componentCLI, "hung call",
			"attempt", n,
			"code", r.Error.String())
	}
}
