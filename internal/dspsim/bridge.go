package dspsim

import (
	"sync"

	"github.com/ardnew/softhpi/backend"
	"github.com/ardnew/softhpi/backend/bridge"
	"github.com/ardnew/softhpi/firmware"
	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/hpi"
	"github.com/ardnew/softhpi/pkg"
)

// Families of the simulated bridged adapter.
const (
	BridgeFamily          firmware.Family = 0x6400
	BridgeSecondaryFamily firmware.Family = 0x6480
)

// DSP-side buffers of the bridged firmware.
const (
	bridgeMsgAddr   = 0x00011000
	bridgeRespAddr  = 0x00011400
	bridgeDataAddr  = 0x00012000
	bridgeDataSize  = 1024
	bridgeCacheAddr = 0x00014000
	bridgePLDRev    = 0x0102
)

type bridgeRound int

const (
	roundNone bridgeRound = iota
	roundSend
)

type bridgeDSP struct {
	eng      *Engine
	family   firmware.Family
	mem      map[uint32]uint32
	stuck    map[uint32]uint32 // Address to bits that read as zero
	hpia     uint32
	running  bool
	round    bridgeRound
	cacheGen uint64
	synced   bool
}

// Bridge models a bridged adapter with one or two DSPs behind HPI ports.
type Bridge struct {
	mu        sync.Mutex
	faults    *Faults
	dsps      []*bridgeDSP
	intStatus uint32
	reset     uint32
	pldLoop   uint32
	pldBroken bool
}

// NewBridge returns a bridged adapter model. secondary may be nil for a
// single-DSP adapter.
func NewBridge(faults *Faults, primary, secondary *Engine) *Bridge {
	b := &Bridge{faults: faults}
	b.dsps = append(b.dsps, newBridgeDSP(primary, BridgeFamily))
	if secondary != nil {
		b.dsps = append(b.dsps, newBridgeDSP(secondary, BridgeSecondaryFamily))
	}
	return b
}

func newBridgeDSP(eng *Engine, f firmware.Family) *bridgeDSP {
	return &bridgeDSP{
		eng:    eng,
		family: f,
		mem:    make(map[uint32]uint32),
		stuck:  make(map[uint32]uint32),
	}
}

// Resource returns a bus resource exposing the model.
func (b *Bridge) Resource(name string) *hal.BusResource {
	return &hal.BusResource{
		Name: name,
		IDs: hal.IDs{
			Vendor:          backend.VendorTI,
			Device:          backend.DevicePCI2040,
			SubsystemVendor: backend.VendorAudioScience,
			SubsystemDevice: uint16(BridgeFamily),
		},
		Windows: []hal.Window{bridgeRegs{b}, bridgePort{b}},
	}
}

// Firmware returns a source holding an image for every DSP.
func (b *Bridge) Firmware() *firmware.Memory {
	src := firmware.NewMemory()
	for _, d := range b.dsps {
		src.Add(d.family, Program(d.family, 2))
	}
	return src
}

// StickBits forces bits of one DSP memory word to read as zero.
func (b *Bridge) StickBits(dsp int, addr, mask uint32) {
	b.mu.Lock()
	b.dsps[dsp].stuck[addr] = mask
	b.mu.Unlock()
}

// BreakPLD makes the PLD loop-back return wrong data.
func (b *Bridge) BreakPLD() {
	b.mu.Lock()
	b.pldBroken = true
	b.mu.Unlock()
}

// Running reports whether a DSP has started its firmware.
func (b *Bridge) Running(dsp int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return dsp < len(b.dsps) && b.dsps[dsp].running
}

// Word returns a word of DSP memory.
func (b *Bridge) Word(dsp int, addr uint32) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dsps[dsp].read(addr)
}

// =============================================================================
// Bridge Registers
// =============================================================================

type bridgeRegs struct{ b *Bridge }

func (r bridgeRegs) Size() uint32 { return bridge.RegsSize }

func (r bridgeRegs) Read32(off uint32) uint32 {
	b := r.b
	b.mu.Lock()
	defer b.mu.Unlock()
	switch off {
	case bridge.RegIntStatus:
		return b.intStatus
	case bridge.RegReset:
		return b.reset
	case bridge.RegPLDLoop:
		if b.pldBroken {
			return b.pldLoop ^ 1
		}
		return b.pldLoop
	case bridge.RegPLDRev:
		return bridgePLDRev
	}
	return 0
}

func (r bridgeRegs) Write32(off uint32, v uint32) {
	b := r.b
	b.mu.Lock()
	defer b.mu.Unlock()
	switch off {
	case bridge.RegIntStatus:
		b.intStatus &^= v
	case bridge.RegReset:
		for i, d := range b.dsps {
			if v&(1<<i) != 0 {
				d.running = false
				d.round = roundNone
				d.synced = false
			}
		}
		b.reset = v
	case bridge.RegPLDLoop:
		b.pldLoop = v
	}
}

// =============================================================================
// HPI Ports
// =============================================================================

type bridgePort struct{ b *Bridge }

func (p bridgePort) Size() uint32 { return bridge.HPISize }

func (p bridgePort) dsp(off uint32) (*bridgeDSP, uint32) {
	i := int(off / bridge.HPIStride)
	if i >= len(p.b.dsps) {
		return nil, 0
	}
	return p.b.dsps[i], off % bridge.HPIStride
}

func (p bridgePort) Read32(off uint32) uint32 {
	b := p.b
	b.mu.Lock()
	defer b.mu.Unlock()
	d, reg := p.dsp(off)
	if d == nil || b.faults.timeout() {
		b.intStatus |= bridge.IntHPITimeout
		return 0xFFFFFFFF
	}
	switch reg {
	case bridge.RegHPIC:
		return bridge.HPICHWOB | bridge.HPICHRDY
	case bridge.RegHPIA:
		return d.hpia
	case bridge.RegHPIDA:
		v := d.load(d.hpia)
		d.hpia += 4
		return v
	case bridge.RegHPID:
		return d.load(d.hpia)
	}
	return 0
}

func (p bridgePort) Write32(off uint32, v uint32) {
	b := p.b
	b.mu.Lock()
	defer b.mu.Unlock()
	d, reg := p.dsp(off)
	if d == nil || b.faults.timeout() {
		b.intStatus |= bridge.IntHPITimeout
		return
	}
	switch reg {
	case bridge.RegHPIC:
		if v&bridge.HPICDSPINT != 0 {
			b.interrupt(d)
		}
	case bridge.RegHPIA:
		d.hpia = v
	case bridge.RegHPIDA:
		d.write(d.hpia, v)
		d.hpia += 4
	case bridge.RegHPID:
		d.write(d.hpia, v)
	}
}

// =============================================================================
// DSP Firmware
// =============================================================================

func (d *bridgeDSP) read(addr uint32) uint32 {
	return d.mem[addr] &^ d.stuck[addr]
}

// load is a host read; the firmware refreshes its cache region first.
func (d *bridgeDSP) load(addr uint32) uint32 {
	if d.running && addr == bridge.HIFAddr+bridge.HIFCacheDirty {
		d.syncCache()
	}
	return d.read(addr)
}

func (d *bridgeDSP) write(addr, v uint32) {
	d.mem[addr] = v
}

func (d *bridgeDSP) hif(off uint32) uint32 {
	return d.mem[bridge.HIFAddr+off]
}

func (d *bridgeDSP) setHIF(off, v uint32) {
	d.mem[bridge.HIFAddr+off] = v
}

func (d *bridgeDSP) readBytes(addr uint32, n int) []byte {
	words := make([]uint32, (n+3)/4)
	for i := range words {
		words[i] = d.read(addr + uint32(4*i))
	}
	return hpi.Bytes(words)[:n]
}

func (d *bridgeDSP) writeBytes(addr uint32, data []byte) {
	for i, w := range hpi.Words(data) {
		d.write(addr+uint32(4*i), w)
	}
}

func (d *bridgeDSP) syncCache() {
	image, gen := d.eng.CacheImage()
	if d.synced && gen == d.cacheGen {
		return
	}
	d.writeBytes(bridgeCacheAddr, image)
	d.cacheGen, d.synced = gen, true
	d.setHIF(bridge.HIFCacheDirty, 1)
}

func (d *bridgeDSP) postAssert() {
	if d.hif(bridge.HIFAssertCount) != 0 {
		return
	}
	a, ok := d.eng.PopAssert()
	if !ok {
		return
	}
	d.setHIF(bridge.HIFAssertLine, a.Line)
	d.setHIF(bridge.HIFAssertParam, a.Param)
	d.writeBytes(bridge.HIFAddr+bridge.HIFAssertText, a.Text[:])
	d.setHIF(bridge.HIFAssertCount, uint32(a.Count))
}

func (b *Bridge) start(i int, d *bridgeDSP) {
	d.running = true
	d.round = roundNone
	d.synced = false
	d.setHIF(bridge.HIFMsgAddr, bridgeMsgAddr)
	d.setHIF(bridge.HIFRespAddr, bridgeRespAddr)
	d.setHIF(bridge.HIFCacheAddr, bridgeCacheAddr)
	image, _ := d.eng.CacheImage()
	d.setHIF(bridge.HIFCacheSize, uint32(len(image)))
	d.setHIF(bridge.HIFCacheCount, uint32(d.eng.NumControls()))
	d.setHIF(bridge.HIFAssertCount, 0)
	var next uint32
	if i == 0 && len(b.dsps) > 1 {
		next = uint32(b.dsps[1].family)
	}
	d.setHIF(bridge.HIFDSP1Family, next)
	d.syncCache()
	d.setHIF(bridge.HIFDSPAck, bridge.CmdIdle)
	d.setHIF(bridge.HIFHostCmd, bridge.CmdIdle)
	pkg.LogDebug(pkg.ComponentSim, "bridged dsp started",
		"dsp", i,
		"family", d.family.String())
}

func (b *Bridge) interrupt(d *bridgeDSP) {
	i := 0
	for j, x := range b.dsps {
		if x == d {
			i = j
		}
	}
	if b.reset&(1<<i) != 0 || b.faults.hung() {
		return
	}
	if !d.running {
		b.start(i, d)
		return
	}

	switch cmd := d.hif(bridge.HIFHostCmd); cmd {
	case bridge.CmdGetResp:
		if b.faults.drop() {
			return
		}
		size := int(d.read(bridgeMsgAddr) & 0xFFFF)
		resp := d.eng.HandleBytes(d.readBytes(bridgeMsgAddr, min(size, 0x400)))
		d.writeBytes(bridgeRespAddr, resp)
		if b.faults.ackLost() {
			return
		}
		d.setHIF(bridge.HIFDSPAck, cmd)
	case bridge.CmdIdle:
		if d.round == roundSend {
			n := min(int(d.hif(bridge.HIFLength)), bridgeDataSize)
			d.eng.Receive(d.readBytes(bridgeDataAddr, n))
		}
		d.round = roundNone
		d.syncCache()
		d.postAssert()
		d.setHIF(bridge.HIFDSPAck, cmd)
	case bridge.CmdSendData:
		d.round = roundSend
		d.setHIF(bridge.HIFAddress, bridgeDataAddr)
		d.setHIF(bridge.HIFLength, uint32(min(d.eng.Inbound(), bridgeDataSize)))
		d.setHIF(bridge.HIFDSPAck, cmd)
	case bridge.CmdGetData:
		want := min(int(d.hif(bridge.HIFLength)), bridgeDataSize)
		out := d.eng.Transmit(want)
		d.writeBytes(bridgeDataAddr, out)
		d.setHIF(bridge.HIFAddress, bridgeDataAddr)
		d.setHIF(bridge.HIFLength, uint32(len(out)))
		d.setHIF(bridge.HIFDSPAck, cmd)
	case bridge.CmdReset:
		d.round = roundNone
		d.setHIF(bridge.HIFDSPAck, cmd)
	}
}
