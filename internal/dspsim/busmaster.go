package dspsim

import (
	"encoding/binary"
	"sync"

	"github.com/ardnew/softhpi/backend"
	"github.com/ardnew/softhpi/backend/busmaster"
	"github.com/ardnew/softhpi/firmware"
	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/hal/mem"
	"github.com/ardnew/softhpi/hpi"
	"github.com/ardnew/softhpi/pkg"
)

// BusMasterFamily is the firmware family of the simulated bus-mastering
// adapter.
const BusMasterFamily firmware.Family = 0x6200

// Buffers the simulated firmware asks the host for.
const (
	busMasterAsyncCount = 16
	busMasterAsyncSize  = busMasterAsyncCount * 16
	busMasterEEPROM     = 3 // Status reads before the bridge is configured
)

// BusMaster models a bus-mastering adapter: a paged DSP memory window, the
// bridge registers and firmware that works on host memory through the DMA
// allocator.
type BusMaster struct {
	mu     sync.Mutex
	faults *Faults
	eng    *Engine
	dma    *mem.Allocator

	hsr    uint32
	hdcr   uint32
	dspp   uint32
	eeprom int
	cfgErr bool

	memory    map[uint32]uint32
	stuck     map[uint32]uint32
	writes    int // Memory window writes since the last read
	dropped   int
	pldBroken bool

	running   bool
	iface     uint64
	cachePhys uint32
}

// NewBusMaster returns a bus-mastering adapter model in front of eng. dma
// provides host memory for the adapter and is how the firmware reaches it.
func NewBusMaster(faults *Faults, eng *Engine, dma *mem.Allocator) *BusMaster {
	return &BusMaster{
		faults: faults,
		eng:    eng,
		dma:    dma,
		eeprom: busMasterEEPROM,
		memory: make(map[uint32]uint32),
		stuck:  make(map[uint32]uint32),
	}
}

// Resource returns a bus resource exposing the model.
func (s *BusMaster) Resource(name string) *hal.BusResource {
	return &hal.BusResource{
		Name: name,
		IDs: hal.IDs{
			Vendor:          backend.VendorTI,
			Device:          backend.DeviceC6205,
			SubsystemVendor: backend.VendorAudioScience,
			SubsystemDevice: uint16(BusMasterFamily),
		},
		Windows: []hal.Window{busMemory{s}, busRegs{s}},
		DMA:     s.dma,
	}
}

// Firmware returns a source holding the DSP's image.
func (s *BusMaster) Firmware() *firmware.Memory {
	src := firmware.NewMemory()
	src.Add(BusMasterFamily, Program(BusMasterFamily, 3))
	return src
}

// StickBits forces bits of a DSP memory word to read as zero.
func (s *BusMaster) StickBits(addr, mask uint32) {
	s.mu.Lock()
	s.stuck[addr] = mask
	s.mu.Unlock()
}

// BreakPLD makes the PLD return a wrong signature.
func (s *BusMaster) BreakPLD() {
	s.mu.Lock()
	s.pldBroken = true
	s.mu.Unlock()
}

// FailConfig makes the bridge report a configuration error.
func (s *BusMaster) FailConfig() {
	s.mu.Lock()
	s.cfgErr = true
	s.mu.Unlock()
}

// Running reports whether the DSP has started its firmware.
func (s *BusMaster) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Released reports whether the host took the secondary DSP out of reset.
func (s *BusMaster) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.memory[busmaster.GPIOAddr]&busmaster.GPIORelease != 0
}

// Dropped returns the number of memory writes lost because the host did not
// read after every fourth write.
func (s *BusMaster) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Word returns a word of DSP memory.
func (s *BusMaster) Word(addr uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(addr)
}

// Pump runs the firmware's stream DMA once, as it would between host
// commands.
func (s *BusMaster) Pump() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ifc := s.ifBytes(); s.running && ifc != nil {
		s.pump(ifc)
	}
}

func (s *BusMaster) read(addr uint32) uint32 {
	if addr == busmaster.PLDAddr {
		if s.pldBroken {
			return 0
		}
		return busmaster.PLDSignature
	}
	return s.memory[addr] &^ s.stuck[addr]
}

// =============================================================================
// Windows
// =============================================================================

type busMemory struct{ s *BusMaster }

func (w busMemory) Size() uint32 { return busmaster.MemWindowSize }

func (w busMemory) Read32(off uint32) uint32 {
	s := w.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = 0
	return s.read(s.dspp<<busmaster.PageShift | off)
}

func (w busMemory) Write32(off uint32, v uint32) {
	s := w.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writes >= 4 {
		s.dropped++
		return
	}
	s.writes++
	s.memory[s.dspp<<busmaster.PageShift|off] = v
}

type busRegs struct{ s *BusMaster }

func (w busRegs) Size() uint32 { return busmaster.RegsSize }

func (w busRegs) Read32(off uint32) uint32 {
	s := w.s
	s.mu.Lock()
	defer s.mu.Unlock()
	switch off {
	case busmaster.RegHSR:
		v := s.hsr
		if s.eeprom > 0 {
			s.eeprom--
			v |= busmaster.HSREERead
		}
		if s.cfgErr {
			v |= busmaster.HSRCfgErr
		}
		return v
	case busmaster.RegHDCR:
		return s.hdcr
	case busmaster.RegDSPP:
		return s.dspp
	}
	return 0
}

func (w busRegs) Write32(off uint32, v uint32) {
	s := w.s
	s.mu.Lock()
	defer s.mu.Unlock()
	switch off {
	case busmaster.RegHSR:
		s.hsr &^= v
	case busmaster.RegHDCR:
		s.hdcr = v &^ busmaster.HDCRDSPINT
		if v&busmaster.HDCRWarmReset != 0 {
			s.running = false
			return
		}
		if v&busmaster.HDCRDSPINT != 0 {
			s.interrupt()
		}
	case busmaster.RegDSPP:
		s.dspp = v & busmaster.PageMask
	}
}

// =============================================================================
// DSP Firmware
// =============================================================================

// ifBytes returns the interface buffer in host memory.
func (s *BusMaster) ifBytes() []byte {
	if s.iface == 0 {
		return nil
	}
	buf, off, ok := s.dma.Lookup(s.iface)
	if !ok || len(buf)-off < busmaster.InterfaceSize {
		return nil
	}
	return buf[off : off+busmaster.InterfaceSize]
}

func le32(b []byte, off uint32) uint32 {
	return binary.LittleEndian.Uint32(b[off:])
}

func put32(b []byte, off, v uint32) {
	binary.LittleEndian.PutUint32(b[off:], v)
}

func (s *BusMaster) start() {
	s.iface = uint64(s.memory[busmaster.HostIfAddr])
	ifc := s.ifBytes()
	if ifc == nil {
		return
	}
	image, _ := s.eng.CacheImage()
	put32(ifc, busmaster.IfaceCacheSize, uint32(len(image)))
	put32(ifc, busmaster.IfaceCacheCount, uint32(s.eng.NumControls()))
	put32(ifc, busmaster.IfaceAsyncSize, busMasterAsyncSize)
	put32(ifc, busmaster.IfaceAsyncCount, busMasterAsyncCount)
	s.cachePhys = 0
	s.running = true
	s.ack(ifc, busmaster.CmdIdle)
	pkg.LogDebug(pkg.ComponentSim, "bus master dsp started",
		"interface", s.iface)
}

func (s *BusMaster) ack(ifc []byte, cmd uint32) {
	put32(ifc, busmaster.IfaceDSPAck, cmd)
	s.hsr |= busmaster.HSRIntSrc
}

func (s *BusMaster) interrupt() {
	if s.faults.hung() {
		return
	}
	if !s.running {
		s.start()
		return
	}
	ifc := s.ifBytes()
	if ifc == nil {
		return
	}
	s.attachCache(ifc)
	u := ifc[busmaster.IfaceUnion : busmaster.IfaceUnion+busmaster.UnionSize]

	switch cmd := le32(ifc, busmaster.IfaceHostCmd); cmd {
	case busmaster.CmdGetResp:
		if s.faults.drop() {
			return
		}
		size := min(int(binary.LittleEndian.Uint16(u)), busmaster.UnionSize)
		req := append([]byte(nil), u[:size]...)
		copy(u, s.eng.HandleBytes(req))
		s.observe(ifc, req)
		if s.faults.ackLost() {
			return
		}
		s.ack(ifc, cmd)
	case busmaster.CmdIdle:
		s.ack(ifc, cmd)
	case busmaster.CmdSendData:
		n := min(int(le32(ifc, busmaster.IfaceTransferSize)), busmaster.UnionSize)
		s.eng.Receive(u[:n])
		s.ack(ifc, cmd)
	case busmaster.CmdGetData:
		want := min(int(le32(ifc, busmaster.IfaceTransferSize)), busmaster.UnionSize)
		out := s.eng.Transmit(want)
		copy(u, out)
		put32(ifc, busmaster.IfaceTransferSize, uint32(len(out)))
		s.ack(ifc, cmd)
	case busmaster.CmdReset:
		s.ack(ifc, cmd)
	default:
		return
	}
	s.pump(ifc)
}

// attachCache starts mirroring the control cache into host memory once the
// host has placed a buffer for it.
func (s *BusMaster) attachCache(ifc []byte) {
	phys := le32(ifc, busmaster.IfaceCachePhys)
	if phys == 0 || phys == s.cachePhys {
		return
	}
	s.cachePhys = phys
	dma := s.dma
	s.eng.OnCacheChange(func(image []byte) {
		if buf, off, ok := dma.Lookup(uint64(phys)); ok {
			copy(buf[off:], image)
		}
	})
}

// observe resets a stream's status record when its buffer is granted or
// the stream is reset.
func (s *BusMaster) observe(ifc, req []byte) {
	var m hpi.Message
	if err := m.UnmarshalBinary(req); err != nil || m.ObjIndex >= busmaster.MaxStreams {
		return
	}
	rec := busmaster.StatusRecord(m.Object, int(m.ObjIndex))
	switch m.Function {
	case hpi.OStreamHostBufferAlloc, hpi.IStreamHostBufferAlloc:
		g, ok := s.eng.Granted(m.Object, int(m.ObjIndex))
		if !ok {
			return
		}
		put32(ifc, rec+busmaster.StatusBufferSize, g.Size)
	case hpi.OStreamReset, hpi.IStreamReset:
	default:
		return
	}
	put32(ifc, rec+busmaster.StatusDSPIndex, 0)
	put32(ifc, rec+busmaster.StatusHostIndex, 0)
	put32(ifc, rec+busmaster.StatusSamples, 0)
	put32(ifc, rec+busmaster.StatusAux, 0)
}

// pump moves stream data between granted host buffers and the streams.
func (s *BusMaster) pump(ifc []byte) {
	for _, obj := range []hpi.ObjectKind{hpi.ObjectOStream, hpi.ObjectIStream} {
		for i := 0; i < busmaster.MaxStreams; i++ {
			g, ok := s.eng.Granted(obj, i)
			if !ok {
				continue
			}
			buf, off, ok := s.dma.Lookup(uint64(g.PhysAddr))
			if !ok || len(buf)-off < int(g.Size) {
				continue
			}
			ring := buf[off : off+int(g.Size)]
			rec := busmaster.StatusRecord(obj, i)
			host, dsp := le32(ifc, rec+busmaster.StatusHostIndex), le32(ifc, rec+busmaster.StatusDSPIndex)

			var n int
			if obj == hpi.ObjectOStream {
				data := make([]byte, host-dsp)
				busmaster.ReadRing(data, ring, dsp)
				n = s.eng.Consume(i, data)
			} else {
				data := make([]byte, g.Size-(dsp-host))
				n = s.eng.Produce(i, data)
				busmaster.WriteRing(ring, dsp, data[:n])
			}
			put32(ifc, rec+busmaster.StatusDSPIndex, dsp+uint32(n))
			put32(ifc, rec+busmaster.StatusSamples, le32(ifc, rec+busmaster.StatusSamples)+uint32(n))
			put32(ifc, rec+busmaster.StatusState, uint32(s.eng.StreamState(obj, i)))
		}
	}
}
