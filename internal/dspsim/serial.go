package dspsim

import (
	"sync"

	"github.com/ardnew/softhpi/backend"
	"github.com/ardnew/softhpi/backend/serial"
	"github.com/ardnew/softhpi/firmware"
	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/hpi"
	"github.com/ardnew/softhpi/pkg"
)

// RingUnits is the size of the simulated DSP's host transfer rings.
const RingUnits = 64

type serialMode int

const (
	serialReset serialMode = iota
	serialBootROM
	serialLoader
	serialRunning
)

type serialPhase int

const (
	phaseNone serialPhase = iota
	phaseMsgLen
	phaseMsgData
	phaseDataLen
	phaseDataIn
	phaseGetDataLen
	phaseOut
)

// Serial models the host interface of a single-DSP adapter with a serial
// FIFO host port. It implements hal.Window.
type Serial struct {
	mu     sync.Mutex
	eng    *Engine
	faults *Faults
	code   uint32 // Family code the bootloader reports

	mode  serialMode
	flags uint32
	state uint32
	tx    []uint32

	// boot
	boot   []uint32
	record []uint32
	memory map[segmentAddr]uint32

	// transfer
	phase    serialPhase
	expect   int
	dataLen  int
	in       []uint16
	out      []uint16
	rxPos    int
	txPos    int
	resp     []byte
	stuck    bool
	hcvrHold bool   // A command is waiting for the DSP to wake
	held     uint32 // Vector of the waiting command
}

type segmentAddr struct {
	typ  firmware.SegmentType
	addr uint32
}

var _ hal.Window = (*Serial)(nil)

// NewSerial returns a serial host interface model in front of eng. The
// bootloader reports familyCode, which must be at least
// serial.FamilyCodeMin.
func NewSerial(eng *Engine, faults *Faults, familyCode uint32) *Serial {
	return &Serial{
		eng:    eng,
		faults: faults,
		code:   familyCode,
		memory: make(map[segmentAddr]uint32),
	}
}

// Resource returns a bus resource exposing the model.
func (s *Serial) Resource(name string) *hal.BusResource {
	return &hal.BusResource{
		Name: name,
		IDs: hal.IDs{
			Vendor:          backend.VendorMotorola,
			Device:          backend.DeviceDSP56301,
			SubsystemVendor: backend.VendorAudioScience,
			SubsystemDevice: 0x5600 | uint16(s.code),
		},
		Windows: []hal.Window{s},
	}
}

// Family returns the firmware family the bootloader asks for.
func (s *Serial) Family() firmware.Family {
	return serial.FamilyBase | firmware.Family(s.code)
}

// Running reports whether downloaded firmware is running.
func (s *Serial) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode == serialRunning
}

// Loaded returns a word the loader stored in DSP memory.
func (s *Serial) Loaded(t firmware.SegmentType, addr uint32) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.memory[segmentAddr{t, addr}]
	return v, ok
}

// Size implements hal.Window.
func (s *Serial) Size() uint32 {
	return serial.WindowSize
}

// Read32 implements hal.Window.
func (s *Serial) Read32(off uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch off {
	case serial.RegHCTR:
		return s.flags << serial.HCTRHFShift
	case serial.RegHSTR:
		v := uint32(serial.HSTRTRDY | serial.HSTRHTRQ)
		if len(s.tx) > 0 {
			v |= serial.HSTRHRRQ
		}
		state := s.state
		if s.faults.hung() {
			state = serial.DSPBusy
		}
		v |= state << serial.HSTRHFShift
		if n := s.faults.unstable(); n != 0 {
			v ^= (n%serial.FlagsMask + 1) << serial.HSTRHFShift
		}
		return v
	case serial.RegHCVR:
		if s.faults.unstable() != 0 {
			return 0
		}
		if s.hcvrHold && !s.faults.hung() {
			s.hcvrHold = false
			s.command(s.held)
		}
		v := uint32(serial.HCVRDiff)
		if s.hcvrHold {
			v |= serial.HCVRHC
		}
		return v
	case serial.RegHRXS:
		if len(s.tx) == 0 {
			return 0
		}
		v := s.tx[0]
		s.tx = s.tx[1:]
		return v
	}
	return 0xFFFFFFFF
}

// Write32 implements hal.Window.
func (s *Serial) Write32(off uint32, v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch off {
	case serial.RegReset:
		s.reset(v)
	case serial.RegHCTR:
		s.setFlags((v >> serial.HCTRHFShift) & serial.FlagsMask)
	case serial.RegHCVR:
		if v&serial.HCVRHC == 0 {
			return
		}
		if s.faults.hung() {
			s.hcvrHold = true
			s.held = (v >> serial.HCVRVectorShift) & serial.HCVRVectorMask
			return
		}
		s.command((v >> serial.HCVRVectorShift) & serial.HCVRVectorMask)
	case serial.RegHTXR:
		s.receive(v & serial.WordMask)
	}
}

func (s *Serial) reset(v uint32) {
	if v&serial.ResetAssert != 0 {
		s.mode = serialReset
		return
	}
	if v&serial.ResetHostBoot == 0 {
		return
	}
	s.mode = serialBootROM
	s.state = serial.DSPBusy
	s.flags = 0
	s.tx = nil
	s.boot = nil
	s.record = nil
	s.hcvrHold = false
	s.resetTransfer()
}

func (s *Serial) resetTransfer() {
	s.phase = phaseNone
	s.expect = 0
	s.in = nil
	s.out = nil
	s.resp = nil
	s.rxPos = 0
	s.txPos = 0
	s.stuck = false
	s.tx = nil
}

func (s *Serial) receive(w uint32) {
	switch s.mode {
	case serialBootROM:
		s.boot = append(s.boot, w)
		if len(s.boot) >= 2 && len(s.boot) == int(s.boot[0])+2 {
			s.mode = serialLoader
			s.state = s.code
			pkg.LogDebug(pkg.ComponentSim, "bootloader started",
				"words", s.boot[0],
				"family", s.Family().String())
		}
	case serialLoader:
		s.loaderWord(w)
	case serialRunning:
		s.dataWord(w)
	}
}

// loaderWord collects (length, address, type, words) records.
func (s *Serial) loaderWord(w uint32) {
	if len(s.record) == 0 && w == serial.WordMask {
		s.mode = serialRunning
		s.state = serial.DSPIdle
		pkg.LogDebug(pkg.ComponentSim, "firmware started",
			"words", len(s.memory))
		return
	}
	s.record = append(s.record, w)
	if len(s.record) < 3 || len(s.record) < int(s.record[0])+3 {
		return
	}
	addr, typ := s.record[1], firmware.SegmentType(s.record[2])
	for i, v := range s.record[3:] {
		s.memory[segmentAddr{typ, addr + uint32(4*i)}] = v
	}
	s.record = nil
}

func (s *Serial) before(pos int) uint32 {
	return uint32(RingUnits - pos)
}

func (s *Serial) dataWord(w uint32) {
	switch s.phase {
	case phaseMsgLen:
		if s.faults.drop() {
			s.phase = phaseNone
			return
		}
		s.expect = int(w)
		s.in = s.in[:0]
		s.phase = phaseMsgData
		s.state = serial.DSPCmdOK
		s.tx = append(s.tx, s.before(s.rxPos))
	case phaseDataLen:
		s.dataLen = int(w)
		s.expect = (int(w) + 1) / 2
		s.in = s.in[:0]
		s.phase = phaseDataIn
		s.state = serial.DSPCmdOK
		s.tx = append(s.tx, s.before(s.rxPos))
	case phaseMsgData, phaseDataIn:
		// Words past the wrap point are lost until the host wraps.
		if s.expect == 0 || s.rxPos >= RingUnits {
			return
		}
		s.in = append(s.in, uint16(w))
		s.expect--
		s.rxPos++
	case phaseGetDataLen:
		data := s.eng.Transmit(int(w))
		s.state = serial.DSPDataReady
		s.startOut(uint32(len(data)), hpi.Units(data))
	}
}

// startOut queues a length word followed by the first ring segment.
func (s *Serial) startOut(length uint32, units []uint16) {
	s.phase = phaseOut
	s.out = units
	s.tx = append(s.tx, length)
	s.pushOut()
}

func (s *Serial) pushOut() {
	before := s.before(s.txPos)
	s.tx = append(s.tx, before)
	n := min(len(s.out), int(before))
	for _, u := range s.out[:n] {
		s.tx = append(s.tx, uint32(u))
	}
	s.out = s.out[n:]
	s.txPos += n
}

func (s *Serial) setFlags(f uint32) {
	s.flags = f
	if s.mode != serialRunning {
		return
	}
	switch f {
	case serial.HostIdle:
		s.phase = phaseNone
		if !s.stuck {
			s.state = serial.DSPIdle
		}
	case serial.HostSendMsg:
		s.phase = phaseMsgLen
	case serial.HostSendData:
		s.phase = phaseDataLen
	case serial.HostGetData:
		s.phase = phaseGetDataLen
	case serial.HostGetResp:
		if s.resp == nil {
			return
		}
		if s.faults.ackLost() {
			s.resp = nil
			s.stuck = true
			s.state = serial.DSPBusy
			return
		}
		s.state = serial.DSPRespReady
		resp := s.resp
		s.resp = nil
		s.startOut(uint32(len(resp)+1)/2, hpi.Units(resp))
	}
}

func (s *Serial) command(vec uint32) {
	switch vec {
	case serial.VecReset:
		s.resetTransfer()
		if s.mode == serialRunning {
			s.state = serial.DSPIdle
		}
	case serial.VecRingWrap:
		switch s.phase {
		case phaseMsgData, phaseDataIn:
			s.rxPos = 0
			s.tx = append(s.tx, s.before(s.rxPos))
		case phaseOut:
			s.txPos = 0
			s.pushOut()
		}
	case serial.VecDMAStop:
		s.dmaStop()
	}
}

func (s *Serial) dmaStop() {
	switch s.phase {
	case phaseMsgData:
		if s.expect != 0 {
			return
		}
		s.phase = phaseNone
		s.resp = s.eng.HandleBytes(hpi.UnitBytes(s.in))
		s.state = serial.DSPIdle
	case phaseDataIn:
		if s.expect != 0 {
			return
		}
		s.phase = phaseNone
		b := hpi.UnitBytes(s.in)
		s.eng.Receive(b[:min(len(b), s.dataLen)])
		s.state = serial.DSPIdle
	case phaseOut:
		s.phase = phaseNone
		s.tx = nil
		s.out = nil
	}
}

// =============================================================================
// Firmware
// =============================================================================

// SerialLoader returns the bootloader image: a word count, a load address
// and that many 24-bit words.
func SerialLoader() []byte {
	words := []uint32{8, 0x100}
	for i := uint32(0); i < 8; i++ {
		words = append(words, 0x0C0000|i)
	}
	return firmware.NewCode(serial.FamilyLoader, 1, words).Encode()
}

// Program returns a small firmware image of 24-bit words for family f.
func Program(f firmware.Family, version uint32) []byte {
	code := firmware.Segment{Address: 0x000, Type: firmware.SegmentCode}
	for i := uint32(0); i < 96; i++ {
		code.Words = append(code.Words, (uint32(f)*31+i*0x1357)&serial.WordMask)
	}
	data := firmware.Segment{Address: 0x400, Type: firmware.SegmentXData,
		Words: []uint32{0x000001, 0x000002, 0x000003, 0x000004}}
	return firmware.Build(f, version, code, data)
}

// SerialFirmware returns a firmware source holding the loader and the
// program for s.
func (s *Serial) SerialFirmware() *firmware.Memory {
	src := firmware.NewMemory()
	src.Add(serial.FamilyLoader, SerialLoader())
	src.Add(s.Family(), Program(s.Family(), 1))
	return src
}
