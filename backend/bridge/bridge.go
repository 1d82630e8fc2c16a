package bridge

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ardnew/softhpi/backend"
	"github.com/ardnew/softhpi/cache"
	"github.com/ardnew/softhpi/firmware"
	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/hpi"
	"github.com/ardnew/softhpi/pkg"
)

const kind = backend.KindBridge

// MaxDSPs is the number of DSPs behind one bridge.
const MaxDSPs = 2

// Reset timing.
const (
	resetPulse  = 10 * time.Millisecond
	resetSettle = 10 * time.Millisecond
)

// Bridge timeouts across all adapters.
var (
	readErrors  atomic.Uint64
	writeErrors atomic.Uint64
)

// BridgeErrors returns the bridge timeouts seen on reads and writes.
func BridgeErrors() (reads, writes uint64) {
	return readErrors.Load(), writeErrors.Load()
}

type dspState struct {
	present  bool
	family   firmware.Family
	hpia     uint32
	hpiaOK   bool
	msgAddr  uint32
	respAddr uint32
}

// Backend talks to up to two DSPs through their HPI ports behind a PCI
// bridge.
type Backend struct {
	regs  hal.Window
	hpi   hal.Window
	ids   hal.IDs
	opts  backend.Options
	dsps  [MaxDSPs]dspState
	cache *cache.Cache
	stats backend.Stats

	cacheAddr uint32 // DSP 0 address of the control cache region

	// Bridge counters at the last synthesized assert.
	reportedReads  uint64
	reportedWrites uint64
}

var _ backend.Backend = (*Backend)(nil)

// New returns a backend for the adapter at res.
func New(res *hal.BusResource, opts backend.Options) (*Backend, error) {
	regs, port := res.Window(0), res.Window(1)
	if regs == nil || regs.Size() < RegsSize || port == nil || port.Size() < HPISize {
		return nil, fmt.Errorf("bridge: %s: windows missing: %w", res.Name, pkg.ErrInvalidParameter)
	}
	return &Backend{regs: regs, hpi: port, ids: res.IDs, opts: opts.Normalize()}, nil
}

// Stats returns the backend counters.
func (b *Backend) Stats() backend.Stats {
	return b.stats
}

// NumDSPs returns the number of DSPs found at boot.
func (b *Backend) NumDSPs() int {
	n := 0
	for _, d := range b.dsps {
		if d.present {
			n++
		}
	}
	return n
}

// Cache returns the control cache, or nil before boot.
func (b *Backend) Cache() *cache.Cache {
	return b.cache
}

// =============================================================================
// Bridged Access
// =============================================================================

// access performs one HPI port access, retrying while the bridge reports a
// timeout.
func (b *Backend) access(write bool, off, v uint32) (uint32, error) {
	for i := 0; i < b.opts.BridgeRetries; i++ {
		var r uint32
		if write {
			b.hpi.Write32(off, v)
		} else {
			r = b.hpi.Read32(off)
		}
		if b.regs.Read32(RegIntStatus)&IntHPITimeout == 0 {
			return r, nil
		}
		b.regs.Write32(RegIntStatus, IntHPITimeout)
		if write {
			writeErrors.Add(1)
		} else {
			readErrors.Add(1)
		}
	}
	return 0, pkg.ErrBridge
}

func (b *Backend) read(dsp int, reg uint32) (uint32, error) {
	return b.access(false, uint32(dsp)*HPIStride+reg, 0)
}

func (b *Backend) write(dsp int, reg, v uint32) error {
	_, err := b.access(true, uint32(dsp)*HPIStride+reg, v)
	return err
}

func (b *Backend) setAddress(dsp int, addr uint32) error {
	d := &b.dsps[dsp]
	if d.hpiaOK && d.hpia == addr {
		return nil
	}
	if err := b.write(dsp, RegHPIA, addr); err != nil {
		d.hpiaOK = false
		return err
	}
	d.hpia, d.hpiaOK = addr, true
	return nil
}

func (b *Backend) readWord(dsp int, addr uint32) (uint32, error) {
	if err := b.setAddress(dsp, addr); err != nil {
		return 0, err
	}
	return b.read(dsp, RegHPID)
}

func (b *Backend) writeWord(dsp int, addr, v uint32) error {
	if err := b.setAddress(dsp, addr); err != nil {
		return err
	}
	return b.write(dsp, RegHPID, v)
}

// writeBlock writes words in chunks, setting the address before each one.
func (b *Backend) writeBlock(dsp int, addr uint32, words []uint32) error {
	for len(words) > 0 {
		n := min(len(words), b.opts.WriteChunk)
		if err := b.setAddress(dsp, addr); err != nil {
			return err
		}
		for _, w := range words[:n] {
			if err := b.write(dsp, RegHPIDA, w); err != nil {
				b.dsps[dsp].hpiaOK = false
				return err
			}
		}
		addr += uint32(4 * n)
		words = words[n:]
		b.dsps[dsp].hpia = addr
	}
	return nil
}

// readBlock reads n words in chunks.
func (b *Backend) readBlock(dsp int, addr uint32, n int) ([]uint32, error) {
	words := make([]uint32, 0, n)
	for len(words) < n {
		c := min(n-len(words), b.opts.ReadChunk)
		if err := b.setAddress(dsp, addr); err != nil {
			return nil, err
		}
		for i := 0; i < c; i++ {
			w, err := b.read(dsp, RegHPIDA)
			if err != nil {
				b.dsps[dsp].hpiaOK = false
				return nil, err
			}
			words = append(words, w)
		}
		addr += uint32(4 * c)
		b.dsps[dsp].hpia = addr
	}
	return words, nil
}

func (b *Backend) interrupt(dsp int) error {
	return b.write(dsp, RegHPIC, HPICHWOB|HPICDSPINT)
}

// hostCommand writes host_cmd and interrupts the DSP.
func (b *Backend) hostCommand(dsp int, cmd uint32) error {
	if err := b.writeWord(dsp, HIFAddr+HIFHostCmd, cmd); err != nil {
		return err
	}
	return b.interrupt(dsp)
}

func (b *Backend) waitAck(dsp int, want uint32, limit int) (bool, error) {
	var err error
	ok := b.opts.Spin(limit, func() bool {
		var v uint32
		v, err = b.readWord(dsp, HIFAddr+HIFDSPAck)
		return err != nil || v == want
	})
	return ok && err == nil, err
}

// step labels a failure with its phase and step.
func step(phase pkg.Phase, name string, dsp int, err error) error {
	if err == nil {
		return nil
	}
	var e *pkg.Error
	if errors.As(err, &e) {
		return err
	}
	c := pkg.CategoryTransport
	switch {
	case errors.Is(err, pkg.ErrResponseMismatch), errors.Is(err, pkg.ErrResponseSize),
		errors.Is(err, pkg.ErrDataSize), errors.Is(err, pkg.ErrProtocol):
		c = pkg.CategoryProtocol
	case phase == pkg.PhaseBoot && !errors.Is(err, pkg.ErrBridge):
		c = pkg.CategoryBoot
	}
	return backend.Fault(kind, c, phase, name, dsp, err)
}

func (b *Backend) ack(dsp int, want uint32, limit int, phase pkg.Phase, name string) error {
	ok, err := b.waitAck(dsp, want, limit)
	if err != nil {
		return step(phase, name, dsp, err)
	}
	if !ok {
		return backend.Timeout(kind, phase, name, dsp)
	}
	return nil
}

// =============================================================================
// Exchange
// =============================================================================

func (b *Backend) checkDSP(dsp int) error {
	if dsp < 0 || dsp >= MaxDSPs || !b.dsps[dsp].present {
		return fmt.Errorf("bridge: dsp %d: %w", dsp, pkg.ErrInvalidParameter)
	}
	return nil
}

// Exchange implements backend.Backend.
func (b *Backend) Exchange(dsp int, m *hpi.Message) (*hpi.Response, error) {
	r := hpi.NewResponse(m)
	if err := b.checkDSP(dsp); err != nil {
		return backend.ErrorResponse(r, err), err
	}
	if m.Function == hpi.AdapterGetAssert {
		if err := b.getAssert(r); err != nil {
			return backend.ErrorResponse(r, err), err
		}
		return r, nil
	}
	if dsp == 0 && b.cache != nil && m.Function == hpi.ControlGetState {
		if err := b.refreshCache(); err != nil {
			pkg.LogWarn(pkg.ComponentCache, "cache refresh failed",
				"backend", kind.String(),
				"error", err)
		} else if b.cache.Check(m, r) {
			return r, nil
		}
	}

	req, err := m.MarshalBinary()
	if err != nil {
		return backend.ErrorResponse(r, err), err
	}
	resync := func() error { return b.resync(dsp) }
	err = backend.Recover(kind, &b.stats, func() error { return b.sequence(dsp, req, m, r) }, resync)
	if err != nil {
		return backend.ErrorResponse(r, err), err
	}
	b.stats.Exchanges++
	if dsp == 0 && b.cache != nil {
		b.cache.Sync(m, r)
	}

	if r.Error != hpi.ErrorNone {
		return r, nil
	}
	switch dir, data := backend.DataPhase(m); dir {
	case backend.DirToDSP:
		err = backend.Recover(kind, &b.stats, func() error { return b.sendData(dsp, data) }, resync)
	case backend.DirFromDSP:
		err = backend.Recover(kind, &b.stats, func() error {
			n, err := b.getData(dsp, data)
			if err != nil {
				return err
			}
			return backend.CheckDataSize(kind, dsp, m, len(data), n)
		}, resync)
	}
	if err != nil {
		return backend.ErrorResponse(r, err), err
	}
	return r, nil
}

// buffers returns the message and response buffer addresses, reading them
// from the DSP on first use.
func (b *Backend) buffers(dsp int) (msg, resp uint32, err error) {
	d := &b.dsps[dsp]
	if d.msgAddr != 0 && d.respAddr != 0 {
		return d.msgAddr, d.respAddr, nil
	}
	if d.msgAddr, err = b.readWord(dsp, HIFAddr+HIFMsgAddr); err != nil {
		return 0, 0, err
	}
	if d.respAddr, err = b.readWord(dsp, HIFAddr+HIFRespAddr); err != nil {
		return 0, 0, err
	}
	if d.msgAddr == 0 || d.respAddr == 0 {
		return 0, 0, pkg.ErrProtocol
	}
	return d.msgAddr, d.respAddr, nil
}

func (b *Backend) sequence(dsp int, req []byte, m *hpi.Message, r *hpi.Response) error {
	send, get := pkg.PhaseSend, pkg.PhaseGet
	if err := b.ack(dsp, CmdIdle, b.opts.IdleSpin, send, backend.StepWaitIdle); err != nil {
		return err
	}
	msgAddr, respAddr, err := b.buffers(dsp)
	if err != nil {
		return step(send, backend.StepWriteBlock, dsp, err)
	}
	if err := b.writeBlock(dsp, msgAddr, hpi.Words(req)); err != nil {
		return step(send, backend.StepWriteBlock, dsp, err)
	}

	// Once GET_RESP is posted the DSP may already have run the message.
	if err := b.hostCommand(dsp, CmdGetResp); err != nil {
		return step(get, backend.StepHostCommand, dsp, err)
	}
	if err := b.ack(dsp, CmdGetResp, b.opts.AckSpin, get, backend.StepWaitAck); err != nil {
		return err
	}

	first, err := b.readWord(dsp, respAddr)
	if err != nil {
		return step(get, backend.StepReadLength, dsp, err)
	}
	size := int(first & 0xFFFF)
	if size < hpi.ResponseHeaderSize || size > hpi.ResponseSize(m.Object) {
		return step(get, backend.StepReadLength, dsp, pkg.ErrResponseSize)
	}
	words, err := b.readBlock(dsp, respAddr, (size+3)/4)
	if err != nil {
		return step(get, backend.StepReadBlock, dsp, err)
	}
	if err := b.hostCommand(dsp, CmdIdle); err != nil {
		return step(get, backend.StepHostCommand, dsp, err)
	}
	return step(get, backend.StepValidate, dsp, backend.Decode(m, r, hpi.Bytes(words)[:size]))
}

func (b *Backend) resync(dsp int) error {
	phase := pkg.PhaseResync
	if err := b.hostCommand(dsp, CmdReset); err != nil {
		return step(phase, backend.StepReset, dsp, err)
	}
	if err := b.ack(dsp, CmdReset, b.opts.AckSpin, phase, backend.StepReset); err != nil {
		return err
	}
	if err := b.hostCommand(dsp, CmdIdle); err != nil {
		return step(phase, backend.StepHostCommand, dsp, err)
	}
	return b.ack(dsp, CmdIdle, b.opts.IdleSpin, phase, backend.StepWaitIdle)
}

// =============================================================================
// Data Phases
// =============================================================================

// SendData implements backend.Backend.
func (b *Backend) SendData(dsp int, data []byte) error {
	if err := b.checkDSP(dsp); err != nil {
		return err
	}
	return backend.Recover(kind, &b.stats, func() error { return b.sendData(dsp, data) },
		func() error { return b.resync(dsp) })
}

// GetData implements backend.Backend.
func (b *Backend) GetData(dsp int, data []byte) error {
	if err := b.checkDSP(dsp); err != nil {
		return err
	}
	return backend.Recover(kind, &b.stats, func() error {
		n, err := b.getData(dsp, data)
		if err == nil && n != len(data) {
			err = backend.Fault(kind, pkg.CategoryProtocol, pkg.PhaseData, backend.StepDataSize, dsp, pkg.ErrDataSize)
		}
		return err
	}, func() error { return b.resync(dsp) })
}

// sendData moves data in rounds sized by the DSP's buffer.
func (b *Backend) sendData(dsp int, data []byte) error {
	phase := pkg.PhaseData
	for len(data) > 0 {
		if err := b.ack(dsp, CmdIdle, b.opts.IdleSpin, phase, backend.StepWaitIdle); err != nil {
			return err
		}
		if err := b.hostCommand(dsp, CmdSendData); err != nil {
			return step(phase, backend.StepHostCommand, dsp, err)
		}
		if err := b.ack(dsp, CmdSendData, b.opts.AckSpin, phase, backend.StepWaitAck); err != nil {
			return err
		}
		addr, err := b.readWord(dsp, HIFAddr+HIFAddress)
		if err != nil {
			return step(phase, backend.StepReadLength, dsp, err)
		}
		room, err := b.readWord(dsp, HIFAddr+HIFLength)
		if err != nil {
			return step(phase, backend.StepReadLength, dsp, err)
		}
		if room == 0 {
			return step(phase, backend.StepReadLength, dsp, pkg.ErrDataSize)
		}
		n := min(len(data), int(room))
		if err := b.writeBlock(dsp, addr, hpi.Words(data[:n])); err != nil {
			return step(phase, backend.StepWriteBlock, dsp, err)
		}
		if err := b.writeWord(dsp, HIFAddr+HIFLength, uint32(n)); err != nil {
			return step(phase, backend.StepWriteLength, dsp, err)
		}
		if err := b.hostCommand(dsp, CmdIdle); err != nil {
			return step(phase, backend.StepHostCommand, dsp, err)
		}
		data = data[n:]
	}
	return nil
}

// getData returns the number of bytes the DSP supplied.
func (b *Backend) getData(dsp int, data []byte) (int, error) {
	phase := pkg.PhaseData
	total := 0
	for total < len(data) {
		if err := b.ack(dsp, CmdIdle, b.opts.IdleSpin, phase, backend.StepWaitIdle); err != nil {
			return total, err
		}
		if err := b.writeWord(dsp, HIFAddr+HIFLength, uint32(len(data)-total)); err != nil {
			return total, step(phase, backend.StepWriteLength, dsp, err)
		}
		if err := b.hostCommand(dsp, CmdGetData); err != nil {
			return total, step(phase, backend.StepHostCommand, dsp, err)
		}
		if err := b.ack(dsp, CmdGetData, b.opts.AckSpin, phase, backend.StepWaitAck); err != nil {
			return total, err
		}
		addr, err := b.readWord(dsp, HIFAddr+HIFAddress)
		if err != nil {
			return total, step(phase, backend.StepReadLength, dsp, err)
		}
		n, err := b.readWord(dsp, HIFAddr+HIFLength)
		if err != nil {
			return total, step(phase, backend.StepReadLength, dsp, err)
		}
		if int(n) > len(data)-total {
			return total, step(phase, backend.StepReadLength, dsp, pkg.ErrDataSize)
		}
		if n > 0 {
			words, err := b.readBlock(dsp, addr, (int(n)+3)/4)
			if err != nil {
				return total, step(phase, backend.StepReadBlock, dsp, err)
			}
			copy(data[total:], hpi.Bytes(words)[:n])
		}
		if err := b.hostCommand(dsp, CmdIdle); err != nil {
			return total, step(phase, backend.StepHostCommand, dsp, err)
		}
		total += int(n)
		if n == 0 {
			break
		}
	}
	return total, nil
}

// =============================================================================
// Control Cache and Asserts
// =============================================================================

// refreshCache reloads the cache region if the DSP marked it dirty.
func (b *Backend) refreshCache() error {
	dirty, err := b.readWord(0, HIFAddr+HIFCacheDirty)
	if err != nil || dirty == 0 {
		return err
	}
	region := b.cache.Region()
	words, err := b.readBlock(0, b.cacheAddr, (len(region)+3)/4)
	if err != nil {
		return err
	}
	b.cache.Refresh(hpi.Bytes(words))
	return b.writeWord(0, HIFAddr+HIFCacheDirty, 0)
}

// getAssert reports a pending DSP assert, or a synthesized one when the
// bridge has timed out since the last report.
func (b *Backend) getAssert(r *hpi.Response) error {
	r.Error = hpi.ErrorNone
	for dsp := range b.dsps {
		if !b.dsps[dsp].present {
			continue
		}
		count, err := b.readWord(dsp, HIFAddr+HIFAssertCount)
		if err != nil {
			return step(pkg.PhaseGet, backend.StepReadBlock, dsp, err)
		}
		if count == 0 {
			continue
		}
		words, err := b.readBlock(dsp, HIFAddr+HIFAssertLine, 2+4)
		if err != nil {
			return step(pkg.PhaseGet, backend.StepReadBlock, dsp, err)
		}
		a := &r.Adapter.Assert
		a.Count = uint16(count)
		a.DSPIndex = uint16(dsp)
		a.Line = words[0]
		a.Param = words[1]
		copy(a.Text[:], hpi.Bytes(words[2:]))
		a.Text[len(a.Text)-1] = 0
		return b.writeWord(dsp, HIFAddr+HIFAssertCount, 0)
	}

	reads, writes := BridgeErrors()
	if reads != b.reportedReads || writes != b.reportedWrites {
		b.reportedReads, b.reportedWrites = reads, writes
		a := &r.Adapter.Assert
		a.Count = 1
		a.Line = uint32(reads)
		a.Param = uint32(writes)
		a.SetMessage("bridge timeout")
	}
	return nil
}

// =============================================================================
// Boot
// =============================================================================

// dspMemory adapts one DSP's HPI port to backend.Memory.
type dspMemory struct {
	b   *Backend
	dsp int
}

func (m dspMemory) ReadWord(addr uint32) (uint32, error)  { return m.b.readWord(m.dsp, addr) }
func (m dspMemory) WriteWord(addr uint32, v uint32) error { return m.b.writeWord(m.dsp, addr, v) }

// Boot implements backend.Backend.
func (b *Backend) Boot(src firmware.Source) error {
	boot := pkg.PhaseBoot
	b.dsps = [MaxDSPs]dspState{}
	b.cache = nil

	b.regs.Write32(RegReset, 1<<MaxDSPs-1)
	b.opts.Sleep(resetPulse)
	b.regs.Write32(RegReset, 0)
	b.opts.Sleep(resetSettle)
	b.regs.Write32(RegIntStatus, IntHPITimeout)

	family := firmware.Family(b.ids.SubsystemDevice) & FamilyMask
	for dsp := 0; dsp < MaxDSPs && family != 0; dsp++ {
		b.dsps[dsp] = dspState{present: true, family: family}
		if err := b.bootDSP(dsp, src); err != nil {
			return err
		}
		if dsp == 0 {
			next, err := b.readWord(0, HIFAddr+HIFDSP1Family)
			if err != nil {
				return step(boot, backend.StepFamily, 0, err)
			}
			family = firmware.Family(next)
		}
	}

	if err := b.pldTest(); err != nil {
		return err
	}
	b.reportedReads, b.reportedWrites = BridgeErrors()
	return b.initCache()
}

func (b *Backend) bootDSP(dsp int, src firmware.Source) error {
	boot := pkg.PhaseBoot
	mem := dspMemory{b, dsp}
	family := b.dsps[dsp].family

	if err := b.write(dsp, RegHPIC, HPICHWOB); err != nil {
		return step(boot, backend.StepInterrupt, dsp, err)
	}
	if err := backend.WalkingBits(mem, InternalTestAddr, InternalTestWords); err != nil {
		return step(boot, backend.StepInternalMem, dsp, err)
	}
	for _, r := range EMIFConfig {
		if err := mem.WriteWord(r.Addr, r.Value); err != nil {
			return step(boot, backend.StepEMIF, dsp, err)
		}
		v, err := mem.ReadWord(r.Addr)
		if err != nil {
			return step(boot, backend.StepEMIF, dsp, err)
		}
		if v != r.Value {
			return step(boot, backend.StepEMIF, dsp,
				fmt.Errorf("emif register %#08x: wrote %#08x, read %#08x: %w", r.Addr, r.Value, v, pkg.ErrMemoryTest))
		}
	}
	if err := backend.Sparse(mem, SDRAMBase, SDRAMSize); err != nil {
		return step(boot, backend.StepExternalMem, dsp, err)
	}

	code, err := src.Open(family)
	if err != nil {
		return step(boot, backend.StepDownload, dsp, err)
	}
	defer code.Close()
	err = backend.Download(code, func(seg firmware.Segment) error {
		return b.writeBlock(dsp, seg.Address, seg.Words)
	})
	if err != nil {
		return step(boot, backend.StepDownload, dsp, err)
	}
	err = backend.Verify(code, func(addr uint32, n int) ([]uint32, error) {
		return b.readBlock(dsp, addr, n)
	})
	if err != nil {
		return step(boot, backend.StepVerify, dsp, err)
	}

	if err := b.writeWord(dsp, HIFAddr+HIFHostCmd, 0); err != nil {
		return step(boot, backend.StepStart, dsp, err)
	}
	if err := b.interrupt(dsp); err != nil {
		return step(boot, backend.StepStart, dsp, err)
	}
	var cmd uint32
	ok := b.opts.Spin(b.opts.BootSpin, func() bool {
		cmd, err = b.readWord(dsp, HIFAddr+HIFHostCmd)
		return err != nil || cmd != 0
	})
	if err != nil {
		return step(boot, backend.StepStart, dsp, err)
	}
	if !ok {
		return backend.Timeout(kind, boot, backend.StepStart, dsp)
	}
	pkg.LogInfo(pkg.ComponentBoot, "dsp running",
		"backend", kind.String(),
		"dsp", dsp,
		"family", family.String(),
		"version", code.Version)
	return nil
}

// pldTest checks the PLD revision and its loop-back register.
func (b *Backend) pldTest() error {
	fail := func(err error) error {
		return backend.Fault(kind, pkg.CategoryBoot, pkg.PhaseBoot, backend.StepPLD, -1, err)
	}
	if rev := b.regs.Read32(RegPLDRev) & PLDRevisionMask; rev == 0 || rev == PLDRevisionMask {
		return fail(fmt.Errorf("revision %#04x: %w", rev, pkg.ErrPLD))
	}
	for _, p := range []uint32{0x00000000, 0xFFFFFFFF, 0x5A5A5A5A, 0xA5A5A5A5} {
		b.regs.Write32(RegPLDLoop, p)
		if v := b.regs.Read32(RegPLDLoop); v != p {
			return fail(fmt.Errorf("loop-back wrote %#08x, read %#08x: %w", p, v, pkg.ErrPLD))
		}
	}
	return nil
}

func (b *Backend) initCache() error {
	count, err := b.readWord(0, HIFAddr+HIFCacheCount)
	if err != nil {
		return step(pkg.PhaseBoot, backend.StepNegotiate, 0, err)
	}
	size, err := b.readWord(0, HIFAddr+HIFCacheSize)
	if err != nil {
		return step(pkg.PhaseBoot, backend.StepNegotiate, 0, err)
	}
	if count == 0 || size == 0 {
		return nil
	}
	if b.cacheAddr, err = b.readWord(0, HIFAddr+HIFCacheAddr); err != nil {
		return step(pkg.PhaseBoot, backend.StepNegotiate, 0, err)
	}
	b.cache = cache.New(int(count), make([]byte, size))
	if err := b.refreshCache(); err != nil {
		return step(pkg.PhaseBoot, backend.StepNegotiate, 0, err)
	}
	pkg.LogDebug(pkg.ComponentCache, "control cache found",
		"backend", kind.String(),
		"controls", count,
		"bytes", size)
	return nil
}
