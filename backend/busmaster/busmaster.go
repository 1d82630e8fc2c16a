package busmaster

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ardnew/softhpi/backend"
	"github.com/ardnew/softhpi/cache"
	"github.com/ardnew/softhpi/firmware"
	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/hpi"
	"github.com/ardnew/softhpi/pkg"
)

const kind = backend.KindBusMaster

// Reset timing.
const (
	resetPulse  = 10 * time.Millisecond
	resetSettle = 10 * time.Millisecond
)

// FamilyMask derives the DSP's firmware family from the subsystem device.
const FamilyMask firmware.Family = 0xFF00

// StatusRecord returns the offset of a stream's host buffer status record
// in the interface buffer.
func StatusRecord(obj hpi.ObjectKind, index int) uint32 {
	if obj == hpi.ObjectIStream {
		index += MaxStreams
	}
	return IfaceStatus + uint32(index)*StatusRecordSize
}

// WriteRing copies data into ring starting at index modulo the ring size.
// data must not be longer than ring.
func WriteRing(ring []byte, index uint32, data []byte) {
	pos := int(index % uint32(len(ring)))
	n := copy(ring[pos:], data)
	copy(ring, data[n:])
}

// ReadRing fills dst from ring starting at index modulo the ring size.
// dst must not be longer than ring.
func ReadRing(dst, ring []byte, index uint32) {
	pos := int(index % uint32(len(ring)))
	n := copy(dst, ring[pos:])
	copy(dst[n:], ring)
}

// hostBuffer is a stream buffer granted to the DSP.
type hostBuffer struct {
	buf        hal.DMABuffer
	needFormat bool // Next write pushes the stream format first
}

// Backend talks to a bus-mastering DSP through a paged memory window and an
// interface buffer in host memory.
type Backend struct {
	mem  hal.Window
	regs hal.Window
	dma  hal.Allocator
	ids  hal.IDs
	opts backend.Options

	page    uint32
	pageOK  bool
	pending int // Memory window writes since the last read

	iface    hal.DMABuffer
	cacheBuf hal.DMABuffer
	async    hal.DMABuffer
	cache    *cache.Cache
	ostreams [MaxStreams]*hostBuffer
	istreams [MaxStreams]*hostBuffer
	formats  [MaxStreams]hpi.Format // Last format each outstream accepted

	stats backend.Stats
}

var _ backend.Backend = (*Backend)(nil)

// New returns a backend for the adapter at res.
func New(res *hal.BusResource, opts backend.Options) (*Backend, error) {
	mem, regs := res.Window(0), res.Window(1)
	if mem == nil || mem.Size() < MemWindowSize || regs == nil || regs.Size() < RegsSize {
		return nil, fmt.Errorf("busmaster: %s: windows missing: %w", res.Name, pkg.ErrInvalidParameter)
	}
	if res.DMA == nil {
		return nil, fmt.Errorf("busmaster: %s: no DMA allocator: %w", res.Name, pkg.ErrInvalidParameter)
	}
	return &Backend{mem: mem, regs: regs, dma: res.DMA, ids: res.IDs, opts: opts.Normalize()}, nil
}

// Stats returns the backend counters.
func (b *Backend) Stats() backend.Stats {
	return b.stats
}

// Cache returns the control cache, or nil if the DSP has none.
func (b *Backend) Cache() *cache.Cache {
	return b.cache
}

// Close releases every DMA buffer. The backend must be booted again before
// further use.
func (b *Backend) Close() error {
	var errs []error
	free := func(buf hal.DMABuffer) {
		if buf != nil {
			if err := buf.Free(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	for i := range MaxStreams {
		if hb := b.ostreams[i]; hb != nil {
			free(hb.buf)
		}
		if hb := b.istreams[i]; hb != nil {
			free(hb.buf)
		}
		b.ostreams[i], b.istreams[i] = nil, nil
	}
	free(b.cacheBuf)
	free(b.async)
	free(b.iface)
	b.cacheBuf, b.async, b.iface, b.cache = nil, nil, nil, nil
	return errors.Join(errs...)
}

// =============================================================================
// Paged Memory
// =============================================================================

func (b *Backend) selectPage(addr uint32) uint32 {
	page := (addr >> PageShift) & PageMask
	if !b.pageOK || page != b.page {
		b.regs.Write32(RegDSPP, page)
		b.page, b.pageOK = page, true
	}
	return addr & (MemWindowSize - 1)
}

func (b *Backend) readMem(addr uint32) uint32 {
	v := b.mem.Read32(b.selectPage(addr))
	b.pending = 0
	return v
}

func (b *Backend) writeMem(addr, v uint32) {
	b.mem.Write32(b.selectPage(addr), v)
	if b.pending++; b.pending == writesPerRead {
		b.readMem(addr)
	}
}

func (b *Backend) writeBlock(addr uint32, words []uint32) {
	for i, w := range words {
		b.writeMem(addr+uint32(4*i), w)
	}
}

func (b *Backend) readBlock(addr uint32, n int) []uint32 {
	words := make([]uint32, n)
	for i := range words {
		words[i] = b.readMem(addr + uint32(4*i))
	}
	return words
}

// dspMemory adapts the memory window to backend.Memory.
type dspMemory struct{ b *Backend }

func (m dspMemory) ReadWord(addr uint32) (uint32, error) { return m.b.readMem(addr), nil }

func (m dspMemory) WriteWord(addr uint32, v uint32) error {
	m.b.writeMem(addr, v)
	return nil
}

// =============================================================================
// Interface Buffer
// =============================================================================

func (b *Backend) ifRead(off uint32) uint32 {
	return binary.LittleEndian.Uint32(b.iface.Bytes()[off:])
}

func (b *Backend) ifWrite(off, v uint32) {
	binary.LittleEndian.PutUint32(b.iface.Bytes()[off:], v)
}

func (b *Backend) union() []byte {
	return b.iface.Bytes()[IfaceUnion : IfaceUnion+UnionSize]
}

func (b *Backend) interrupt() {
	b.regs.Write32(RegHSR, HSRIntSrc)
	b.regs.Write32(RegHDCR, HDCRDSPINT)
}

// notify posts a host command without waiting for the acknowledge.
func (b *Backend) notify(cmd uint32) {
	b.ifWrite(IfaceHostCmd, cmd)
	b.interrupt()
}

// command posts a host command, waits for the DSP to interrupt the host and
// checks the acknowledge.
func (b *Backend) command(cmd uint32, limit int, phase pkg.Phase, step string) error {
	b.notify(cmd)
	if !b.opts.Spin(limit, func() bool { return b.regs.Read32(RegHSR)&HSRIntSrc != 0 }) {
		return backend.Timeout(kind, phase, step, 0)
	}
	b.regs.Write32(RegHSR, HSRIntSrc)
	if ack := b.ifRead(IfaceDSPAck); ack != cmd {
		return backend.Fault(kind, pkg.CategoryProtocol, phase, step, 0,
			fmt.Errorf("host command %#x acknowledged as %#x: %w", cmd, ack, pkg.ErrProtocol))
	}
	return nil
}

func (b *Backend) waitIdle(phase pkg.Phase, step string) error {
	if !b.opts.Spin(b.opts.IdleSpin, func() bool { return b.ifRead(IfaceDSPAck) == CmdIdle }) {
		return backend.Timeout(kind, phase, step, 0)
	}
	return nil
}

// allocShared returns a DMA buffer the DSP can address.
func (b *Backend) allocShared(size int) (hal.DMABuffer, error) {
	buf, err := b.dma.Alloc(size)
	if err != nil {
		return nil, err
	}
	if buf.PhysAddr()+uint64(size) > math.MaxUint32 {
		_ = buf.Free()
		return nil, fmt.Errorf("buffer at %#x beyond 32-bit bus range: %w", buf.PhysAddr(), pkg.ErrNoMemory)
	}
	return buf, nil
}

// =============================================================================
// Exchange
// =============================================================================

func (b *Backend) check(dsp int) error {
	if dsp != 0 {
		return fmt.Errorf("busmaster: dsp %d: %w", dsp, pkg.ErrInvalidParameter)
	}
	if b.iface == nil {
		return fmt.Errorf("busmaster: not booted: %w", pkg.ErrClosed)
	}
	return nil
}

func (b *Backend) slot(obj hpi.ObjectKind, index uint16) **hostBuffer {
	if index >= MaxStreams {
		return nil
	}
	if obj == hpi.ObjectIStream {
		return &b.istreams[index]
	}
	return &b.ostreams[index]
}

func (b *Backend) hostBuffer(m *hpi.Message) *hostBuffer {
	if s := b.slot(m.Object, m.ObjIndex); s != nil {
		return *s
	}
	return nil
}

// Exchange implements backend.Backend. Streams with a granted host buffer
// move their data through the buffer without a DSP message.
func (b *Backend) Exchange(dsp int, m *hpi.Message) (*hpi.Response, error) {
	r := hpi.NewResponse(m)
	if err := b.check(dsp); err != nil {
		return backend.ErrorResponse(r, err), err
	}

	switch m.Function {
	case hpi.OStreamHostBufferAlloc, hpi.IStreamHostBufferAlloc:
		return b.allocHostBuffer(m, r)
	case hpi.OStreamHostBufferFree, hpi.IStreamHostBufferFree:
		if hb := b.hostBuffer(m); hb != nil {
			return b.freeHostBuffer(m, r)
		}
	case hpi.OStreamHostBufferGetInfo, hpi.IStreamHostBufferGetInfo:
		if hb := b.hostBuffer(m); hb != nil {
			r.Error = hpi.ErrorNone
			r.Stream.PhysAddr = uint32(hb.buf.PhysAddr())
			r.Stream.BufferSize = uint32(len(hb.buf.Bytes()))
			return r, nil
		}
	case hpi.OStreamWrite, hpi.IStreamRead:
		if hb := b.hostBuffer(m); hb != nil {
			return b.bypass(m, r, hb)
		}
	case hpi.OStreamGetInfo, hpi.IStreamGetInfo:
		if hb := b.hostBuffer(m); hb != nil {
			b.streamInfo(m, r, hb)
			return r, nil
		}
	case hpi.ControlGetState:
		if b.cache != nil && b.cache.Check(m, r) {
			return r, nil
		}
	}

	r, err := b.exchange(m, r)
	if err != nil || r.Error != hpi.ErrorNone {
		return r, err
	}
	switch m.Function {
	case hpi.OStreamSetFormat:
		if int(m.ObjIndex) < MaxStreams {
			b.formats[m.ObjIndex] = m.Stream.Format
		}
	case hpi.OStreamReset, hpi.IStreamReset:
		if hb := b.hostBuffer(m); hb != nil {
			b.ifWrite(StatusRecord(m.Object, int(m.ObjIndex))+StatusHostIndex, 0)
			hb.needFormat = m.Object == hpi.ObjectOStream
		}
	case hpi.AdapterClose:
		// The DSP finishes closing after it has answered.
		if err := b.waitIdle(pkg.PhaseGet, backend.StepWaitIdle); err != nil {
			return backend.ErrorResponse(r, err), err
		}
	}
	return r, nil
}

// exchange delivers m to the DSP and runs its data phase.
func (b *Backend) exchange(m *hpi.Message, r *hpi.Response) (*hpi.Response, error) {
	req, err := m.MarshalBinary()
	if err != nil {
		return backend.ErrorResponse(r, err), err
	}
	err = backend.Recover(kind, &b.stats, func() error { return b.sequence(req, m, r) }, b.resync)
	if err != nil {
		return backend.ErrorResponse(r, err), err
	}
	b.stats.Exchanges++
	if b.cache != nil {
		b.cache.Sync(m, r)
	}

	if r.Error != hpi.ErrorNone {
		return r, nil
	}
	switch dir, data := backend.DataPhase(m); dir {
	case backend.DirToDSP:
		err = backend.Recover(kind, &b.stats, func() error { return b.sendData(data) }, b.resync)
	case backend.DirFromDSP:
		err = backend.Recover(kind, &b.stats, func() error {
			n, err := b.getData(data)
			if err != nil {
				return err
			}
			return backend.CheckDataSize(kind, 0, m, len(data), n)
		}, b.resync)
	}
	if err != nil {
		return backend.ErrorResponse(r, err), err
	}
	return r, nil
}

func (b *Backend) sequence(req []byte, m *hpi.Message, r *hpi.Response) error {
	send, get := pkg.PhaseSend, pkg.PhaseGet
	if err := b.waitIdle(send, backend.StepWaitIdle); err != nil {
		return err
	}
	if len(req) > UnionSize {
		return backend.Fault(kind, pkg.CategoryProtocol, send, backend.StepWriteBlock, 0, pkg.ErrProtocol)
	}
	copy(b.union(), req)
	// The DSP runs the message as soon as GET_RESP is posted.
	if err := b.command(CmdGetResp, b.opts.AckSpin, get, backend.StepWaitAck); err != nil {
		return err
	}

	u := b.union()
	size := int(binary.LittleEndian.Uint16(u))
	if size < hpi.ResponseHeaderSize || size > hpi.ResponseSize(m.Object) {
		b.notify(CmdIdle)
		return backend.Fault(kind, pkg.CategoryProtocol, get, backend.StepReadLength, 0, pkg.ErrResponseSize)
	}
	err := backend.Decode(m, r, u[:size])
	b.notify(CmdIdle)
	if err != nil {
		return backend.Fault(kind, pkg.CategoryProtocol, get, backend.StepValidate, 0, err)
	}
	return nil
}

func (b *Backend) resync() error {
	if err := b.command(CmdReset, b.opts.AckSpin, pkg.PhaseResync, backend.StepReset); err != nil {
		return err
	}
	return b.command(CmdIdle, b.opts.IdleSpin, pkg.PhaseResync, backend.StepWaitIdle)
}

// =============================================================================
// Data Phases
// =============================================================================

// SendData implements backend.Backend.
func (b *Backend) SendData(dsp int, data []byte) error {
	if err := b.check(dsp); err != nil {
		return err
	}
	return backend.Recover(kind, &b.stats, func() error { return b.sendData(data) }, b.resync)
}

// GetData implements backend.Backend.
func (b *Backend) GetData(dsp int, data []byte) error {
	if err := b.check(dsp); err != nil {
		return err
	}
	return backend.Recover(kind, &b.stats, func() error {
		n, err := b.getData(data)
		if err == nil && n != len(data) {
			err = backend.Fault(kind, pkg.CategoryProtocol, pkg.PhaseData, backend.StepDataSize, 0, pkg.ErrDataSize)
		}
		return err
	}, b.resync)
}

// sendData moves data through the union area one chunk at a time.
func (b *Backend) sendData(data []byte) error {
	phase := pkg.PhaseData
	for len(data) > 0 {
		n := min(len(data), UnionSize)
		if err := b.waitIdle(phase, backend.StepWaitIdle); err != nil {
			return err
		}
		copy(b.union(), data[:n])
		b.ifWrite(IfaceTransferSize, uint32(n))
		if err := b.command(CmdSendData, b.opts.AckSpin, phase, backend.StepWaitAck); err != nil {
			return err
		}
		b.notify(CmdIdle)
		data = data[n:]
	}
	return nil
}

// getData returns the number of bytes the DSP supplied.
func (b *Backend) getData(data []byte) (int, error) {
	phase := pkg.PhaseData
	total := 0
	for total < len(data) {
		if err := b.waitIdle(phase, backend.StepWaitIdle); err != nil {
			return total, err
		}
		want := min(len(data)-total, UnionSize)
		b.ifWrite(IfaceTransferSize, uint32(want))
		if err := b.command(CmdGetData, b.opts.AckSpin, phase, backend.StepWaitAck); err != nil {
			return total, err
		}
		n := int(b.ifRead(IfaceTransferSize))
		if n > want {
			b.notify(CmdIdle)
			return total, backend.Fault(kind, pkg.CategoryProtocol, phase, backend.StepReadLength, 0, pkg.ErrDataSize)
		}
		copy(data[total:], b.union()[:n])
		b.notify(CmdIdle)
		total += n
		if n == 0 {
			break
		}
	}
	return total, nil
}

// =============================================================================
// Host Buffers
// =============================================================================

// allocHostBuffer allocates a DMA buffer for a stream and grants it to the
// DSP. A refused grant releases the buffer again.
func (b *Backend) allocHostBuffer(m *hpi.Message, r *hpi.Response) (*hpi.Response, error) {
	slot := b.slot(m.Object, m.ObjIndex)
	if slot == nil {
		r.Error = hpi.ErrorInvalidObjectIndex
		return r, nil
	}
	size := m.Stream.BufferSize
	if size == 0 || size&(size-1) != 0 {
		r.Error = hpi.ErrorInvalidDataSize
		return r, nil
	}

	hb := *slot
	var buf hal.DMABuffer
	switch {
	case hb == nil:
		var err error
		if buf, err = b.allocShared(int(size)); err != nil {
			pkg.LogWarn(pkg.ComponentBackend, "host buffer allocation failed",
				"backend", kind.String(),
				"object", m.Object.String(),
				"index", m.ObjIndex,
				"size", size,
				"error", err)
			r.Error = hpi.ErrorMemoryAlloc
			return r, nil
		}
	case len(hb.buf.Bytes()) == int(size):
		buf = hb.buf
	default:
		r.Error = hpi.ErrorInvalidOperation
		return r, nil
	}

	g := *m
	g.Stream.BufferCommand = hpi.BufferCmdGrantAdapter
	g.Stream.PhysAddr = uint32(buf.PhysAddr())
	g.Stream.BufferSize = size
	r, err := b.exchange(&g, r)
	if err != nil || r.Error != hpi.ErrorNone {
		if hb == nil {
			_ = buf.Free()
		}
		return r, err
	}
	if hb == nil {
		hb = &hostBuffer{buf: buf}
		*slot = hb
	}
	hb.needFormat = m.Object == hpi.ObjectOStream
	b.ifWrite(StatusRecord(m.Object, int(m.ObjIndex))+StatusHostIndex, 0)
	r.Stream.PhysAddr = g.Stream.PhysAddr
	r.Stream.BufferSize = size
	return r, nil
}

// freeHostBuffer revokes a stream's buffer and releases it once the DSP has
// let go of it.
func (b *Backend) freeHostBuffer(m *hpi.Message, r *hpi.Response) (*hpi.Response, error) {
	g := *m
	g.Stream.BufferCommand = hpi.BufferCmdRevokeAdapter
	r, err := b.exchange(&g, r)
	if err != nil || r.Error != hpi.ErrorNone {
		return r, err
	}
	slot := b.slot(m.Object, m.ObjIndex)
	if err := (*slot).buf.Free(); err != nil {
		pkg.LogWarn(pkg.ComponentBackend, "host buffer release failed",
			"backend", kind.String(),
			"error", err)
	}
	*slot = nil
	return r, nil
}

// bypass moves stream data through a granted host buffer.
func (b *Backend) bypass(m *hpi.Message, r *hpi.Response, hb *hostBuffer) (*hpi.Response, error) {
	if hb.needFormat && m.Function == hpi.OStreamWrite {
		// The DSP forgets the format on grant and reset. A write that
		// carries none falls back to the last one the stream accepted.
		format := m.Stream.Format
		if format.Code == 0 {
			format = b.formats[m.ObjIndex]
		}
		if format.Code == 0 {
			r.Error = hpi.ErrorInvalidFormat
			return r, nil
		}
		f := hpi.NewMessage(hpi.OStreamSetFormat, m.AdapterIndex, m.ObjIndex)
		f.Stream.Format = format
		fr, err := b.exchange(f, hpi.NewResponse(f))
		if err != nil {
			return backend.ErrorResponse(r, err), err
		}
		if fr.Error != hpi.ErrorNone {
			r.Error = fr.Error
			return r, nil
		}
		b.formats[m.ObjIndex] = format
		hb.needFormat = false
	}

	_, data := backend.DataPhase(m)
	ring := hb.buf.Bytes()
	rec := StatusRecord(m.Object, int(m.ObjIndex))
	host, dsp := b.ifRead(rec+StatusHostIndex), b.ifRead(rec+StatusDSPIndex)
	n := uint32(len(data))
	if m.Function == hpi.OStreamWrite {
		if n > uint32(len(ring))-(host-dsp) {
			r.Error = hpi.ErrorInvalidDataSize
			return r, nil
		}
		WriteRing(ring, host, data)
	} else {
		if n > dsp-host {
			r.Error = hpi.ErrorInvalidDataSize
			return r, nil
		}
		ReadRing(data, ring, host)
	}
	b.ifWrite(rec+StatusHostIndex, host+n)
	r.Error = hpi.ErrorNone
	return r, nil
}

// streamInfo answers get-info from the stream's status record.
func (b *Backend) streamInfo(m *hpi.Message, r *hpi.Response, hb *hostBuffer) {
	rec := StatusRecord(m.Object, int(m.ObjIndex))
	host, dsp := b.ifRead(rec+StatusHostIndex), b.ifRead(rec+StatusDSPIndex)
	r.Error = hpi.ErrorNone
	r.Stream.State = hpi.StreamState(b.ifRead(rec + StatusState))
	r.Stream.BufferSize = uint32(len(hb.buf.Bytes()))
	r.Stream.SamplesTransferred = b.ifRead(rec + StatusSamples)
	r.Stream.AuxDataAvailable = b.ifRead(rec + StatusAux)
	if m.Object == hpi.ObjectOStream {
		r.Stream.DataAvailable = host - dsp
	} else {
		r.Stream.DataAvailable = dsp - host
	}
}

// =============================================================================
// Boot
// =============================================================================

func bootFault(step string, err error) error {
	return backend.Fault(kind, pkg.CategoryBoot, pkg.PhaseBoot, step, 0, err)
}

// Boot implements backend.Backend.
func (b *Backend) Boot(src firmware.Source) error {
	if err := b.Close(); err != nil {
		pkg.LogWarn(pkg.ComponentBoot, "releasing buffers before boot",
			"backend", kind.String(),
			"error", err)
	}
	b.pageOK, b.pending = false, 0

	if err := b.configure(); err != nil {
		return err
	}

	b.regs.Write32(RegHDCR, HDCRWarmReset)
	b.opts.Sleep(resetPulse)
	b.regs.Write32(RegHDCR, 0)
	b.opts.Sleep(resetSettle)

	mem := dspMemory{b}
	for _, r := range EMIFConfig {
		b.writeMem(r.Addr, r.Value)
		if v := b.readMem(r.Addr); v != r.Value {
			return bootFault(backend.StepEMIF,
				fmt.Errorf("emif register %#08x: wrote %#08x, read %#08x: %w", r.Addr, r.Value, v, pkg.ErrMemoryTest))
		}
	}
	if err := backend.WalkingBits(mem, InternalTestAddr, InternalTestWords); err != nil {
		return bootFault(backend.StepInternalMem, err)
	}
	if err := backend.Sparse(mem, SDRAMBase, SDRAMSize); err != nil {
		return bootFault(backend.StepExternalMem, err)
	}
	if v := b.readMem(PLDAddr) & PLDMask; v != PLDSignature {
		return bootFault(backend.StepPLD, fmt.Errorf("signature %#04x: %w", v, pkg.ErrPLD))
	}

	family := firmware.Family(b.ids.SubsystemDevice) & FamilyMask
	code, err := src.Open(family)
	if err != nil {
		return bootFault(backend.StepDownload, err)
	}
	defer code.Close()
	err = backend.Download(code, func(seg firmware.Segment) error {
		b.writeBlock(seg.Address, seg.Words)
		return nil
	})
	if err != nil {
		return bootFault(backend.StepDownload, err)
	}
	err = backend.Verify(code, func(addr uint32, n int) ([]uint32, error) {
		return b.readBlock(addr, n), nil
	})
	if err != nil {
		return bootFault(backend.StepVerify, err)
	}

	if err := b.start(); err != nil {
		return err
	}
	if err := b.negotiate(); err != nil {
		return err
	}
	pkg.LogInfo(pkg.ComponentBoot, "dsp running",
		"backend", kind.String(),
		"family", family.String(),
		"version", code.Version,
		"cache", b.cache != nil)
	return nil
}

// configure waits for the bridge to load its configuration, tests the page
// register and takes the secondary DSP out of reset.
func (b *Backend) configure() error {
	hsr := func() uint32 { return b.regs.Read32(RegHSR) }
	if !b.opts.Spin(b.opts.BootSpin, func() bool { return hsr()&HSREERead == 0 }) {
		return backend.Timeout(kind, pkg.PhaseBoot, backend.StepBridgeConfig, -1)
	}
	if hsr()&HSRCfgErr != 0 {
		return backend.Fault(kind, pkg.CategoryBoot, pkg.PhaseBoot, backend.StepBridgeConfig, -1, pkg.ErrBridgeConfig)
	}
	for bit := 0; bit < 10; bit++ {
		p := uint32(1) << bit
		b.regs.Write32(RegDSPP, p)
		if v := b.regs.Read32(RegDSPP) & PageMask; v != p {
			return backend.Fault(kind, pkg.CategoryBoot, pkg.PhaseBoot, backend.StepPageRegister, -1,
				fmt.Errorf("page register wrote %#x, read %#x: %w", p, v, pkg.ErrMemoryTest))
		}
	}
	b.pageOK = false

	b.writeMem(GPIOAddr, GPIORelease)
	if b.readMem(GPIOAddr)&GPIORelease == 0 {
		return bootFault(backend.StepRelease, pkg.ErrBridgeConfig)
	}
	return nil
}

// start hands the interface buffer to the DSP and waits for its first
// acknowledge.
func (b *Backend) start() error {
	iface, err := b.allocShared(InterfaceSize)
	if err != nil {
		return bootFault(backend.StepStart, err)
	}
	b.iface = iface
	b.writeMem(HostIfAddr, uint32(iface.PhysAddr()))
	b.interrupt()
	if !b.opts.Spin(b.opts.BootSpin, func() bool { return b.regs.Read32(RegHSR)&HSRIntSrc != 0 }) {
		return backend.Timeout(kind, pkg.PhaseBoot, backend.StepStart, 0)
	}
	b.regs.Write32(RegHSR, HSRIntSrc)
	return b.waitIdle(pkg.PhaseBoot, backend.StepReady)
}

// negotiate allocates the buffers the DSP advertises and tells it where they
// are.
func (b *Backend) negotiate() error {
	if size, count := b.ifRead(IfaceCacheSize), b.ifRead(IfaceCacheCount); size > 0 && count > 0 {
		buf, err := b.allocShared(int(size))
		if err != nil {
			return bootFault(backend.StepNegotiate, err)
		}
		b.cacheBuf = buf
		b.ifWrite(IfaceCachePhys, uint32(buf.PhysAddr()))
		b.cache = cache.New(int(count), buf.Bytes()[:size])
	}
	if size := b.ifRead(IfaceAsyncSize); size > 0 {
		buf, err := b.allocShared(int(size))
		if err != nil {
			return bootFault(backend.StepNegotiate, err)
		}
		b.async = buf
		b.ifWrite(IfaceAsyncPhys, uint32(buf.PhysAddr()))
	}
	return b.command(CmdIdle, b.opts.AckSpin, pkg.PhaseBoot, backend.StepNegotiate)
}
