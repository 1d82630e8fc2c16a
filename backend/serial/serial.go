package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ardnew/softhpi/backend"
	"github.com/ardnew/softhpi/firmware"
	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/hpi"
	"github.com/ardnew/softhpi/pkg"
)

// Firmware families. The loader reports a code in HF3-5; the matching
// image is FamilyBase|code.
const (
	FamilyLoader firmware.Family = 0x5600
	FamilyBase   firmware.Family = 0x5600
)

// Reset timing.
const (
	resetPulse  = 10 * time.Millisecond
	resetSettle = 5 * time.Millisecond
)

// statusReads bounds the attempts to get two matching HSTR reads.
const statusReads = 8

const kind = backend.KindSerial

// Backend talks to a DSP56301 through its serial FIFO host interface.
type Backend struct {
	w     hal.Window
	opts  backend.Options
	flags uint32 // Last host flags written
	stats backend.Stats
}

var _ backend.Backend = (*Backend)(nil)

// New returns a backend for the adapter at res.
func New(res *hal.BusResource, opts backend.Options) (*Backend, error) {
	w := res.Window(0)
	if w == nil || w.Size() < WindowSize {
		return nil, fmt.Errorf("serial: %s: host interface window missing: %w", res.Name, pkg.ErrInvalidParameter)
	}
	return &Backend{w: w, opts: opts.Normalize()}, nil
}

// Stats returns the backend counters.
func (b *Backend) Stats() backend.Stats {
	return b.stats
}

// =============================================================================
// Register Primitives
// =============================================================================

// status returns HSTR once two consecutive reads agree.
func (b *Backend) status() (uint32, bool) {
	prev := b.w.Read32(RegHSTR)
	for i := 0; i < statusReads; i++ {
		cur := b.w.Read32(RegHSTR)
		if cur == prev {
			return cur, true
		}
		prev = cur
	}
	return 0, false
}

func (b *Backend) dspState() (uint32, bool) {
	s, ok := b.status()
	return (s >> HSTRHFShift) & FlagsMask, ok
}

func (b *Backend) setFlags(f uint32) {
	b.flags = f
	b.w.Write32(RegHCTR, f<<HCTRHFShift)
}

func (b *Backend) waitState(want uint32, limit int, phase pkg.Phase, step string) error {
	ok := b.opts.Spin(limit, func() bool {
		s, stable := b.dspState()
		return stable && s == want
	})
	if !ok {
		return backend.Timeout(kind, phase, step, 0)
	}
	return nil
}

func (b *Backend) writeWord(v uint32, phase pkg.Phase, step string) error {
	ok := b.opts.Spin(b.opts.AckSpin, func() bool {
		s, stable := b.status()
		return stable && s&HSTRHTRQ != 0
	})
	if !ok {
		return backend.Timeout(kind, phase, step, 0)
	}
	b.w.Write32(RegHTXR, v&WordMask)
	return nil
}

func (b *Backend) readWord(phase pkg.Phase, step string) (uint32, error) {
	ok := b.opts.Spin(b.opts.AckSpin, func() bool {
		s, stable := b.status()
		return stable && s&HSTRHRRQ != 0
	})
	if !ok {
		return 0, backend.Timeout(kind, phase, step, 0)
	}
	return b.w.Read32(RegHRXS) & WordMask, nil
}

// command issues a host command vector and waits for the DSP to take it.
func (b *Backend) command(vec uint32, phase pkg.Phase, step string) error {
	pending := func() bool {
		var v uint32
		// Reads without the differentiator bit are aliased; read again.
		for i := 0; i < statusReads; i++ {
			if v = b.w.Read32(RegHCVR); v&HCVRDiff != 0 {
				return v&HCVRHC != 0
			}
		}
		return true
	}
	if !b.opts.Spin(b.opts.AckSpin, func() bool { return !pending() }) {
		return backend.Timeout(kind, phase, step, 0)
	}
	b.w.Write32(RegHCVR, (vec&HCVRVectorMask)<<HCVRVectorShift|HCVRHC|HCVRDiff)
	if !b.opts.Spin(b.opts.AckSpin, func() bool { return !pending() }) {
		return backend.Timeout(kind, phase, step, 0)
	}
	return nil
}

// writeRing sends units, splitting at each point where the DSP ring wraps.
// The DSP reports the units left before its wrap point first and again
// after every wrap command.
func (b *Backend) writeRing(units []uint16, phase pkg.Phase) error {
	before, err := b.readWord(phase, backend.StepReadLength)
	if err != nil {
		return err
	}
	for len(units) > 0 {
		n := min(len(units), int(before))
		for _, u := range units[:n] {
			if err := b.writeWord(uint32(u), phase, backend.StepWriteBlock); err != nil {
				return err
			}
		}
		units = units[n:]
		if len(units) == 0 {
			break
		}
		if err := b.command(VecRingWrap, phase, backend.StepRingWrap); err != nil {
			return err
		}
		if before, err = b.readWord(phase, backend.StepRingWrap); err != nil {
			return err
		}
		if before == 0 {
			return backend.Fault(kind, pkg.CategoryProtocol, phase, backend.StepRingWrap, 0, pkg.ErrProtocol)
		}
	}
	return nil
}

// readRing is the receive counterpart of writeRing.
func (b *Backend) readRing(units []uint16, phase pkg.Phase) error {
	before, err := b.readWord(phase, backend.StepReadLength)
	if err != nil {
		return err
	}
	for len(units) > 0 {
		n := min(len(units), int(before))
		for i := range units[:n] {
			v, err := b.readWord(phase, backend.StepReadBlock)
			if err != nil {
				return err
			}
			units[i] = uint16(v)
		}
		units = units[n:]
		if len(units) == 0 {
			break
		}
		if err := b.command(VecRingWrap, phase, backend.StepRingWrap); err != nil {
			return err
		}
		if before, err = b.readWord(phase, backend.StepRingWrap); err != nil {
			return err
		}
		if before == 0 {
			return backend.Fault(kind, pkg.CategoryProtocol, phase, backend.StepRingWrap, 0, pkg.ErrProtocol)
		}
	}
	return nil
}

// =============================================================================
// Exchange
// =============================================================================

// Exchange implements backend.Backend.
func (b *Backend) Exchange(dsp int, m *hpi.Message) (*hpi.Response, error) {
	r := hpi.NewResponse(m)
	if dsp != 0 {
		return backend.ErrorResponse(r, pkg.ErrInvalidParameter), pkg.ErrInvalidParameter
	}
	req, err := m.MarshalBinary()
	if err != nil {
		return backend.ErrorResponse(r, err), err
	}

	err = backend.Recover(kind, &b.stats,
		func() error { return b.sequence(req, m, r) },
		b.resync)
	if err != nil {
		return backend.ErrorResponse(r, err), err
	}
	b.stats.Exchanges++

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

// sequence runs one message/response handshake.
func (b *Backend) sequence(req []byte, m *hpi.Message, r *hpi.Response) error {
	send := pkg.PhaseSend
	if err := b.waitState(DSPIdle, b.opts.IdleSpin, send, backend.StepWaitIdle); err != nil {
		return err
	}
	units := hpi.Units(req)
	b.setFlags(HostSendMsg)
	if err := b.writeWord(uint32(len(units)), send, backend.StepWriteLength); err != nil {
		return err
	}
	if err := b.waitState(DSPCmdOK, b.opts.AckSpin, send, backend.StepWaitAck); err != nil {
		return err
	}
	if err := b.writeRing(units, send); err != nil {
		return err
	}

	// The DSP runs the message on DMA stop, so nothing after this point may
	// be retried.
	get := pkg.PhaseGet
	if err := b.command(VecDMAStop, get, backend.StepDMAStop); err != nil {
		return err
	}
	b.setFlags(HostGetResp)
	if err := b.waitState(DSPRespReady, b.opts.AckSpin, get, backend.StepWaitAck); err != nil {
		return err
	}

	n, err := b.readWord(get, backend.StepReadLength)
	if err != nil {
		return err
	}
	if int(n)*2 < hpi.ResponseHeaderSize || int(n)*2 > hpi.ResponseSize(m.Object) {
		return backend.Fault(kind, pkg.CategoryProtocol, get, backend.StepReadLength, 0, pkg.ErrResponseSize)
	}
	resp := make([]uint16, n)
	if err := b.readRing(resp, get); err != nil {
		return err
	}
	if err := b.command(VecDMAStop, get, backend.StepDMAStop); err != nil {
		return err
	}
	b.setFlags(HostIdle)

	if err := backend.Decode(m, r, hpi.UnitBytes(resp)); err != nil {
		return backend.Fault(kind, pkg.CategoryProtocol, get, backend.StepValidate, 0, err)
	}
	return nil
}

// resync returns the host interface to a known idle state.
func (b *Backend) resync() error {
	if err := b.command(VecReset, pkg.PhaseResync, backend.StepReset); err != nil {
		return err
	}
	b.setFlags(HostIdle)
	return b.waitState(DSPIdle, b.opts.IdleSpin, pkg.PhaseResync, backend.StepWaitIdle)
}

// =============================================================================
// Data Phases
// =============================================================================

// SendData implements backend.Backend.
func (b *Backend) SendData(dsp int, data []byte) error {
	if dsp != 0 {
		return pkg.ErrInvalidParameter
	}
	return backend.Recover(kind, &b.stats, func() error { return b.sendData(data) }, b.resync)
}

// GetData implements backend.Backend.
func (b *Backend) GetData(dsp int, data []byte) error {
	if dsp != 0 {
		return pkg.ErrInvalidParameter
	}
	return backend.Recover(kind, &b.stats, func() error {
		n, err := b.getData(data)
		if err == nil && n != len(data) {
			err = backend.Fault(kind, pkg.CategoryProtocol, pkg.PhaseData, backend.StepDataSize, 0, pkg.ErrDataSize)
		}
		return err
	}, b.resync)
}

func (b *Backend) sendData(data []byte) error {
	phase := pkg.PhaseData
	if err := b.waitState(DSPIdle, b.opts.IdleSpin, phase, backend.StepWaitIdle); err != nil {
		return err
	}
	b.setFlags(HostSendData)
	if err := b.writeWord(uint32(len(data)), phase, backend.StepWriteLength); err != nil {
		return err
	}
	if err := b.waitState(DSPCmdOK, b.opts.AckSpin, phase, backend.StepWaitAck); err != nil {
		return err
	}
	if err := b.writeRing(hpi.Units(data), phase); err != nil {
		return err
	}
	if err := b.command(VecDMAStop, phase, backend.StepDMAStop); err != nil {
		return err
	}
	b.setFlags(HostIdle)
	return nil
}

// getData returns the number of bytes the DSP supplied.
func (b *Backend) getData(data []byte) (int, error) {
	phase := pkg.PhaseData
	if err := b.waitState(DSPIdle, b.opts.IdleSpin, phase, backend.StepWaitIdle); err != nil {
		return 0, err
	}
	b.setFlags(HostGetData)
	if err := b.writeWord(uint32(len(data)), phase, backend.StepWriteLength); err != nil {
		return 0, err
	}
	if err := b.waitState(DSPDataReady, b.opts.AckSpin, phase, backend.StepWaitAck); err != nil {
		return 0, err
	}
	n, err := b.readWord(phase, backend.StepReadLength)
	if err != nil {
		return 0, err
	}
	if int(n) > len(data) {
		return 0, backend.Fault(kind, pkg.CategoryProtocol, phase, backend.StepReadLength, 0, pkg.ErrDataSize)
	}
	units := make([]uint16, (n+1)/2)
	if err := b.readRing(units, phase); err != nil {
		return 0, err
	}
	if err := b.command(VecDMAStop, phase, backend.StepDMAStop); err != nil {
		return 0, err
	}
	b.setFlags(HostIdle)
	copy(data, hpi.UnitBytes(units)[:n])
	return int(n), nil
}

// =============================================================================
// Boot
// =============================================================================

// Boot implements backend.Backend.
func (b *Backend) Boot(src firmware.Source) error {
	boot := pkg.PhaseBoot
	fault := func(step string, err error) error {
		return backend.Fault(kind, pkg.CategoryBoot, boot, step, 0, err)
	}

	b.w.Write32(RegReset, ResetAssert)
	b.opts.Sleep(resetPulse)
	b.w.Write32(RegReset, ResetHostBoot)
	b.opts.Sleep(resetSettle)

	loader, err := src.Open(FamilyLoader)
	if err != nil {
		return fault(backend.StepLoader, err)
	}
	defer loader.Close()
	for {
		w, err := loader.ReadWord()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fault(backend.StepLoader, err)
		}
		if err := b.writeWord(w, boot, backend.StepLoader); err != nil {
			return err
		}
	}

	var code uint32
	ok := b.opts.Spin(b.opts.BootSpin, func() bool {
		s, stable := b.dspState()
		code = s
		return stable && s >= FamilyCodeMin
	})
	if !ok {
		return backend.Timeout(kind, boot, backend.StepFamily, 0)
	}
	family := FamilyBase | firmware.Family(code)
	pkg.LogInfo(pkg.ComponentBoot, "bootloader running",
		"backend", kind.String(),
		"family", family.String())

	main, err := src.Open(family)
	if err != nil {
		return fault(backend.StepDownload, err)
	}
	defer main.Close()
	err = backend.Download(main, func(seg firmware.Segment) error {
		hdr := []uint32{uint32(len(seg.Words)), seg.Address, uint32(seg.Type)}
		for _, w := range append(hdr, seg.Words...) {
			if err := b.writeWord(w, boot, backend.StepDownload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if pkg.CategoryOf(err) == 0 {
			err = fault(backend.StepDownload, err)
		}
		return err
	}
	if err := b.writeWord(firmware.EndOfCode, boot, backend.StepDownload); err != nil {
		return err
	}

	if err := b.waitState(DSPIdle, b.opts.BootSpin, boot, backend.StepReady); err != nil {
		return err
	}
	b.setFlags(HostIdle)
	pkg.LogInfo(pkg.ComponentBoot, "firmware running",
		"backend", kind.String(),
		"family", family.String(),
		"version", main.Version)
	return nil
}
