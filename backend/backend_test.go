package backend

import (
	"errors"
	"testing"

	"github.com/ardnew/softhpi/firmware"
	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/hpi"
	"github.com/ardnew/softhpi/pkg"
)

// =============================================================================
// Bus Identity Tests
// =============================================================================

func TestKindOf(t *testing.T) {
	tests := []struct {
		name    string
		ids     hal.IDs
		want    Kind
		wantErr bool
	}{
		{"serial", hal.IDs{Vendor: VendorMotorola, Device: DeviceDSP56301, SubsystemVendor: VendorAudioScience, SubsystemDevice: 0x5000}, KindSerial, false},
		{"bridge", hal.IDs{Vendor: VendorTI, Device: DevicePCI2040, SubsystemVendor: VendorAudioScience, SubsystemDevice: 0x6100}, KindBridge, false},
		{"busmaster", hal.IDs{Vendor: VendorTI, Device: DeviceC6205, SubsystemVendor: VendorAudioScience, SubsystemDevice: 0x6600}, KindBusMaster, false},
		{"foreign subsystem", hal.IDs{Vendor: VendorTI, Device: DeviceC6205, SubsystemVendor: 0x1234, SubsystemDevice: 0x6600}, 0, true},
		{"unknown device", hal.IDs{Vendor: VendorTI, Device: 0x0001, SubsystemVendor: VendorAudioScience, SubsystemDevice: 0}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := KindOf(tt.ids)
			if (err != nil) != tt.wantErr {
				t.Fatalf("KindOf() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, pkg.ErrBadBusID) {
				t.Errorf("error %v is not ErrBadBusID", err)
			}
			if got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Recover Tests
// =============================================================================

func TestRecover(t *testing.T) {
	sendFault := Timeout(KindSerial, pkg.PhaseSend, StepWaitAck, 0)
	getFault := Timeout(KindSerial, pkg.PhaseGet, StepWaitAck, 0)
	resyncFault := Timeout(KindSerial, pkg.PhaseResync, StepWaitIdle, 0)

	tests := []struct {
		name      string
		results   []error // seq results in call order
		resyncErr error
		wantCalls int
		wantErr   error
		want      Stats
	}{
		{"success", []error{nil}, nil, 1, nil, Stats{}},
		{"send failure retried", []error{sendFault, nil}, nil, 2, nil, Stats{Failures: 1, Resyncs: 1, Retries: 1}},
		{"retry fails", []error{sendFault, sendFault}, nil, 2, pkg.ErrTimeout, Stats{Failures: 2, Resyncs: 1, Retries: 1}},
		{"get failure not retried", []error{getFault}, nil, 1, pkg.ErrTimeout, Stats{Failures: 1, Resyncs: 1}},
		{"resync fails", []error{sendFault}, resyncFault, 1, pkg.ErrTimeout, Stats{Failures: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stats Stats
			calls := 0
			seq := func() error {
				err := tt.results[calls]
				calls++
				return err
			}
			resync := func() error { return tt.resyncErr }

			err := Recover(KindSerial, &stats, seq, resync)
			if calls != tt.wantCalls {
				t.Errorf("seq called %d times, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("Recover() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Recover() error = %v, want %v", err, tt.wantErr)
			}
			if stats != tt.want {
				t.Errorf("stats = %+v, want %+v", stats, tt.want)
			}
		})
	}
}

func TestSpin(t *testing.T) {
	o := DefaultOptions()
	n := 0
	if !o.Spin(10, func() bool { n++; return n == 3 }) {
		t.Error("Spin() gave up early")
	}
	n = 0
	if o.Spin(5, func() bool { n++; return false }) {
		t.Error("Spin() succeeded on false condition")
	}
	if n != 5 {
		t.Errorf("Spin() polled %d times, want 5", n)
	}
}

func TestNormalize(t *testing.T) {
	o := Options{IdleSpin: 7}.Normalize()
	if o.IdleSpin != 7 {
		t.Errorf("IdleSpin = %d, want 7", o.IdleSpin)
	}
	if o.WriteChunk != 128 || o.ReadChunk != 16 || o.Sleep == nil {
		t.Errorf("defaults not applied: %+v", o)
	}
}

// =============================================================================
// Data Phase Tests
// =============================================================================

func TestDataPhase(t *testing.T) {
	buf := make([]byte, 64)

	w := hpi.NewMessage(hpi.OStreamWrite, 0, 0)
	w.Stream.DataSize = 32
	w.Data = buf
	if dir, b := DataPhase(w); dir != DirToDSP || len(b) != 32 {
		t.Errorf("write phase = %v, %d", dir, len(b))
	}

	r := hpi.NewMessage(hpi.IStreamRead, 0, 0)
	r.Stream.DataSize = 128 // larger than the buffer
	r.Data = buf
	if dir, b := DataPhase(r); dir != DirFromDSP || len(b) != 64 {
		t.Errorf("read phase = %v, %d", dir, len(b))
	}

	d := hpi.NewMessage(hpi.AdapterDebugRead, 0, 0)
	d.Adapter.Count = 8
	d.Data = buf
	if dir, b := DataPhase(d); dir != DirFromDSP || len(b) != 8 {
		t.Errorf("debug phase = %v, %d", dir, len(b))
	}

	if dir, _ := DataPhase(hpi.NewMessage(hpi.OStreamStart, 0, 0)); dir != DirNone {
		t.Errorf("start has data phase %v", dir)
	}
}

func TestCheckDataSize(t *testing.T) {
	read := hpi.NewMessage(hpi.IStreamRead, 0, 0)
	debug := hpi.NewMessage(hpi.AdapterDebugRead, 0, 0)

	if err := CheckDataSize(KindBridge, 0, read, 64, 64); err != nil {
		t.Errorf("matching read error = %v", err)
	}
	err := CheckDataSize(KindBridge, 0, read, 64, 60)
	if !errors.Is(err, pkg.ErrDataSize) || pkg.CategoryOf(err) != pkg.CategoryProtocol {
		t.Errorf("short read error = %v", err)
	}
	if err := CheckDataSize(KindBridge, 0, debug, 64, 60); err != nil {
		t.Errorf("short debug read error = %v", err)
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want hpi.ErrorCode
	}{
		{"nil", nil, hpi.ErrorNone},
		{"crashed", &pkg.Error{Category: pkg.CategoryFatal, Err: pkg.ErrCrashed}, hpi.ErrorDSPHardware},
		{"duplicate", pkg.ErrDuplicateIndex, hpi.ErrorDuplicateAdapterNumber},
		{"send timeout", Timeout(KindBusMaster, pkg.PhaseSend, StepWaitIdle, 0), hpi.ErrorDSPSend},
		{"get timeout", Timeout(KindBusMaster, pkg.PhaseGet, StepWaitAck, 0), hpi.ErrorDSPGet},
		{"mismatch", Fault(KindBridge, pkg.CategoryProtocol, pkg.PhaseGet, StepValidate, 0, pkg.ErrResponseMismatch), hpi.ErrorResponseMismatch},
		{"verify", Fault(KindBridge, pkg.CategoryBoot, pkg.PhaseBoot, StepVerify, 1, pkg.ErrVerify), hpi.ErrorDSPCodeVerify},
		{"unknown", errors.New("other"), hpi.ErrorDSPCommunication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.want {
				t.Errorf("ErrorCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func encode(t *testing.T, r *hpi.Response) []byte {
	t.Helper()
	b, err := r.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}
	return b
}

func TestDecode(t *testing.T) {
	m := hpi.NewMessage(hpi.AdapterGetInfo, 0, 0)

	good := hpi.NewResponse(m)
	good.Error = hpi.ErrorNone
	good.Adapter.Info.SerialNumber = 7

	wrong := hpi.NewResponse(m)
	wrong.Function = hpi.AdapterGetMode
	wrong.Error = hpi.ErrorNone
	wrong.Adapter.Info.SerialNumber = 9

	tests := []struct {
		name    string
		data    []byte
		wantErr error
		serial  uint32
	}{
		{"answers message", encode(t, good), nil, 7},
		{"other function", encode(t, wrong), pkg.ErrResponseMismatch, 0},
		{"truncated", encode(t, good)[:8], pkg.ErrResponseSize, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := hpi.NewResponse(m)
			err := Decode(m, r, tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
			}
			if r.Function != m.Function || r.Object != m.Object {
				t.Errorf("response answers %s, want %s", r.Function, m.Function)
			}
			if r.Adapter.Info.SerialNumber != tt.serial {
				t.Errorf("SerialNumber = %d, want %d", r.Adapter.Info.SerialNumber, tt.serial)
			}
			if tt.wantErr != nil && r.Error != hpi.ErrorProcessingMessage {
				t.Errorf("Error = %s, want the unprocessed sentinel", r.Error)
			}
		})
	}
}

// =============================================================================
// Boot Helper Tests
// =============================================================================

// mapMemory is sparse word memory with an optional stuck bit and address
// aliasing.
type mapMemory struct {
	words    map[uint32]uint32
	stuckBit uint32 // Bits forced low on every read
	addrMask uint32 // Address lines decoded, zero for all
}

var _ Memory = (*mapMemory)(nil)

func newMapMemory() *mapMemory {
	return &mapMemory{words: make(map[uint32]uint32)}
}

func (m *mapMemory) addr(a uint32) uint32 {
	if m.addrMask != 0 {
		return a & m.addrMask
	}
	return a
}

func (m *mapMemory) ReadWord(a uint32) (uint32, error) {
	return m.words[m.addr(a)] &^ m.stuckBit, nil
}

func (m *mapMemory) WriteWord(a uint32, v uint32) error {
	m.words[m.addr(a)] = v
	return nil
}

func TestWalkingBits(t *testing.T) {
	mem := newMapMemory()
	if err := WalkingBits(mem, 0x1000, 4); err != nil {
		t.Errorf("WalkingBits() error = %v", err)
	}
	if mem.words[0x1004] != 0 {
		t.Error("range not cleared")
	}

	mem.stuckBit = 1 << 17
	if err := WalkingBits(mem, 0x1000, 4); !errors.Is(err, pkg.ErrMemoryTest) {
		t.Errorf("stuck bit error = %v, want ErrMemoryTest", err)
	}
}

func TestSparse(t *testing.T) {
	mem := newMapMemory()
	if err := Sparse(mem, 0x80000000, 1<<20); err != nil {
		t.Errorf("Sparse() error = %v", err)
	}

	mem = newMapMemory()
	mem.addrMask = 0x8000FFFF
	if err := Sparse(mem, 0x80000000, 1<<20); !errors.Is(err, pkg.ErrMemoryTest) {
		t.Errorf("aliased memory error = %v, want ErrMemoryTest", err)
	}
}

func TestDownloadVerify(t *testing.T) {
	code := firmware.NewCode(1, 0, firmware.SegmentWords(
		firmware.Segment{Address: 0x100, Words: []uint32{1, 2, 3}},
		firmware.Segment{Address: 0x400, Words: []uint32{4}},
	))
	mem := newMapMemory()

	err := Download(code, func(seg firmware.Segment) error {
		for i, w := range seg.Words {
			mem.WriteWord(seg.Address+uint32(4*i), w)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	read := func(addr uint32, n int) ([]uint32, error) {
		out := make([]uint32, n)
		for i := range out {
			out[i], _ = mem.ReadWord(addr + uint32(4*i))
		}
		return out, nil
	}
	if err := Verify(code, read); err != nil {
		t.Errorf("Verify() error = %v", err)
	}

	mem.words[0x104] = 99
	if err := Verify(code, read); !errors.Is(err, pkg.ErrVerify) {
		t.Errorf("Verify() after corruption error = %v, want ErrVerify", err)
	}
}
