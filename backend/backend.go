package backend

import (
	"errors"
	"time"

	"github.com/ardnew/softhpi/firmware"
	"github.com/ardnew/softhpi/hal"
	"github.com/ardnew/softhpi/hpi"
	"github.com/ardnew/softhpi/pkg"
)

// Backend moves messages, responses and bulk data between the host and the
// DSPs of one adapter. Calls are synchronous; the adapter layer serializes
// them with the adapter lock.
type Backend interface {
	// Boot resets the adapter, loads firmware for every DSP and waits for
	// the firmware to report ready.
	Boot(src firmware.Source) error

	// Exchange delivers m to DSP dsp and returns its response. Data phases
	// implied by m (stream write, stream read, debug read) run before
	// Exchange returns. The response is non-nil even on error.
	Exchange(dsp int, m *hpi.Message) (*hpi.Response, error)

	// SendData transfers data to the DSP.
	SendData(dsp int, data []byte) error

	// GetData fills data from the DSP.
	GetData(dsp int, data []byte) error
}

// Kind identifies a backend family.
type Kind int

// Backend kinds.
const (
	KindSerial    Kind = iota + 1 // Serial FIFO host interface
	KindBridge                    // Dual DSP behind an HPI bridge
	KindBusMaster                 // Bus-mastering shared memory
)

// String returns the backend name.
func (k Kind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindBridge:
		return "bridge"
	case KindBusMaster:
		return "busmaster"
	default:
		return "unknown"
	}
}

// Bus identifiers recognized by the backends.
const (
	VendorMotorola     = 0x1057
	DeviceDSP56301     = 0x1801
	VendorTI           = 0x104C
	DevicePCI2040      = 0xAC60
	DeviceC6205        = 0xA106
	VendorAudioScience = 0x175C
)

// KindOf selects the backend for a set of bus identifiers.
func KindOf(ids hal.IDs) (Kind, error) {
	if ids.SubsystemVendor != VendorAudioScience {
		return 0, pkg.ErrBadBusID
	}
	switch {
	case ids.Vendor == VendorMotorola && ids.Device == DeviceDSP56301:
		return KindSerial, nil
	case ids.Vendor == VendorTI && ids.Device == DevicePCI2040:
		return KindBridge, nil
	case ids.Vendor == VendorTI && ids.Device == DeviceC6205:
		return KindBusMaster, nil
	}
	return 0, pkg.ErrBadBusID
}

// Stats counts backend activity.
type Stats struct {
	Exchanges uint64 // Messages delivered to a DSP
	Failures  uint64 // Sequences that failed a step
	Resyncs   uint64 // Successful resyncs
	Retries   uint64 // Sequences repeated after a resync
}

// =============================================================================
// Options
// =============================================================================

// Options tunes the handshake bounds shared by all backends.
type Options struct {
	IdleSpin      int                 // Polls waiting for the DSP to go idle
	AckSpin       int                 // Polls waiting for an acknowledge
	BootSpin      int                 // Polls for long waits during boot
	PollDelay     time.Duration       // Pause between polls, zero spins
	Sleep         func(time.Duration) // Fixed delays such as reset pulses
	BridgeRetries int                 // Attempts per bridged access
	WriteChunk    int                 // Words per bridged block write
	ReadChunk     int                 // Words per bridged block read
}

// DefaultOptions returns the bounds used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		IdleSpin:      20000,
		AckSpin:       20000,
		BootSpin:      2000000,
		Sleep:         time.Sleep,
		BridgeRetries: 5,
		WriteChunk:    128,
		ReadChunk:     16,
	}
}

// Normalize fills zero fields from DefaultOptions.
func (o Options) Normalize() Options {
	d := DefaultOptions()
	if o.IdleSpin <= 0 {
		o.IdleSpin = d.IdleSpin
	}
	if o.AckSpin <= 0 {
		o.AckSpin = d.AckSpin
	}
	if o.BootSpin <= 0 {
		o.BootSpin = d.BootSpin
	}
	if o.Sleep == nil {
		o.Sleep = d.Sleep
	}
	if o.BridgeRetries <= 0 {
		o.BridgeRetries = d.BridgeRetries
	}
	if o.WriteChunk <= 0 {
		o.WriteChunk = d.WriteChunk
	}
	if o.ReadChunk <= 0 {
		o.ReadChunk = d.ReadChunk
	}
	return o
}

// Spin polls cond up to limit times and reports whether it became true.
func (o Options) Spin(limit int, cond func() bool) bool {
	for i := 0; i < limit; i++ {
		if cond() {
			return true
		}
		if o.PollDelay > 0 {
			time.Sleep(o.PollDelay)
		}
	}
	return false
}

// =============================================================================
// Failure Handling
// =============================================================================

// Fault builds the error for a failed step.
func Fault(k Kind, c pkg.Category, p pkg.Phase, step string, dsp int, err error) *pkg.Error {
	return &pkg.Error{
		Category: c,
		Backend:  k.String(),
		Phase:    p,
		Step:     step,
		DSP:      dsp,
		Err:      err,
	}
}

// Timeout builds the error for an exhausted wait.
func Timeout(k Kind, p pkg.Phase, step string, dsp int) *pkg.Error {
	return Fault(k, pkg.CategoryTransport, p, step, dsp, pkg.ErrTimeout)
}

// Recover runs seq. After a failure it calls resync once. When resync
// succeeds and seq failed before the DSP accepted the message, seq runs a
// second time. stats may be nil.
func Recover(k Kind, stats *Stats, seq, resync func() error) error {
	err := seq()
	if err == nil {
		return nil
	}
	if stats != nil {
		stats.Failures++
	}
	pkg.LogWarn(pkg.ComponentBackend, "sequence failed, resyncing",
		"backend", k.String(),
		"error", err)

	if rerr := resync(); rerr != nil {
		pkg.LogError(pkg.ComponentBackend, "resync failed",
			"backend", k.String(),
			"error", rerr)
		return errors.Join(err, rerr)
	}
	if stats != nil {
		stats.Resyncs++
	}

	var e *pkg.Error
	if !errors.As(err, &e) || e.Phase != pkg.PhaseSend {
		return err
	}
	if stats != nil {
		stats.Retries++
	}
	if err = seq(); err != nil && stats != nil {
		stats.Failures++
	}
	return err
}

// =============================================================================
// Data Phases
// =============================================================================

// Direction of a data phase.
type Direction int

// Data phase directions.
const (
	DirNone Direction = iota
	DirToDSP
	DirFromDSP
)

// DataPhase returns the data phase implied by m and the host buffer it
// uses, clipped to the requested size.
func DataPhase(m *hpi.Message) (Direction, []byte) {
	var n int
	dir := DirNone
	switch m.Function {
	case hpi.OStreamWrite:
		dir, n = DirToDSP, int(m.Stream.DataSize)
	case hpi.IStreamRead:
		dir, n = DirFromDSP, int(m.Stream.DataSize)
	case hpi.AdapterDebugRead:
		dir, n = DirFromDSP, int(m.Adapter.Count)
	default:
		return DirNone, nil
	}
	if n > len(m.Data) {
		n = len(m.Data)
	}
	return dir, m.Data[:n]
}

// CheckDataSize applies the transferred-size check after a data phase.
// Only stream reads are checked; a short debug read is not an error.
func CheckDataSize(k Kind, dsp int, m *hpi.Message, want, got int) error {
	if m.Function != hpi.IStreamRead || want == got {
		return nil
	}
	return Fault(k, pkg.CategoryProtocol, pkg.PhaseData, StepDataSize, dsp, pkg.ErrDataSize)
}

// ErrorResponse returns r with its error field set from err.
func ErrorResponse(r *hpi.Response, err error) *hpi.Response {
	r.Error = ErrorCode(err)
	return r
}

// Decode fills r from the encoded response b. r is left unchanged unless b
// decodes to a response that answers m.
func Decode(m *hpi.Message, r *hpi.Response, b []byte) error {
	var got hpi.Response
	if err := got.UnmarshalBinary(b); err != nil {
		return err
	}
	if err := hpi.ValidateResponse(m, &got); err != nil {
		return err
	}
	*r = got
	return nil
}

// ErrorCode maps an error to the response code reported for it.
func ErrorCode(err error) hpi.ErrorCode {
	if err == nil {
		return hpi.ErrorNone
	}
	switch {
	case errors.Is(err, pkg.ErrCrashed):
		return hpi.ErrorDSPHardware
	case errors.Is(err, pkg.ErrBadBusID):
		return hpi.ErrorBadAdapter
	case errors.Is(err, pkg.ErrDuplicateIndex):
		return hpi.ErrorDuplicateAdapterNumber
	case errors.Is(err, pkg.ErrBadIndex), errors.Is(err, pkg.ErrNoAdapter):
		return hpi.ErrorBadAdapterNumber
	case errors.Is(err, pkg.ErrNotFound):
		return hpi.ErrorDSPFileNotFound
	case errors.Is(err, pkg.ErrFormat), errors.Is(err, pkg.ErrChecksum):
		return hpi.ErrorDSPFileFormat
	case errors.Is(err, pkg.ErrVerify):
		return hpi.ErrorDSPCodeVerify
	case errors.Is(err, pkg.ErrMemoryTest):
		return hpi.ErrorDSPSelfTest
	case errors.Is(err, pkg.ErrPLD):
		return hpi.ErrorPLDLoad
	case errors.Is(err, pkg.ErrNoMemory):
		return hpi.ErrorMemoryAlloc
	case errors.Is(err, pkg.ErrResponseMismatch):
		return hpi.ErrorResponseMismatch
	case errors.Is(err, pkg.ErrResponseSize):
		return hpi.ErrorInvalidResponse
	case errors.Is(err, pkg.ErrDataSize):
		return hpi.ErrorDataSizeMismatch
	case errors.Is(err, pkg.ErrInvalidParameter):
		return hpi.ErrorInvalidResource
	}

	var e *pkg.Error
	if errors.As(err, &e) {
		switch e.Phase {
		case pkg.PhaseSend:
			return hpi.ErrorDSPSend
		case pkg.PhaseGet:
			return hpi.ErrorDSPGet
		case pkg.PhaseData:
			return hpi.ErrorDSPData
		case pkg.PhaseBoot:
			return hpi.ErrorDSPBootload
		case pkg.PhaseResync:
			return hpi.ErrorDSPResync
		}
	}
	return hpi.ErrorDSPCommunication
}
