package pkg

import (
	"errors"
	"strconv"
	"strings"
)

// Transport errors.
var (
	// ErrTimeout indicates a bounded wait exhausted its iteration budget.
	ErrTimeout = errors.New("handshake timeout")

	// ErrBridge indicates the bus bridge flagged an access timeout.
	ErrBridge = errors.New("bridge access timeout")

	// ErrResponseMismatch indicates a response that does not echo its message.
	ErrResponseMismatch = errors.New("response does not match message")

	// ErrResponseSize indicates a response length outside the expected bounds.
	ErrResponseSize = errors.New("invalid response size")

	// ErrDataSize indicates the DSP transferred a different amount than requested.
	ErrDataSize = errors.New("data size mismatch")

	// ErrProtocol indicates the DSP acknowledged with an unexpected value.
	ErrProtocol = errors.New("protocol error")

	// ErrCrashed indicates the adapter tripped its consecutive-error limit.
	ErrCrashed = errors.New("adapter crashed")
)

// Identity errors.
var (
	// ErrBadBusID indicates bus identifiers that no backend supports.
	ErrBadBusID = errors.New("unsupported bus identifiers")

	// ErrDuplicateIndex indicates an adapter index already in use.
	ErrDuplicateIndex = errors.New("duplicate adapter index")

	// ErrBadIndex indicates an adapter index outside the registry.
	ErrBadIndex = errors.New("adapter index out of range")

	// ErrNoAdapter indicates no adapter is registered at an index.
	ErrNoAdapter = errors.New("adapter not present")
)

// Boot errors.
var (
	// ErrNotFound indicates missing firmware for a DSP family.
	ErrNotFound = errors.New("firmware not found")

	// ErrFormat indicates a malformed firmware image.
	ErrFormat = errors.New("malformed firmware image")

	// ErrChecksum indicates a firmware image failing its checksum.
	ErrChecksum = errors.New("firmware checksum mismatch")

	// ErrVerify indicates downloaded code read back differently.
	ErrVerify = errors.New("code verification failed")

	// ErrMemoryTest indicates a DSP memory test failure.
	ErrMemoryTest = errors.New("memory test failed")

	// ErrPLD indicates a programmable logic test failure.
	ErrPLD = errors.New("PLD test failed")

	// ErrBridgeConfig indicates the bus bridge did not finish self-configuration.
	ErrBridgeConfig = errors.New("bridge self-configuration incomplete")
)

// General errors.
var (
	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")

	// ErrNoMemory indicates a DMA or host buffer allocation failure.
	ErrNoMemory = errors.New("insufficient memory")

	// ErrClosed indicates use of a released resource.
	ErrClosed = errors.New("resource closed")
)

// Category classifies a failure for the caller.
type Category int

// Failure categories.
const (
	CategoryIdentity  Category = iota + 1 // Wrong bus ids, duplicate or bad index
	CategoryTransport                     // Handshake step or bridge failure
	CategoryProtocol                      // Response invalid or data size mismatch
	CategoryBoot                          // Firmware load or hardware test failure
	CategoryFatal                         // Adapter crashed
)

// String returns a string representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryIdentity:
		return "identity"
	case CategoryTransport:
		return "transport"
	case CategoryProtocol:
		return "protocol"
	case CategoryBoot:
		return "boot"
	case CategoryFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Phase identifies the part of a transaction that failed.
type Phase int

// Transaction phases.
const (
	PhaseNone   Phase = iota
	PhaseSend         // Message delivery
	PhaseGet          // Response retrieval
	PhaseData         // Data phase
	PhaseBoot         // Adapter boot
	PhaseResync       // Recovery after a failed step
)

// String returns a string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseSend:
		return "send"
	case PhaseGet:
		return "get"
	case PhaseData:
		return "data"
	case PhaseBoot:
		return "boot"
	case PhaseResync:
		return "resync"
	default:
		return "none"
	}
}

// Error describes a failure with the step that produced it.
type Error struct {
	Category Category
	Backend  string // Backend name, empty above the backend layer
	Phase    Phase
	Step     string // Handshake step within the phase
	DSP      int    // DSP index, -1 when not DSP specific
	Err      error  // Underlying sentinel or cause
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Category.String())
	if e.Backend != "" {
		b.WriteString(" [")
		b.WriteString(e.Backend)
		b.WriteString("]")
	}
	if e.Phase != PhaseNone {
		b.WriteString(" ")
		b.WriteString(e.Phase.String())
	}
	if e.Step != "" {
		b.WriteString("/")
		b.WriteString(e.Step)
	}
	if e.DSP >= 0 {
		b.WriteString(" dsp ")
		b.WriteString(strconv.Itoa(e.DSP))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// CategoryOf returns the category of the first *Error in err's chain, or 0.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return 0
}
