package hpi

// FormatCode identifies a sample encoding.
type FormatCode uint16

// Sample encodings.
const (
	FormatPCM16Signed    FormatCode = 1
	FormatMPEGLayer2     FormatCode = 2
	FormatMPEGLayer3     FormatCode = 3
	FormatPCM8Unsigned   FormatCode = 5
	FormatPCM24Signed    FormatCode = 6
	FormatPCM32Signed    FormatCode = 7
	FormatPCM32Float     FormatCode = 8
	FormatPCM16BigEndian FormatCode = 9
)

// StreamState is the transport state of a stream.
type StreamState uint16

// Stream states.
const (
	StateStopped   StreamState = 1
	StatePlaying   StreamState = 2
	StateRecording StreamState = 3
	StateDrained   StreamState = 4
)

// String returns the state name.
func (s StreamState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StateRecording:
		return "recording"
	case StateDrained:
		return "drained"
	default:
		return "unknown"
	}
}

// BufferCommand selects a host buffer operation.
type BufferCommand uint32

// Host buffer commands. Internal alloc and free act on the host side; grant
// and revoke hand the buffer to or take it back from the DSP.
const (
	BufferCmdExternal      BufferCommand = 0
	BufferCmdInternalAlloc BufferCommand = 1
	BufferCmdInternalFree  BufferCommand = 2
	BufferCmdGrantAdapter  BufferCommand = 3
	BufferCmdRevokeAdapter BufferCommand = 4
)
