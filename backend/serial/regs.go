package serial

// Host interface registers, byte offsets into window 0.
const (
	RegHCTR  = 0x10 // Host control: host flags HF0-2
	RegHSTR  = 0x14 // Host status: FIFO flags, DSP flags HF3-5
	RegHCVR  = 0x18 // Host command vector
	RegHTXR  = 0x1C // Transmit data (write)
	RegHRXS  = 0x1C // Receive data (read)
	RegReset = 0x20 // DSP reset and boot mode

	WindowSize = 0x24
)

// HSTR bits.
const (
	HSTRTRDY    = 1 << 0 // Transmit FIFO empty
	HSTRHTRQ    = 1 << 1 // Transmit FIFO has room
	HSTRHRRQ    = 1 << 2 // Receive FIFO has data
	HSTRHFShift = 3      // DSP flags HF3-5
)

// HCTR fields.
const (
	HCTRHFShift = 3 // Host flags HF0-2
	FlagsMask   = 7
)

// HCVR fields. Host writes always carry the differentiator bit; a read
// without it is an aliased status read.
const (
	HCVRHC          = 1 << 0
	HCVRVectorShift = 1
	HCVRVectorMask  = 0x7F
	HCVRDiff        = 1 << 15
)

// Reset register bits.
const (
	ResetAssert   = 1 << 0
	ResetHostBoot = 1 << 1
)

// Host commands written to HCVR.
const (
	VecDMAStop  = 0x12
	VecRingWrap = 0x13
	VecReset    = 0x15
)

// Host flags, HF0-2.
const (
	HostIdle     = 0
	HostSendMsg  = 1
	HostGetResp  = 2
	HostSendData = 3
	HostGetData  = 4
)

// DSP states, HF3-5. While the bootloader runs, HF3-5 carries the family
// code instead, from FamilyCodeMin up.
const (
	DSPBusy      = 0
	DSPIdle      = 1
	DSPCmdOK     = 2
	DSPRespReady = 3
	DSPDataReady = 4

	FamilyCodeMin = 5
)

// WordMask keeps the 24 data bits of a host interface word.
const WordMask = 0xFFFFFF
