package busmaster

// DSP memory, window 0. The window shows one page selected by RegDSPP.
const (
	PageShift     = 22
	PageMask      = 0x3FF
	MemWindowSize = 1 << PageShift
)

// Bridge registers, window 1.
const (
	RegHSR  = 0x0 // Host status, write 1 to clear INTSRC
	RegHDCR = 0x4 // Host to DSP control
	RegDSPP = 0x8 // DSP page select

	RegsSize = 0x10
)

// RegHSR bits.
const (
	HSRIntSrc = 1 << 0 // DSP interrupted the host
	HSRCfgErr = 1 << 3 // Bridge configuration failed
	HSREERead = 1 << 4 // Configuration load from EEPROM in progress
)

// RegHDCR bits.
const (
	HDCRWarmReset = 1 << 0
	HDCRDSPINT    = 1 << 1
	HDCRPCIBoot   = 1 << 2
)

// Interface buffer in host memory, shared with the DSP by bus mastering.
// Offsets in bytes.
const (
	IfaceHostCmd      = 0x0000
	IfaceDSPAck       = 0x0004
	IfaceTransferSize = 0x0008
	IfaceUnion        = 0x0010 // Message, response or data chunk

	UnionSize = 0x1000

	IfaceCacheSize  = 0x1010 // Advertised by the DSP
	IfaceCacheCount = 0x1014 // Advertised by the DSP
	IfaceCachePhys  = 0x1018 // Written by the host
	IfaceAsyncSize  = 0x1020 // Advertised by the DSP
	IfaceAsyncCount = 0x1024 // Advertised by the DSP
	IfaceAsyncPhys  = 0x1028 // Written by the host

	IfaceStatus = 0x1030 // Host buffer status records

	InterfaceSize = 0x2000
)

// Host buffer status records: MaxStreams output streams followed by
// MaxStreams input streams. Offsets in bytes within a record.
const (
	MaxStreams       = 16
	StatusRecordSize = 0x20

	StatusSamples    = 0x00 // Samples processed by the DSP
	StatusAux        = 0x04 // Auxiliary data available
	StatusState      = 0x08 // hpi.StreamState
	StatusDSPIndex   = 0x0C // Bytes moved by the DSP
	StatusHostIndex  = 0x10 // Bytes moved by the host
	StatusBufferSize = 0x14 // Buffer size as seen by the DSP
)

// Host commands.
const (
	CmdReset    = 0x00
	CmdIdle     = 0x01
	CmdGetResp  = 0x02
	CmdSendData = 0x14
	CmdGetData  = 0x15
)

// DSP memory locations used during boot.
const (
	HostIfAddr = 0x0000FFF0 // Physical address of the interface buffer

	InternalTestAddr  = 0x00008000
	InternalTestWords = 64
	SDRAMBase         = 0x02000000
	SDRAMSize         = 0x00800000

	GPIOAddr    = 0x01B00008 // GPIO output register
	GPIORelease = 1 << 3     // Secondary DSP reset line

	PLDAddr      = 0x01700000
	PLDSignature = 0x6205
	PLDMask      = 0xFFFF
)

// EMIF registers and the values written during boot.
var EMIFConfig = []struct{ Addr, Value uint32 }{
	{0x01800000, 0x00003779}, // GBLCTL
	{0x01800008, 0x000000D0}, // CECTL0: SDRAM
	{0x01800004, 0x30E30422}, // CECTL1: PLD
	{0x01800018, 0x07117000}, // SDCTL
	{0x0180001C, 0x00000410}, // SDTIM
}

// Writes through the memory window stall the bridge unless every fourth
// write is followed by a read.
const writesPerRead = 4
