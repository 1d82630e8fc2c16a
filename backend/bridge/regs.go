package bridge

import "github.com/ardnew/softhpi/firmware"

// Bridge control registers, window 0.
const (
	RegIntStatus = 0x00 // Interrupt status, write 1 to clear
	RegReset     = 0x04 // DSP reset lines, one bit per DSP
	RegPLDLoop   = 0x10 // PLD loop-back data
	RegPLDRev    = 0x14 // PLD revision

	RegsSize = 0x20
)

// RegIntStatus bits.
const (
	IntHPITimeout = 1 << 0
)

// HPI registers per DSP, window 1. DSP n's block starts at n*HPIStride.
const (
	HPIStride = 0x10

	RegHPIC  = 0x0 // Control
	RegHPIA  = 0x4 // Address
	RegHPIDA = 0x8 // Data, address auto-increment
	RegHPID  = 0xC // Data, fixed address

	HPISize = 2 * HPIStride
)

// HPIC bits.
const (
	HPICHWOB   = 1 << 0 // Halfword ordering
	HPICDSPINT = 1 << 1 // Host to DSP interrupt
	HPICHINT   = 1 << 2 // DSP to host interrupt
	HPICHRDY   = 1 << 3
)

// Host interface block, at HIFAddr in each DSP's memory. Offsets in bytes.
const (
	HIFAddr = 0x00010000

	HIFHostCmd     = 0x00
	HIFDSPAck      = 0x04
	HIFAddress     = 0x08 // Data phase buffer
	HIFLength      = 0x0C // Data phase length in bytes
	HIFMsgAddr     = 0x10
	HIFRespAddr    = 0x14
	HIFDSP1Family  = 0x18 // Published by DSP 0; zero for one DSP
	HIFCacheDirty  = 0x1C
	HIFCacheAddr   = 0x20
	HIFCacheSize   = 0x24
	HIFCacheCount  = 0x28
	HIFAssertCount = 0x2C
	HIFAssertLine  = 0x30
	HIFAssertParam = 0x34
	HIFAssertText  = 0x38 // 16 bytes

	HIFSize = 0x48
)

// Host commands.
const (
	CmdIdle     = 1
	CmdGetResp  = 2
	CmdSendData = 3
	CmdGetData  = 4
	CmdReset    = 9
)

// Memory layout used during boot.
const (
	InternalTestAddr  = 0x00020000 // Walking-bit test range
	InternalTestWords = 64
	SDRAMBase         = 0x80000000
	SDRAMSize         = 0x01000000
)

// EMIF registers and the values written during boot.
var EMIFConfig = []struct{ Addr, Value uint32 }{
	{0x01800000, 0x00003779}, // GBLCTL
	{0x01800008, 0x00000030}, // CECTL0: SDRAM
	{0x01800004, 0xFFFF3F23}, // CECTL1
	{0x01800010, 0x00000040}, // CECTL2
	{0x01800018, 0x07117000}, // SDCTL
	{0x0180001C, 0x00000410}, // SDTIM
}

// PLDRevisionMask selects the revision bits of RegPLDRev.
const PLDRevisionMask = 0xFFFF

// FamilyMask derives the first DSP's family from the subsystem device.
const FamilyMask firmware.Family = 0xFF00
