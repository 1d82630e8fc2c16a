package backend

// Handshake steps named in errors. A failed wait reports the step it was
// waiting in.
const (
	StepWaitIdle    = "wait-idle"
	StepSetFlags    = "set-flags"
	StepWriteLength = "write-length"
	StepWaitAck     = "wait-ack"
	StepReadLength  = "read-length"
	StepWriteBlock  = "write-block"
	StepReadBlock   = "read-block"
	StepCommand     = "command"
	StepRingWrap    = "ring-wrap"
	StepDMAStop     = "dma-stop"
	StepHostCommand = "host-command"
	StepInterrupt   = "interrupt"
	StepValidate    = "validate"
	StepDataSize    = "data-size"
	StepReset       = "reset"

	StepLoader       = "bootloader"
	StepFamily       = "family"
	StepDownload     = "download"
	StepVerify       = "verify"
	StepInternalMem  = "internal-memory"
	StepExternalMem  = "external-memory"
	StepEMIF         = "emif"
	StepPLD          = "pld"
	StepStart        = "start"
	StepReady        = "ready"
	StepBridgeConfig = "bridge-config"
	StepPageRegister = "page-register"
	StepRelease      = "release"
	StepNegotiate    = "negotiate"
)
