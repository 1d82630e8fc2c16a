package hpi

import "strconv"

// ObjectKind identifies the object family a message is addressed to.
type ObjectKind uint16

// Object kinds.
const (
	ObjectSubsystem  ObjectKind = 1
	ObjectAdapter    ObjectKind = 2
	ObjectOStream    ObjectKind = 3
	ObjectIStream    ObjectKind = 4
	ObjectMixer      ObjectKind = 5
	ObjectNode       ObjectKind = 6
	ObjectControl    ObjectKind = 7
	ObjectNVMemory   ObjectKind = 8
	ObjectGPIO       ObjectKind = 9
	ObjectWatchdog   ObjectKind = 10
	ObjectClock      ObjectKind = 11
	ObjectProfile    ObjectKind = 12
	ObjectAsyncEvent ObjectKind = 14

	objectMax = ObjectAsyncEvent
)

var objectNames = [...]string{
	ObjectSubsystem:  "subsystem",
	ObjectAdapter:    "adapter",
	ObjectOStream:    "ostream",
	ObjectIStream:    "istream",
	ObjectMixer:      "mixer",
	ObjectNode:       "node",
	ObjectControl:    "control",
	ObjectNVMemory:   "nvmemory",
	ObjectGPIO:       "gpio",
	ObjectWatchdog:   "watchdog",
	ObjectClock:      "clock",
	ObjectProfile:    "profile",
	ObjectAsyncEvent: "async-event",
}

// Valid reports whether k names a known object kind.
func (k ObjectKind) Valid() bool {
	return k >= ObjectSubsystem && k <= objectMax && objectNames[k] != ""
}

// String returns the object kind name.
func (k ObjectKind) String() string {
	if k.Valid() {
		return objectNames[k]
	}
	return "object(" + strconv.Itoa(int(k)) + ")"
}

// Function is a message function code: the object kind in the high byte and
// the function number within that object in the low byte.
type Function uint16

// Object returns the object kind encoded in the function code.
func (f Function) Object() ObjectKind {
	return ObjectKind(f >> 8)
}

// String returns "object:number".
func (f Function) String() string {
	return f.Object().String() + ":" + strconv.Itoa(int(f&0xFF))
}

// Subsystem functions.
const (
	SubsysOpen           = Function(ObjectSubsystem)<<8 | 1
	SubsysGetVersion     = Function(ObjectSubsystem)<<8 | 2
	SubsysGetInfo        = Function(ObjectSubsystem)<<8 | 3
	SubsysCreateAdapter  = Function(ObjectSubsystem)<<8 | 4
	SubsysClose          = Function(ObjectSubsystem)<<8 | 5
	SubsysDeleteAdapter  = Function(ObjectSubsystem)<<8 | 6
	SubsysGetNumAdapters = Function(ObjectSubsystem)<<8 | 7
	SubsysGetAdapter     = Function(ObjectSubsystem)<<8 | 8
)

// Adapter functions.
const (
	AdapterOpen             = Function(ObjectAdapter)<<8 | 1
	AdapterClose            = Function(ObjectAdapter)<<8 | 2
	AdapterGetInfo          = Function(ObjectAdapter)<<8 | 3
	AdapterGetAssert        = Function(ObjectAdapter)<<8 | 4
	AdapterTestAssert       = Function(ObjectAdapter)<<8 | 5
	AdapterSetMode          = Function(ObjectAdapter)<<8 | 6
	AdapterGetMode          = Function(ObjectAdapter)<<8 | 7
	AdapterEnableCapability = Function(ObjectAdapter)<<8 | 8
	AdapterSelfTest         = Function(ObjectAdapter)<<8 | 9
	AdapterFindObject       = Function(ObjectAdapter)<<8 | 10
	AdapterDebugRead        = Function(ObjectAdapter)<<8 | 11
	AdapterSetProperty      = Function(ObjectAdapter)<<8 | 12
	AdapterGetProperty      = Function(ObjectAdapter)<<8 | 13
)

// Output stream functions.
const (
	OStreamOpen              = Function(ObjectOStream)<<8 | 1
	OStreamClose             = Function(ObjectOStream)<<8 | 2
	OStreamWrite             = Function(ObjectOStream)<<8 | 3
	OStreamStart             = Function(ObjectOStream)<<8 | 4
	OStreamStop              = Function(ObjectOStream)<<8 | 5
	OStreamReset             = Function(ObjectOStream)<<8 | 6
	OStreamGetInfo           = Function(ObjectOStream)<<8 | 7
	OStreamQueryFormat       = Function(ObjectOStream)<<8 | 8
	OStreamSetFormat         = Function(ObjectOStream)<<8 | 9
	OStreamHostBufferAlloc   = Function(ObjectOStream)<<8 | 10
	OStreamHostBufferFree    = Function(ObjectOStream)<<8 | 11
	OStreamHostBufferGetInfo = Function(ObjectOStream)<<8 | 12
	OStreamSetVelocity       = Function(ObjectOStream)<<8 | 13
)

// Input stream functions.
const (
	IStreamOpen              = Function(ObjectIStream)<<8 | 1
	IStreamSetFormat         = Function(ObjectIStream)<<8 | 2
	IStreamRead              = Function(ObjectIStream)<<8 | 3
	IStreamStart             = Function(ObjectIStream)<<8 | 4
	IStreamReset             = Function(ObjectIStream)<<8 | 5
	IStreamStop              = Function(ObjectIStream)<<8 | 6
	IStreamClose             = Function(ObjectIStream)<<8 | 7
	IStreamGetInfo           = Function(ObjectIStream)<<8 | 8
	IStreamQueryFormat       = Function(ObjectIStream)<<8 | 9
	IStreamHostBufferAlloc   = Function(ObjectIStream)<<8 | 10
	IStreamHostBufferFree    = Function(ObjectIStream)<<8 | 11
	IStreamHostBufferGetInfo = Function(ObjectIStream)<<8 | 12
)

// Mixer functions.
const (
	MixerOpen              = Function(ObjectMixer)<<8 | 1
	MixerClose             = Function(ObjectMixer)<<8 | 2
	MixerGetInfo           = Function(ObjectMixer)<<8 | 3
	MixerGetNodeInfo       = Function(ObjectMixer)<<8 | 4
	MixerGetControl        = Function(ObjectMixer)<<8 | 5
	MixerSetConnection     = Function(ObjectMixer)<<8 | 6
	MixerGetConnections    = Function(ObjectMixer)<<8 | 7
	MixerGetControlByIndex = Function(ObjectMixer)<<8 | 8
	MixerStore             = Function(ObjectMixer)<<8 | 9
)

// Control functions.
const (
	ControlGetInfo  = Function(ObjectControl)<<8 | 1
	ControlGetState = Function(ObjectControl)<<8 | 2
	ControlSetState = Function(ObjectControl)<<8 | 3
)

// Asynchronous event functions.
const (
	AsyncEventOpen     = Function(ObjectAsyncEvent)<<8 | 1
	AsyncEventClose    = Function(ObjectAsyncEvent)<<8 | 2
	AsyncEventGetCount = Function(ObjectAsyncEvent)<<8 | 3
	AsyncEventGet      = Function(ObjectAsyncEvent)<<8 | 4
)
