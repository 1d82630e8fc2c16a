package hpi

// ControlType identifies the kind of a mixer control.
type ControlType uint16

// Control types.
const (
	ControlGeneric           ControlType = 0
	ControlConnection        ControlType = 1
	ControlVolume            ControlType = 2
	ControlMeter             ControlType = 3
	ControlMute              ControlType = 4
	ControlMultiplexer       ControlType = 5
	ControlAESEBUTransmitter ControlType = 6
	ControlAESEBUReceiver    ControlType = 7
	ControlLevel             ControlType = 8
	ControlTuner             ControlType = 9
	ControlVOX               ControlType = 11
	ControlChannelMode       ControlType = 15
	ControlBitstream         ControlType = 16
	ControlSampleClock       ControlType = 17
	ControlMicrophone        ControlType = 18
	ControlParametricEQ      ControlType = 19
	ControlCompander         ControlType = 20
	ControlToneDetector      ControlType = 22
	ControlSilenceDetector   ControlType = 23
	ControlPad               ControlType = 24
	ControlSRC               ControlType = 25
)

// Attribute selects a property of a control: the control type in the high
// byte and the attribute number in the low byte.
type Attribute uint16

// Control returns the control type the attribute belongs to.
func (a Attribute) Control() ControlType {
	return ControlType(a >> 8)
}

// Volume attributes.
const (
	VolumeGain     = Attribute(ControlVolume)<<8 | 1
	VolumeAutofade = Attribute(ControlVolume)<<8 | 2
	VolumeMute     = Attribute(ControlVolume)<<8 | 3
	VolumeRange    = Attribute(ControlVolume)<<8 | 10
)

// Meter attributes.
const (
	MeterRMS            = Attribute(ControlMeter)<<8 | 1
	MeterPeak           = Attribute(ControlMeter)<<8 | 2
	MeterRMSBallistics  = Attribute(ControlMeter)<<8 | 3
	MeterPeakBallistics = Attribute(ControlMeter)<<8 | 4
)

// Multiplexer attributes.
const (
	MultiplexerSource      = Attribute(ControlMultiplexer)<<8 | 1
	MultiplexerQuerySource = Attribute(ControlMultiplexer)<<8 | 2
)

// Level attributes.
const (
	LevelGain  = Attribute(ControlLevel)<<8 | 1
	LevelRange = Attribute(ControlLevel)<<8 | 10
)

// Channel mode attributes.
const (
	ChannelModeMode = Attribute(ControlChannelMode)<<8 | 1
)

// Tuner attributes.
const (
	TunerBand     = Attribute(ControlTuner)<<8 | 1
	TunerFreq     = Attribute(ControlTuner)<<8 | 2
	TunerLevelAvg = Attribute(ControlTuner)<<8 | 3
	TunerLevelRaw = Attribute(ControlTuner)<<8 | 4
	TunerGain     = Attribute(ControlTuner)<<8 | 5
)

// AES/EBU receiver attributes.
const (
	AESEBURxFormat      = Attribute(ControlAESEBUReceiver)<<8 | 1
	AESEBURxErrorStatus = Attribute(ControlAESEBUReceiver)<<8 | 2
	AESEBURxSampleRate  = Attribute(ControlAESEBUReceiver)<<8 | 3
)

// AES/EBU transmitter attributes.
const (
	AESEBUTxFormat     = Attribute(ControlAESEBUTransmitter)<<8 | 1
	AESEBUTxSampleRate = Attribute(ControlAESEBUTransmitter)<<8 | 2
)

// Tone detector attributes.
const (
	ToneDetectorState     = Attribute(ControlToneDetector)<<8 | 1
	ToneDetectorEnable    = Attribute(ControlToneDetector)<<8 | 2
	ToneDetectorFrequency = Attribute(ControlToneDetector)<<8 | 3
)

// Silence detector attributes.
const (
	SilenceDetectorState     = Attribute(ControlSilenceDetector)<<8 | 1
	SilenceDetectorEnable    = Attribute(ControlSilenceDetector)<<8 | 2
	SilenceDetectorThreshold = Attribute(ControlSilenceDetector)<<8 | 3
)

// Sample clock attributes.
const (
	SampleClockSource          = Attribute(ControlSampleClock)<<8 | 1
	SampleClockSampleRate      = Attribute(ControlSampleClock)<<8 | 2
	SampleClockSourceIndex     = Attribute(ControlSampleClock)<<8 | 3
	SampleClockLocalSampleRate = Attribute(ControlSampleClock)<<8 | 4
)

// Microphone attributes.
const (
	MicrophonePhantomPower = Attribute(ControlMicrophone)<<8 | 1
)

// Gain limits in millibels.
const (
	GainMin int16 = -10000
	GainMax int16 = 2400

	// MeterMin is reported by meters with no signal.
	MeterMin int16 = -20000
)

// Mute flags for VolumeMute.
const (
	MuteLeft  = 1 << 0
	MuteRight = 1 << 1
)

// Mixer node types.
const (
	SourceNodeNone    = 100
	SourceNodeOStream = 101
	SourceNodeLineIn  = 102
	SourceNodeAESEBU  = 103
	SourceNodeTuner   = 104
	SourceNodeMic     = 105

	DestNodeNone    = 200
	DestNodeIStream = 201
	DestNodeLineOut = 202
	DestNodeAESEBU  = 203
)
