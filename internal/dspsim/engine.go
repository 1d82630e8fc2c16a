package dspsim

import (
	"sync"

	"github.com/ardnew/softhpi/cache"
	"github.com/ardnew/softhpi/hpi"
	"github.com/ardnew/softhpi/pkg"
)

// Config describes the adapter a simulated DSP reports.
type Config struct {
	AdapterType      uint16
	Index            uint16
	SerialNumber     uint32
	Version          uint32
	NumOStreams      int
	NumIStreams      int
	StreamBufferSize int       // Bytes of DSP-side buffering per stream
	Controls         []Control // Nil selects DefaultControls
}

// Control is one mixer control of the simulated adapter.
type Control struct {
	Type       hpi.ControlType
	NodeType1  uint16
	NodeIndex1 uint16
	NodeType2  uint16
	NodeIndex2 uint16
}

// DefaultControls returns one control of every kind the simulator models.
func DefaultControls() []Control {
	return []Control{
		{hpi.ControlVolume, hpi.SourceNodeOStream, 0, hpi.DestNodeLineOut, 0},
		{hpi.ControlMeter, hpi.SourceNodeOStream, 0, hpi.DestNodeLineOut, 0},
		{hpi.ControlMultiplexer, hpi.SourceNodeNone, 0, hpi.DestNodeIStream, 0},
		{hpi.ControlLevel, hpi.SourceNodeLineIn, 0, hpi.DestNodeNone, 0},
		{hpi.ControlChannelMode, hpi.SourceNodeOStream, 0, hpi.DestNodeLineOut, 0},
		{hpi.ControlTuner, hpi.SourceNodeTuner, 0, hpi.DestNodeNone, 0},
		{hpi.ControlAESEBUReceiver, hpi.SourceNodeAESEBU, 0, hpi.DestNodeNone, 0},
		{hpi.ControlAESEBUTransmitter, hpi.SourceNodeNone, 0, hpi.DestNodeAESEBU, 0},
		{hpi.ControlToneDetector, hpi.SourceNodeLineIn, 0, hpi.DestNodeNone, 0},
		{hpi.ControlSilenceDetector, hpi.SourceNodeNone, 0, hpi.DestNodeLineOut, 0},
		{hpi.ControlSampleClock, hpi.SourceNodeNone, 0, hpi.DestNodeNone, 0},
		{hpi.ControlMicrophone, hpi.SourceNodeMic, 0, hpi.DestNodeNone, 0},
		{hpi.ControlMeter, hpi.SourceNodeLineIn, 0, hpi.DestNodeIStream, 0},
	}
}

// DefaultConfig returns a two-in, four-out adapter.
func DefaultConfig() Config {
	return Config{
		AdapterType:      0x6244,
		SerialNumber:     0x10000,
		Version:          0x0401,
		NumOStreams:      4,
		NumIStreams:      2,
		StreamBufferSize: 16384,
	}
}

// attribute permissions
type access uint8

const (
	readOnly access = iota + 1
	readWrite
)

var attributes = map[hpi.Attribute]access{
	hpi.VolumeGain:                 readWrite,
	hpi.VolumeAutofade:             readWrite,
	hpi.VolumeMute:                 readWrite,
	hpi.VolumeRange:                readOnly,
	hpi.MeterRMS:                   readOnly,
	hpi.MeterPeak:                  readOnly,
	hpi.MeterRMSBallistics:         readWrite,
	hpi.MeterPeakBallistics:        readWrite,
	hpi.MultiplexerSource:          readWrite,
	hpi.MultiplexerQuerySource:     readOnly,
	hpi.LevelGain:                  readWrite,
	hpi.LevelRange:                 readOnly,
	hpi.ChannelModeMode:            readWrite,
	hpi.TunerBand:                  readWrite,
	hpi.TunerFreq:                  readWrite,
	hpi.TunerLevelAvg:              readOnly,
	hpi.TunerLevelRaw:              readOnly,
	hpi.TunerGain:                  readWrite,
	hpi.AESEBURxFormat:             readWrite,
	hpi.AESEBURxErrorStatus:        readOnly,
	hpi.AESEBURxSampleRate:         readOnly,
	hpi.AESEBUTxFormat:             readWrite,
	hpi.AESEBUTxSampleRate:         readWrite,
	hpi.ToneDetectorState:          readOnly,
	hpi.ToneDetectorEnable:         readWrite,
	hpi.ToneDetectorFrequency:      readOnly,
	hpi.SilenceDetectorState:       readOnly,
	hpi.SilenceDetectorEnable:      readWrite,
	hpi.SilenceDetectorThreshold:   readWrite,
	hpi.SampleClockSource:          readWrite,
	hpi.SampleClockSampleRate:      readWrite,
	hpi.SampleClockSourceIndex:     readWrite,
	hpi.SampleClockLocalSampleRate: readWrite,
	hpi.MicrophonePhantomPower:     readWrite,
}

// Sources a multiplexer can select, in query order.
var muxSources = [][2]uint16{
	{hpi.SourceNodeLineIn, 0},
	{hpi.SourceNodeAESEBU, 0},
	{hpi.SourceNodeTuner, 0},
	{hpi.SourceNodeMic, 0},
	{hpi.SourceNodeOStream, 0},
}

type control struct {
	Control
	entry *cache.Entry
	extra map[hpi.Attribute]hpi.ControlResponse
}

type stream struct {
	open        bool
	state       hpi.StreamState
	format      hpi.Format
	data        []byte // Queued for playback, or recorded and unread
	transferred uint32
	granted     bool
	physAddr    uint32
	bufferSize  uint32
}

// transfer is the data phase expected after the last message.
type transfer struct {
	inbound bool
	n       int
	sink    func([]byte)
	source  []byte
}

// Engine is the message-level firmware of a simulated DSP. It answers
// messages and runs their data phases; the register models move the bytes.
// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	faults   *Faults
	open     bool
	mode     uint32
	props    map[uint16]uint32
	asserts  []hpi.AssertInfo
	ostreams []*stream
	istreams []*stream
	controls []*control
	image    []byte
	imageGen uint64
	onCache  func(image []byte)
	memory   func(addr uint32) uint32
	pending  *transfer
	messages uint64
}

// NewEngine returns a DSP engine for cfg. faults may be nil.
func NewEngine(cfg Config, faults *Faults) *Engine {
	d := DefaultConfig()
	if cfg.NumOStreams <= 0 {
		cfg.NumOStreams = d.NumOStreams
	}
	if cfg.NumIStreams <= 0 {
		cfg.NumIStreams = d.NumIStreams
	}
	if cfg.StreamBufferSize <= 0 {
		cfg.StreamBufferSize = d.StreamBufferSize
	}
	if cfg.Controls == nil {
		cfg.Controls = DefaultControls()
	}
	e := &Engine{
		cfg:    cfg,
		faults: faults,
		props:  make(map[uint16]uint32),
		memory: func(addr uint32) uint32 { return addr ^ 0x5A5A5A5A },
	}
	for i := 0; i < cfg.NumOStreams; i++ {
		e.ostreams = append(e.ostreams, &stream{state: hpi.StateStopped})
	}
	for i := 0; i < cfg.NumIStreams; i++ {
		e.istreams = append(e.istreams, &stream{state: hpi.StateStopped})
	}

	for i, c := range cfg.Controls {
		e.image = cache.AppendEntry(e.image, c.Type, uint16(i))
	}
	index := cache.New(len(cfg.Controls), e.image)
	for i, c := range cfg.Controls {
		e.controls = append(e.controls, &control{
			Control: c,
			entry:   index.Entry(uint16(i)),
			extra:   make(map[hpi.Attribute]hpi.ControlResponse),
		})
	}
	for _, c := range e.controls {
		e.initControl(c)
	}
	return e
}

func (e *Engine) initControl(c *control) {
	set := func(a hpi.Attribute, cr hpi.ControlResponse) {
		if !c.entry.Store(a, &cr) {
			c.extra[a] = cr
		}
	}
	switch c.Type {
	case hpi.ControlMeter:
		set(hpi.MeterPeak, hpi.ControlResponse{Gain: [2]int16{hpi.MeterMin, hpi.MeterMin}})
		set(hpi.MeterRMS, hpi.ControlResponse{Gain: [2]int16{hpi.MeterMin, hpi.MeterMin}})
	case hpi.ControlMultiplexer:
		set(hpi.MultiplexerSource, hpi.ControlResponse{Param1: hpi.SourceNodeLineIn})
	case hpi.ControlChannelMode:
		set(hpi.ChannelModeMode, hpi.ControlResponse{Param1: 1})
	case hpi.ControlTuner:
		set(hpi.TunerBand, hpi.ControlResponse{Param1: 1})
		set(hpi.TunerFreq, hpi.ControlResponse{Param1: 100000})
		set(hpi.TunerLevelAvg, hpi.ControlResponse{Gain: [2]int16{-2000}})
	case hpi.ControlAESEBUReceiver:
		set(hpi.AESEBURxFormat, hpi.ControlResponse{Param1: 1})
		set(hpi.AESEBURxSampleRate, hpi.ControlResponse{Param1: 48000})
	case hpi.ControlAESEBUTransmitter:
		set(hpi.AESEBUTxFormat, hpi.ControlResponse{Param1: 1})
		set(hpi.AESEBUTxSampleRate, hpi.ControlResponse{Param1: 48000})
	case hpi.ControlToneDetector:
		set(hpi.ToneDetectorFrequency, hpi.ControlResponse{Param1: 1000})
	case hpi.ControlSilenceDetector:
		set(hpi.SilenceDetectorThreshold, hpi.ControlResponse{Gain: [2]int16{-6000}})
	case hpi.ControlSampleClock:
		set(hpi.SampleClockSource, hpi.ControlResponse{Param1: 1})
		set(hpi.SampleClockSampleRate, hpi.ControlResponse{Param1: 48000})
		set(hpi.SampleClockLocalSampleRate, hpi.ControlResponse{Param1: 48000})
	}
}

// Info returns the adapter information the engine reports.
func (e *Engine) Info() hpi.AdapterInfo {
	return hpi.AdapterInfo{
		NumOStreams:  uint16(e.cfg.NumOStreams),
		NumIStreams:  uint16(e.cfg.NumIStreams),
		Type:         e.cfg.AdapterType,
		Index:        e.cfg.Index,
		SerialNumber: e.cfg.SerialNumber,
		Version:      e.cfg.Version,
		Mode:         e.mode,
	}
}

// Messages returns the number of messages handled.
func (e *Engine) Messages() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.messages
}

// =============================================================================
// Control Cache Image
// =============================================================================

// NumControls returns the number of mixer controls.
func (e *Engine) NumControls() int {
	return len(e.controls)
}

// CacheImage returns a copy of the control cache region and its generation,
// which advances on every change.
func (e *Engine) CacheImage() ([]byte, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]byte(nil), e.image...), e.imageGen
}

// OnCacheChange registers fn to receive the cache region after each change.
// fn runs with the engine locked and must not call back into it.
func (e *Engine) OnCacheChange(fn func(image []byte)) {
	e.mu.Lock()
	e.onCache = fn
	if fn != nil {
		fn(e.image)
	}
	e.mu.Unlock()
}

func (e *Engine) cacheChanged() {
	e.imageGen++
	if e.onCache != nil {
		e.onCache(e.image)
	}
}

// SetMeter sets the levels a meter control reports.
func (e *Engine) SetMeter(index int, peak, rms [2]int16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.controls) || e.controls[index].Type != hpi.ControlMeter {
		return
	}
	c := e.controls[index]
	c.entry.Store(hpi.MeterPeak, &hpi.ControlResponse{Gain: peak})
	c.entry.Store(hpi.MeterRMS, &hpi.ControlResponse{Gain: rms})
	e.cacheChanged()
}

// =============================================================================
// Test Hooks
// =============================================================================

// SetMemory replaces the source of debug reads.
func (e *Engine) SetMemory(fn func(addr uint32) uint32) {
	e.mu.Lock()
	e.memory = fn
	e.mu.Unlock()
}

// InjectAssert queues an assert for GetAssert to report.
func (e *Engine) InjectAssert(dsp uint16, line uint32, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a := hpi.AssertInfo{DSPIndex: dsp, Line: line}
	a.SetMessage(text)
	e.asserts = append(e.asserts, a)
}

// PopAssert removes the oldest queued assert.
func (e *Engine) PopAssert() (hpi.AssertInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.asserts) == 0 {
		return hpi.AssertInfo{}, false
	}
	a := e.asserts[0]
	a.Count = uint16(len(e.asserts))
	e.asserts = e.asserts[1:]
	return a, true
}

// Played drains and returns the bytes written to an output stream.
func (e *Engine) Played(index int) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.ostreams) {
		return nil
	}
	s := e.ostreams[index]
	d := s.data
	s.data = nil
	return d
}

// Record appends captured audio to an input stream.
func (e *Engine) Record(index int, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.istreams) {
		return
	}
	s := e.istreams[index]
	room := e.cfg.StreamBufferSize - len(s.data)
	if len(data) > room {
		data = data[:room]
	}
	s.data = append(s.data, data...)
}

// StreamState returns the state of a stream.
func (e *Engine) StreamState(obj hpi.ObjectKind, index int) hpi.StreamState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s := e.stream(obj, uint16(index)); s != nil {
		return s.state
	}
	return 0
}

// =============================================================================
// Host Buffers
// =============================================================================

// Grant describes a host buffer granted to the DSP.
type Grant struct {
	PhysAddr uint32
	Size     uint32
}

// Granted returns the host buffer granted to a stream, if any.
func (e *Engine) Granted(obj hpi.ObjectKind, index int) (Grant, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.stream(obj, uint16(index))
	if s == nil || !s.granted {
		return Grant{}, false
	}
	return Grant{PhysAddr: s.physAddr, Size: s.bufferSize}, true
}

// Consume moves bytes the host placed in a granted output buffer into the
// stream, as the DSP's DMA engine would. It returns how many it took.
func (e *Engine) Consume(index int, data []byte) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.ostreams) {
		return 0
	}
	s := e.ostreams[index]
	room := e.cfg.StreamBufferSize - len(s.data)
	if len(data) > room {
		data = data[:room]
	}
	s.data = append(s.data, data...)
	s.transferred += uint32(len(data))
	return len(data)
}

// Produce removes up to len(buf) recorded bytes from an input stream into
// buf, for delivery into a granted buffer. It returns the count.
func (e *Engine) Produce(index int, buf []byte) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < 0 || index >= len(e.istreams) {
		return 0
	}
	s := e.istreams[index]
	n := copy(buf, s.data)
	s.data = s.data[n:]
	s.transferred += uint32(n)
	return n
}

// =============================================================================
// Data Phases
// =============================================================================

// Inbound returns the bytes the pending data phase expects from the host.
func (e *Engine) Inbound() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil || !e.pending.inbound {
		return 0
	}
	return e.pending.n
}

// Outbound returns the bytes the pending data phase has for the host.
func (e *Engine) Outbound() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil || e.pending.inbound {
		return 0
	}
	return len(e.pending.source)
}

// Receive delivers host data to the pending data phase. Bytes beyond what
// the phase expects are discarded.
func (e *Engine) Receive(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.pending
	if p == nil || !p.inbound {
		return
	}
	if len(data) > p.n {
		data = data[:p.n]
	}
	p.sink(data)
	p.n -= len(data)
	if p.n == 0 {
		e.pending = nil
	}
}

// Transmit takes up to n bytes from the pending data phase.
func (e *Engine) Transmit(n int) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.pending
	if p == nil || p.inbound {
		return nil
	}
	if n > len(p.source) {
		n = len(p.source)
	}
	out := p.source[:n]
	p.source = p.source[n:]
	if len(p.source) == 0 {
		e.pending = nil
	}
	return out
}

// =============================================================================
// Message Handling
// =============================================================================

// HandleBytes decodes a request, handles it and encodes the response.
func (e *Engine) HandleBytes(req []byte) []byte {
	var m hpi.Message
	if err := m.UnmarshalBinary(req); err != nil {
		r := hpi.NewResponse(&m)
		r.Size = hpi.ResponseHeaderSize
		r.Error = hpi.ErrorInvalidType
		if !m.Object.Valid() {
			r.Object = hpi.ObjectSubsystem
			r.Error = hpi.ErrorInvalidObject
		}
		b, _ := r.MarshalBinary()
		return b
	}
	b, _ := e.Handle(&m).MarshalBinary()
	return b
}

// Handle answers m.
func (e *Engine) Handle(m *hpi.Message) *hpi.Response {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages++
	e.pending = nil

	r := hpi.NewResponse(m)
	r.Error = hpi.ErrorNone
	switch m.Object {
	case hpi.ObjectAdapter:
		e.adapter(m, r)
	case hpi.ObjectOStream, hpi.ObjectIStream:
		e.streamMessage(m, r)
	case hpi.ObjectMixer:
		e.mixer(m, r)
	case hpi.ObjectControl:
		e.controlMessage(m, r)
	case hpi.ObjectSubsystem:
		r.Error = hpi.ErrorInvalidObject
	default:
		r.Error = hpi.ErrorUnimplemented
	}
	if e.faults.corrupted() {
		r.Function++
	}
	if r.Error != hpi.ErrorNone {
		pkg.LogDebug(pkg.ComponentSim, "message rejected",
			"function", m.Function.String(),
			"index", m.ObjIndex,
			"error", r.Error.String())
	}
	return r
}

func (e *Engine) adapter(m *hpi.Message, r *hpi.Response) {
	switch m.Function {
	case hpi.AdapterOpen:
		e.open = true
	case hpi.AdapterClose:
		e.open = false
	case hpi.AdapterGetInfo:
		r.Adapter.Info = e.Info()
	case hpi.AdapterGetAssert:
		if len(e.asserts) > 0 {
			r.Adapter.Assert = e.asserts[0]
			r.Adapter.Assert.Count = uint16(len(e.asserts))
			e.asserts = e.asserts[1:]
		}
	case hpi.AdapterTestAssert:
		a := hpi.AssertInfo{Line: m.Adapter.Param1, Param: m.Adapter.Param2}
		a.SetMessage("test assert")
		e.asserts = append(e.asserts, a)
	case hpi.AdapterSetMode:
		e.mode = m.Adapter.Mode
	case hpi.AdapterGetMode:
		r.Adapter.Info.Mode = e.mode
	case hpi.AdapterEnableCapability, hpi.AdapterSelfTest:
	case hpi.AdapterSetProperty:
		e.props[m.Adapter.Property] = m.Adapter.Param1
	case hpi.AdapterGetProperty:
		v, ok := e.props[m.Adapter.Property]
		if !ok {
			r.Error = hpi.ErrorInvalidOperation
		}
		r.Adapter.Param1 = v
	case hpi.AdapterDebugRead:
		n := int(m.Adapter.Count) &^ 3
		out := make([]byte, 0, n)
		for addr := m.Adapter.Address; len(out) < n; addr += 4 {
			w := e.memory(addr)
			out = append(out, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
		}
		r.Adapter.Param1 = uint32(n)
		if n > 0 {
			e.pending = &transfer{source: out}
		}
	default:
		r.Error = hpi.ErrorInvalidFunction
	}
}

func (e *Engine) stream(obj hpi.ObjectKind, index uint16) *stream {
	list := e.ostreams
	if obj == hpi.ObjectIStream {
		list = e.istreams
	}
	if int(index) >= len(list) {
		return nil
	}
	return list[index]
}

func validFormat(f hpi.Format) hpi.ErrorCode {
	switch f.Code {
	case hpi.FormatPCM16Signed, hpi.FormatPCM8Unsigned, hpi.FormatPCM24Signed,
		hpi.FormatPCM32Signed, hpi.FormatPCM32Float, hpi.FormatPCM16BigEndian,
		hpi.FormatMPEGLayer2, hpi.FormatMPEGLayer3:
	default:
		return hpi.ErrorInvalidFormat
	}
	if f.SampleRate < 8000 || f.SampleRate > 192000 {
		return hpi.ErrorInvalidSampleRate
	}
	if f.Channels < 1 || f.Channels > 8 {
		return hpi.ErrorInvalidChannels
	}
	return hpi.ErrorNone
}

func (e *Engine) streamMessage(m *hpi.Message, r *hpi.Response) {
	s := e.stream(m.Object, m.ObjIndex)
	if s == nil {
		r.Error = hpi.ErrorInvalidObjectIndex
		return
	}
	size := e.cfg.StreamBufferSize
	out := m.Object == hpi.ObjectOStream

	switch m.Function {
	case hpi.OStreamOpen, hpi.IStreamOpen:
		if s.open {
			r.Error = hpi.ErrorObjectAlreadyOpen
			return
		}
		*s = stream{open: true, state: hpi.StateStopped}
		return
	case hpi.OStreamQueryFormat, hpi.IStreamQueryFormat:
		r.Error = validFormat(m.Stream.Format)
		return
	}
	if !s.open {
		r.Error = hpi.ErrorObjectNotOpen
		return
	}

	switch m.Function {
	case hpi.OStreamClose, hpi.IStreamClose:
		*s = stream{state: hpi.StateStopped}
	case hpi.OStreamSetFormat, hpi.IStreamSetFormat:
		if r.Error = validFormat(m.Stream.Format); r.Error == hpi.ErrorNone {
			s.format = m.Stream.Format
		}
	case hpi.OStreamStart:
		s.state = hpi.StatePlaying
	case hpi.IStreamStart:
		s.state = hpi.StateRecording
	case hpi.OStreamStop, hpi.IStreamStop:
		s.state = hpi.StateStopped
	case hpi.OStreamReset, hpi.IStreamReset:
		s.state = hpi.StateStopped
		s.data = nil
		s.transferred = 0
	case hpi.OStreamGetInfo, hpi.IStreamGetInfo:
		r.Stream.State = s.state
		r.Stream.BufferSize = uint32(size)
		r.Stream.DataAvailable = uint32(len(s.data))
		r.Stream.SamplesTransferred = s.transferred
	case hpi.OStreamWrite:
		n := int(m.Stream.DataSize)
		if n > size-len(s.data) {
			r.Error = hpi.ErrorInvalidDataSize
			return
		}
		if n > 0 {
			e.pending = &transfer{inbound: true, n: n, sink: func(b []byte) {
				s.data = append(s.data, b...)
				s.transferred += uint32(len(b))
			}}
		}
	case hpi.IStreamRead:
		n := int(m.Stream.DataSize)
		if n > len(s.data) {
			r.Error = hpi.ErrorInvalidDataSize
			return
		}
		src := append([]byte(nil), s.data[:n]...)
		s.data = s.data[n:]
		s.transferred += uint32(n)
		if short := e.faults.withhold(); short > 0 {
			src = src[:max(0, n-short)]
		}
		if len(src) > 0 {
			e.pending = &transfer{source: src}
		}
	case hpi.OStreamHostBufferAlloc, hpi.IStreamHostBufferAlloc:
		switch m.Stream.BufferCommand {
		case hpi.BufferCmdGrantAdapter:
			if m.Stream.PhysAddr == 0 || m.Stream.BufferSize == 0 {
				r.Error = hpi.ErrorInvalidDataSize
				return
			}
			s.granted = true
			s.physAddr = m.Stream.PhysAddr
			s.bufferSize = m.Stream.BufferSize
		default:
			r.Error = hpi.ErrorInvalidOperation
		}
	case hpi.OStreamHostBufferFree, hpi.IStreamHostBufferFree:
		if !s.granted {
			r.Error = hpi.ErrorInvalidOperation
			return
		}
		s.granted = false
		s.physAddr = 0
		s.bufferSize = 0
	case hpi.OStreamHostBufferGetInfo, hpi.IStreamHostBufferGetInfo:
		if !s.granted {
			r.Error = hpi.ErrorInvalidOperation
			return
		}
		r.Stream.PhysAddr = s.physAddr
		r.Stream.BufferSize = s.bufferSize
	case hpi.OStreamSetVelocity:
		if !out {
			r.Error = hpi.ErrorInvalidFunction
		}
	default:
		r.Error = hpi.ErrorInvalidFunction
	}
}

func (e *Engine) mixer(m *hpi.Message, r *hpi.Response) {
	switch m.Function {
	case hpi.MixerOpen, hpi.MixerClose:
	case hpi.MixerGetInfo:
		r.Mixer.NumControls = uint16(len(e.controls))
	case hpi.MixerGetControl:
		mm := m.Mixer
		for i, c := range e.controls {
			if c.Type == mm.ControlType &&
				c.NodeType1 == mm.NodeType1 && c.NodeIndex1 == mm.NodeIndex1 &&
				c.NodeType2 == mm.NodeType2 && c.NodeIndex2 == mm.NodeIndex2 {
				r.Mixer.ControlIndex = uint16(i)
				return
			}
		}
		r.Error = hpi.ErrorInvalidControl
	case hpi.MixerGetControlByIndex:
		i := int(m.Mixer.ControlIndex)
		if i >= len(e.controls) {
			r.Error = hpi.ErrorInvalidObjectIndex
			return
		}
		c := e.controls[i]
		r.Mixer.ControlIndex = uint16(i)
		r.Mixer.NodeType1 = c.NodeType1
		r.Mixer.NodeIndex1 = c.NodeIndex1
		r.Mixer.NodeType2 = c.NodeType2
		r.Mixer.NodeIndex2 = c.NodeIndex2
		r.Mixer.ControlType = c.Type
	default:
		r.Error = hpi.ErrorInvalidFunction
	}
}

func clampGain(g int16) int16 {
	return min(max(g, hpi.GainMin), hpi.GainMax)
}

func (e *Engine) controlMessage(m *hpi.Message, r *hpi.Response) {
	i := int(m.ObjIndex)
	if i >= len(e.controls) {
		r.Error = hpi.ErrorInvalidObjectIndex
		return
	}
	c := e.controls[i]
	a := m.Control.Attribute
	acc, known := attributes[a]
	if !known || a.Control() != c.Type {
		r.Error = hpi.ErrorInvalidControlAttribute
		return
	}

	switch m.Function {
	case hpi.ControlGetInfo:
		r.Control.Param1 = uint32(c.Type)
	case hpi.ControlGetState:
		e.getState(c, m, r)
	case hpi.ControlSetState:
		if acc != readWrite {
			r.Error = hpi.ErrorInvalidOperation
			return
		}
		e.setState(c, m, r)
	default:
		r.Error = hpi.ErrorInvalidFunction
	}
}

func (e *Engine) getState(c *control, m *hpi.Message, r *hpi.Response) {
	a := m.Control.Attribute
	switch a {
	case hpi.VolumeRange, hpi.LevelRange:
		r.Control.Gain = [2]int16{hpi.GainMin, hpi.GainMax}
		r.Control.Param1 = 100
		return
	case hpi.MultiplexerQuerySource:
		q := int(m.Control.Param1)
		if q >= len(muxSources) {
			r.Error = hpi.ErrorInvalidControlValue
			return
		}
		r.Control.Param1 = uint32(muxSources[q][0])
		r.Control.Param2 = uint32(muxSources[q][1])
		return
	}
	if c.entry.Load(a, &r.Control) {
		return
	}
	r.Control = c.extra[a]
}

func (e *Engine) setState(c *control, m *hpi.Message, r *hpi.Response) {
	a := m.Control.Attribute
	v := hpi.ControlResponse{
		Param1: m.Control.Param1,
		Param2: m.Control.Param2,
		Gain:   m.Control.Gain,
	}
	switch a {
	case hpi.VolumeGain, hpi.LevelGain, hpi.TunerGain:
		v.Gain = [2]int16{clampGain(v.Gain[0]), clampGain(v.Gain[1])}
	case hpi.VolumeMute:
		v.Param1 &= hpi.MuteLeft | hpi.MuteRight
	case hpi.MultiplexerSource:
		ok := false
		for _, s := range muxSources {
			if uint32(s[0]) == v.Param1 && uint32(s[1]) == v.Param2 {
				ok = true
			}
		}
		if !ok {
			r.Error = hpi.ErrorInvalidControlValue
			return
		}
	case hpi.SampleClockSampleRate, hpi.SampleClockLocalSampleRate, hpi.AESEBUTxSampleRate:
		if v.Param1 < 8000 || v.Param1 > 192000 {
			r.Error = hpi.ErrorInvalidControlValue
			return
		}
	}
	if c.entry.Store(a, &v) {
		e.cacheChanged()
	} else {
		c.extra[a] = v
	}
	r.Control = v
}
