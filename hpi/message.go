package hpi

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ardnew/softhpi/pkg"
)

// MessageType distinguishes requests from responses on the wire.
type MessageType uint8

// Message types.
const (
	TypeRequest  MessageType = 1
	TypeResponse MessageType = 2
	TypeData     MessageType = 3
)

// ProtocolVersion is written into every message header.
const ProtocolVersion = 1

// Header is the fixed message header.
type Header struct {
	Size         uint16 // Header plus payload, in bytes
	Type         MessageType
	Version      uint8
	Object       ObjectKind
	Function     Function
	AdapterIndex uint16
	ObjIndex     uint16
	DSPIndex     uint16
	_            uint16
}

// ResponseHeader is the fixed response header.
type ResponseHeader struct {
	Size          uint16 // Header plus payload, in bytes
	Type          MessageType
	Version       uint8
	Object        ObjectKind
	Function      Function
	Error         ErrorCode
	SpecificError uint16
	_             uint32
}

// Header sizes in bytes.
const (
	HeaderSize         = 16
	ResponseHeaderSize = 16
)

// =============================================================================
// Payloads
// =============================================================================

// Format describes a stream's audio format.
type Format struct {
	SampleRate uint32
	BitRate    uint32
	Attributes uint32
	Channels   uint16
	Code       FormatCode
}

// SubsysMessage is the subsystem payload.
type SubsysMessage struct {
	AdapterIndex uint16
	_            uint16
	Param        uint32
}

// SubsysResponse is the subsystem response payload.
type SubsysResponse struct {
	Version      uint32
	DataVersion  uint32
	NumAdapters  uint16
	AdapterIndex uint16
	AdapterType  uint16
	_            uint16
}

// AdapterMessage is the adapter payload.
type AdapterMessage struct {
	Property uint16
	_        uint16
	Mode     uint32
	Param1   uint32
	Param2   uint32
	Address  uint32 // Debug read start address
	Count    uint32 // Debug read length in bytes
}

// AdapterInfo describes an adapter as reported by its DSP.
type AdapterInfo struct {
	NumOStreams  uint16
	NumIStreams  uint16
	Type         uint16
	Index        uint16
	SerialNumber uint32
	Version      uint32
	Mode         uint32
}

// AssertInfo is the DSP assert mailbox.
type AssertInfo struct {
	Count    uint16 // Asserts pending, zero when none
	DSPIndex uint16
	Line     uint32
	Param    uint32
	Text     [16]byte
}

// Message returns the assert text up to the first NUL.
func (a *AssertInfo) Message() string {
	if i := bytes.IndexByte(a.Text[:], 0); i >= 0 {
		return string(a.Text[:i])
	}
	return string(a.Text[:])
}

// SetMessage stores s in the assert text, truncated to fit.
func (a *AssertInfo) SetMessage(s string) {
	a.Text = [16]byte{}
	copy(a.Text[:len(a.Text)-1], s)
}

// AdapterResponse is the adapter response payload.
type AdapterResponse struct {
	Info   AdapterInfo
	Assert AssertInfo
	Param1 uint32
	Param2 uint32
}

// StreamMessage is the payload shared by output and input streams.
type StreamMessage struct {
	Format        Format
	DataSize      uint32 // Bytes to write or read
	BufferCommand BufferCommand
	BufferSize    uint32
	PhysAddr      uint32
	Param         uint32
}

// StreamResponse is the stream response payload.
type StreamResponse struct {
	State              StreamState
	_                  uint16
	BufferSize         uint32
	DataAvailable      uint32
	SamplesTransferred uint32
	AuxDataAvailable   uint32
	PhysAddr           uint32
}

// MixerMessage is the mixer payload.
type MixerMessage struct {
	NodeType1    uint16
	NodeIndex1   uint16
	NodeType2    uint16
	NodeIndex2   uint16
	ControlType  ControlType
	ControlIndex uint16
}

// MixerResponse is the mixer response payload.
type MixerResponse struct {
	ControlIndex uint16
	NumControls  uint16
	NodeType1    uint16
	NodeIndex1   uint16
	NodeType2    uint16
	NodeIndex2   uint16
	ControlType  ControlType
	_            uint16
}

// ControlMessage is the control payload.
type ControlMessage struct {
	Attribute Attribute
	_         uint16
	Param1    uint32
	Param2    uint32
	Gain      [2]int16 // Millibels per channel
}

// ControlResponse is the control response payload.
type ControlResponse struct {
	Param1 uint32
	Param2 uint32
	Gain   [2]int16
	Param3 uint32
}

// GenericMessage is the payload of objects without a dedicated layout.
type GenericMessage struct {
	Param [4]uint32
}

// GenericResponse is the response payload of objects without a dedicated
// layout.
type GenericResponse struct {
	Param [4]uint32
}

// =============================================================================
// Message and Response
// =============================================================================

// Message is a request to an adapter. Only the payload selected by the
// header's object kind is carried on the wire.
type Message struct {
	Header
	Subsys  SubsysMessage
	Adapter AdapterMessage
	Stream  StreamMessage
	Mixer   MixerMessage
	Control ControlMessage
	Generic GenericMessage

	// Data is the host buffer of a data phase. It never travels inside the
	// message itself.
	Data []byte
}

// Response is a reply from an adapter.
type Response struct {
	ResponseHeader
	Subsys  SubsysResponse
	Adapter AdapterResponse
	Stream  StreamResponse
	Mixer   MixerResponse
	Control ControlResponse
	Generic GenericResponse
}

func (m *Message) payload() any {
	switch m.Object {
	case ObjectSubsystem:
		return &m.Subsys
	case ObjectAdapter:
		return &m.Adapter
	case ObjectOStream, ObjectIStream:
		return &m.Stream
	case ObjectMixer:
		return &m.Mixer
	case ObjectControl:
		return &m.Control
	default:
		return &m.Generic
	}
}

func (r *Response) payload() any {
	switch r.Object {
	case ObjectSubsystem:
		return &r.Subsys
	case ObjectAdapter:
		return &r.Adapter
	case ObjectOStream, ObjectIStream:
		return &r.Stream
	case ObjectMixer:
		return &r.Mixer
	case ObjectControl:
		return &r.Control
	default:
		return &r.Generic
	}
}

// Payload sizes per object kind, fixed regardless of function.
var (
	messagePayloadSizes  [objectMax + 1]int
	responsePayloadSizes [objectMax + 1]int
)

func init() {
	for k := ObjectSubsystem; k <= objectMax; k++ {
		if !k.Valid() {
			continue
		}
		m := Message{Header: Header{Object: k}}
		r := Response{ResponseHeader: ResponseHeader{Object: k}}
		messagePayloadSizes[k] = binary.Size(m.payload())
		responsePayloadSizes[k] = binary.Size(r.payload())
	}
}

// MessageSize returns the wire size of a message to object kind k, or 0 if
// k is invalid.
func MessageSize(k ObjectKind) int {
	if !k.Valid() {
		return 0
	}
	return HeaderSize + messagePayloadSizes[k]
}

// ResponseSize returns the wire size of a response from object kind k, or 0
// if k is invalid.
func ResponseSize(k ObjectKind) int {
	if !k.Valid() {
		return 0
	}
	return ResponseHeaderSize + responsePayloadSizes[k]
}

// NewMessage returns a request for function fn addressed to an adapter and
// object index.
func NewMessage(fn Function, adapter, index uint16) *Message {
	m := &Message{}
	m.Type = TypeRequest
	m.Version = ProtocolVersion
	m.Object = fn.Object()
	m.Function = fn
	m.AdapterIndex = adapter
	m.ObjIndex = index
	m.Size = uint16(MessageSize(m.Object))
	return m
}

// NewResponse returns the response skeleton for m. The error field holds
// ErrorProcessingMessage until a backend fills the response in.
func NewResponse(m *Message) *Response {
	r := &Response{}
	r.Type = TypeResponse
	r.Version = m.Version
	r.Object = m.Object
	r.Function = m.Function
	r.Error = ErrorProcessingMessage
	r.Size = uint16(ResponseSize(m.Object))
	return r
}

// ValidateResponse checks that r answers m.
func ValidateResponse(m *Message, r *Response) error {
	if r.Type != TypeResponse || r.Object != m.Object || r.Function != m.Function {
		return fmt.Errorf("hpi: %s response to %s: %w", r.Function, m.Function, pkg.ErrResponseMismatch)
	}
	return nil
}

// MarshalBinary encodes the header and the object's payload.
func (m *Message) MarshalBinary() ([]byte, error) {
	size := MessageSize(m.Object)
	if size == 0 {
		return nil, fmt.Errorf("hpi: marshal %s: %w", m.Object, pkg.ErrInvalidParameter)
	}
	m.Size = uint16(size)
	buf := bytes.NewBuffer(make([]byte, 0, size))
	if err := binary.Write(buf, binary.LittleEndian, &m.Header); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, m.payload()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a message. Data is left untouched.
func (m *Message) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("hpi: message of %d bytes: %w", len(data), pkg.ErrInvalidParameter)
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &m.Header); err != nil {
		return err
	}
	size := MessageSize(m.Object)
	if size == 0 || int(m.Size) != size || len(data) < size {
		return fmt.Errorf("hpi: message %s size %d: %w", m.Object, m.Size, pkg.ErrInvalidParameter)
	}
	return binary.Read(bytes.NewReader(data[HeaderSize:size]), binary.LittleEndian, m.payload())
}

// MarshalBinary encodes the header and, unless the response is header only,
// the object's payload.
func (r *Response) MarshalBinary() ([]byte, error) {
	size := ResponseSize(r.Object)
	if size == 0 {
		return nil, fmt.Errorf("hpi: marshal response %s: %w", r.Object, pkg.ErrInvalidParameter)
	}
	if int(r.Size) != ResponseHeaderSize {
		r.Size = uint16(size)
	}
	buf := bytes.NewBuffer(make([]byte, 0, size))
	if err := binary.Write(buf, binary.LittleEndian, &r.ResponseHeader); err != nil {
		return nil, err
	}
	if r.Size == ResponseHeaderSize {
		return buf.Bytes(), nil
	}
	if err := binary.Write(buf, binary.LittleEndian, r.payload()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a response. A response holding only a header is
// accepted and leaves the payload zeroed.
func (r *Response) UnmarshalBinary(data []byte) error {
	if len(data) < ResponseHeaderSize {
		return fmt.Errorf("hpi: response of %d bytes: %w", len(data), pkg.ErrResponseSize)
	}
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &r.ResponseHeader); err != nil {
		return err
	}
	if r.Size == ResponseHeaderSize {
		return nil
	}
	size := ResponseSize(r.Object)
	if size == 0 || int(r.Size) != size || len(data) < size {
		return fmt.Errorf("hpi: response %s size %d: %w", r.Object, r.Size, pkg.ErrResponseSize)
	}
	return binary.Read(bytes.NewReader(data[ResponseHeaderSize:size]), binary.LittleEndian, r.payload())
}

// PeekSize returns the size field of an encoded header.
func PeekSize(data []byte) int {
	if len(data) < 2 {
		return 0
	}
	return int(binary.LittleEndian.Uint16(data))
}
