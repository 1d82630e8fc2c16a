// Package hpi defines the message and response model exchanged with audio
// adapter DSPs.
//
// A [Message] carries a fixed header and one payload selected by its object
// kind. Payload sizes are fixed per object kind, independent of function, so
// a receiver can size buffers from the header alone:
//
//	m := hpi.NewMessage(hpi.ControlGetState, 0, 3)
//	m.Control.Attribute = hpi.VolumeGain
//	b, err := m.MarshalBinary()
//
// Every [Response] starts life through [NewResponse], which echoes the
// message's object and function and marks the error field with
// [ErrorProcessingMessage] until a backend fills it in. [ValidateResponse]
// rejects replies that do not echo their message.
package hpi
