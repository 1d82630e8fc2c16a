package hpi

import "strconv"

// ErrorCode is the error field of a response. Codes are grouped in ranges:
// 100s message, 200s adapter and boot, 300s stream, 400s mixer and control,
// 900s DSP communication.
type ErrorCode uint16

// Success.
const ErrorNone ErrorCode = 0

// Message errors.
const (
	ErrorInvalidType            ErrorCode = 101
	ErrorInvalidObject          ErrorCode = 102
	ErrorInvalidFunction        ErrorCode = 103
	ErrorInvalidObjectIndex     ErrorCode = 104
	ErrorObjectNotOpen          ErrorCode = 105
	ErrorObjectAlreadyOpen      ErrorCode = 106
	ErrorInvalidResource        ErrorCode = 107
	ErrorInvalidResponse        ErrorCode = 108
	ErrorProcessingMessage      ErrorCode = 109 // Response never filled in
	ErrorInvalidHandle          ErrorCode = 110
	ErrorUnimplemented          ErrorCode = 111
	ErrorResponseBufferTooSmall ErrorCode = 112
	ErrorResponseMismatch       ErrorCode = 113
)

// Adapter and boot errors.
const (
	ErrorBadAdapter             ErrorCode = 201
	ErrorBadAdapterNumber       ErrorCode = 202
	ErrorDuplicateAdapterNumber ErrorCode = 203
	ErrorDSPBootload            ErrorCode = 204
	ErrorDSPSelfTest            ErrorCode = 205
	ErrorDSPFileNotFound        ErrorCode = 206
	ErrorDSPHardware            ErrorCode = 207
	ErrorMemoryAlloc            ErrorCode = 208
	ErrorPLDLoad                ErrorCode = 209
	ErrorDSPFileFormat          ErrorCode = 210
	ErrorDSPCodeVerify          ErrorCode = 211
)

// Stream errors.
const (
	ErrorInvalidFormat      ErrorCode = 301
	ErrorInvalidSampleRate  ErrorCode = 302
	ErrorInvalidChannels    ErrorCode = 303
	ErrorInvalidDataSize    ErrorCode = 304
	ErrorDataSizeMismatch   ErrorCode = 305
	ErrorInvalidStreamState ErrorCode = 306
	ErrorInvalidOperation   ErrorCode = 307
)

// Mixer and control errors.
const (
	ErrorInvalidNodeType         ErrorCode = 401
	ErrorInvalidControl          ErrorCode = 402
	ErrorInvalidControlValue     ErrorCode = 403
	ErrorInvalidControlAttribute ErrorCode = 404
	ErrorControlDisabled         ErrorCode = 405
)

// DSP communication errors. The code adds the failed phase (send, get,
// data, boot, resync) to the base.
const (
	ErrorDSPCommunication ErrorCode = 900
	ErrorDSPSend          ErrorCode = 901
	ErrorDSPGet           ErrorCode = 902
	ErrorDSPData          ErrorCode = 903
	ErrorDSPBoot          ErrorCode = 904
	ErrorDSPResync        ErrorCode = 905
)

var errorNames = map[ErrorCode]string{
	ErrorNone:                    "none",
	ErrorInvalidType:             "invalid message type",
	ErrorInvalidObject:           "invalid object",
	ErrorInvalidFunction:         "invalid function",
	ErrorInvalidObjectIndex:      "invalid object index",
	ErrorObjectNotOpen:           "object not open",
	ErrorObjectAlreadyOpen:       "object already open",
	ErrorInvalidResource:         "invalid resource",
	ErrorInvalidResponse:         "invalid response",
	ErrorProcessingMessage:       "message not processed",
	ErrorInvalidHandle:           "invalid handle",
	ErrorUnimplemented:           "unimplemented",
	ErrorResponseBufferTooSmall:  "response buffer too small",
	ErrorResponseMismatch:        "response mismatch",
	ErrorBadAdapter:              "unsupported adapter",
	ErrorBadAdapterNumber:        "bad adapter number",
	ErrorDuplicateAdapterNumber:  "duplicate adapter number",
	ErrorDSPBootload:             "DSP bootload failed",
	ErrorDSPSelfTest:             "DSP self test failed",
	ErrorDSPFileNotFound:         "DSP code file not found",
	ErrorDSPHardware:             "DSP hardware failure",
	ErrorMemoryAlloc:             "memory allocation failed",
	ErrorPLDLoad:                 "PLD load failed",
	ErrorDSPFileFormat:           "DSP code file format",
	ErrorDSPCodeVerify:           "DSP code verify failed",
	ErrorInvalidFormat:           "invalid format",
	ErrorInvalidSampleRate:       "invalid sample rate",
	ErrorInvalidChannels:         "invalid channel count",
	ErrorInvalidDataSize:         "invalid data size",
	ErrorDataSizeMismatch:        "data size mismatch",
	ErrorInvalidStreamState:      "invalid stream state",
	ErrorInvalidOperation:        "invalid operation",
	ErrorInvalidNodeType:         "invalid node type",
	ErrorInvalidControl:          "invalid control",
	ErrorInvalidControlValue:     "invalid control value",
	ErrorInvalidControlAttribute: "invalid control attribute",
	ErrorControlDisabled:         "control disabled",
	ErrorDSPCommunication:        "DSP communication",
	ErrorDSPSend:                 "DSP communication (send)",
	ErrorDSPGet:                  "DSP communication (get)",
	ErrorDSPData:                 "DSP communication (data)",
	ErrorDSPBoot:                 "DSP communication (boot)",
	ErrorDSPResync:               "DSP communication (resync)",
}

// String returns a description of the error code.
func (e ErrorCode) String() string {
	if s, ok := errorNames[e]; ok {
		return s
	}
	return "error " + strconv.Itoa(int(e))
}

// IsCommunication reports whether e is in the DSP communication range, that
// is the hardware was unreachable rather than the request invalid.
func (e ErrorCode) IsCommunication() bool {
	return e >= ErrorDSPCommunication && e < 1000
}
