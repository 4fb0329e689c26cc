package wire

// ErrorCode is the closed set of standard error codes used by the core and
// by protocol handlers replying with ProtocolException.
type ErrorCode int32

const (
	ErrorUnsupportedProtocol ErrorCode = 1
	ErrorInvalidMessageType  ErrorCode = 2
	ErrorInvalidArgument     ErrorCode = 3
	ErrorPermissionDenied    ErrorCode = 4
	ErrorNotSupported        ErrorCode = 5
	ErrorInvalidState        ErrorCode = 6
	ErrorInvalidURI          ErrorCode = 7
	ErrorExpired             ErrorCode = 8
	ErrorTimeout             ErrorCode = 9
	ErrorRequestDenied       ErrorCode = 10
)

var errorCodeNames = map[ErrorCode]string{
	ErrorUnsupportedProtocol: "UnsupportedProtocol",
	ErrorInvalidMessageType:  "InvalidMessageType",
	ErrorInvalidArgument:     "InvalidArgument",
	ErrorPermissionDenied:    "PermissionDenied",
	ErrorNotSupported:        "NotSupported",
	ErrorInvalidState:        "InvalidState",
	ErrorInvalidURI:          "InvalidUri",
	ErrorExpired:             "Expired",
	ErrorTimeout:             "Timeout",
	ErrorRequestDenied:       "RequestDenied",
}

func (c ErrorCode) String() string {
	if n, ok := errorCodeNames[c]; ok {
		return n
	}
	return "Unknown"
}

// ProtocolException is the standard error reply body. SubErrors carries
// v1.2's per-request error collections keyed by sub-id; it is left empty on
// v1.1 sessions.
type ProtocolException struct {
	ErrorCode    ErrorCode        `json:"errorCode"`
	ErrorMessage string           `json:"errorMessage"`
	SubErrors    map[string]SubError `json:"errors,omitempty"`
}

// SubError is one entry of a v1.2 per-request error collection.
type SubError struct {
	ErrorCode    ErrorCode `json:"errorCode"`
	ErrorMessage string    `json:"errorMessage"`
}

func (p ProtocolException) Error() string {
	return p.ErrorCode.String() + ": " + p.ErrorMessage
}

// NewProtocolException builds a ProtocolException for the given code/message.
func NewProtocolException(code ErrorCode, message string) ProtocolException {
	return ProtocolException{ErrorCode: code, ErrorMessage: message}
}
