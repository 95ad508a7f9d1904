package protocol

import "fmt"

// Code is a protocol error code carried in OpError frames.
type Code uint16

// Error codes.
const (
	ErrOK              Code = 0x0000 // Success / no error
	ErrUnknown         Code = 0x0001 // Unspecified error
	ErrNotFound        Code = 0x0002 // No document under the key
	ErrAlreadyExists   Code = 0x0003 // Create on a key that is taken
	ErrInternal        Code = 0x0004 // Server or storage failure
	ErrInvalidRequest  Code = 0x0005 // Malformed request or unknown opcode
	ErrInvalidDocument Code = 0x0006 // Document is not valid BINN
	ErrTooLarge        Code = 0x0007 // Frame or document exceeds a size limit
)

// ErrCodeNames maps error codes to human-readable identifiers for logging.
var ErrCodeNames = map[Code]string{
	ErrOK:              "OK",
	ErrUnknown:         "UNKNOWN",
	ErrNotFound:        "NOT_FOUND",
	ErrAlreadyExists:   "ALREADY_EXISTS",
	ErrInternal:        "INTERNAL_ERROR",
	ErrInvalidRequest:  "INVALID_REQUEST",
	ErrInvalidDocument: "INVALID_DOCUMENT",
	ErrTooLarge:        "TOO_LARGE",
}

func (c Code) String() string {
	if name, ok := ErrCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CODE(0x%04x)", uint16(c))
}

// RemoteError is an error reported by the peer in an OpError frame.
type RemoteError struct {
	Code    Code
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("binn remote error %s: %s", e.Code, e.Message)
}

// Is matches another *RemoteError with the same code, so callers can test
// errors.Is(err, &RemoteError{Code: ErrNotFound}).
func (e *RemoteError) Is(target error) bool {
	t, ok := target.(*RemoteError)
	return ok && t.Code == e.Code
}
