// Package protocol defines the BINN document protocol: opcodes, error codes,
// message bodies and framing. Every message body is itself a BINN object.
package protocol

// Opcode constants identify message types on the wire. Requests use the low
// range, responses start at 0x80.
const (
	OpPut    byte = 0x01 // store a document under a key
	OpGet    byte = 0x02 // fetch a document by key
	OpDelete byte = 0x03 // remove a document
	OpList   byte = 0x04 // list keys under a prefix
	OpPing   byte = 0x05 // liveness probe

	OpValue byte = 0x81 // document response to OpGet
	OpKeys  byte = 0x82 // key list response to OpList
	OpOK    byte = 0x83 // empty success response to OpPut and OpDelete
	OpPong  byte = 0x84 // response to OpPing

	OpError byte = 0xFF
)

// OpcodeNames maps opcodes to human-readable names for logging and metrics.
var OpcodeNames = map[byte]string{
	OpPut:    "PUT",
	OpGet:    "GET",
	OpDelete: "DELETE",
	OpList:   "LIST",
	OpPing:   "PING",
	OpValue:  "VALUE",
	OpKeys:   "KEYS",
	OpOK:     "OK",
	OpPong:   "PONG",
	OpError:  "ERROR",
}

// OpcodeName returns the name of op, or "UNKNOWN" for unassigned opcodes.
func OpcodeName(op byte) string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}
