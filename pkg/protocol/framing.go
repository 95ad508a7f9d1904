package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxPayloadSize (16 MiB) bounds the payload of a single frame.
const MaxPayloadSize = 16 << 20

// HeaderSize is the length of the frame header.
const HeaderSize = 5

// ErrPayloadTooLarge is returned when a frame's declared length exceeds
// MaxPayloadSize.
var ErrPayloadTooLarge = errors.New("binn protocol: payload exceeds maximum size")

// WriteFrame writes a single frame to w in one Write call.
//
// Frame layout:
//
//	[4 bytes] payload length (little-endian uint32)
//	[1 byte]  opcode
//	[N bytes] payload
func WriteFrame(w io.Writer, opcode byte, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return ErrPayloadTooLarge
	}
	frame := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(payload)))
	frame[4] = opcode
	copy(frame[HeaderSize:], payload)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("binn protocol: write frame: %w", err)
	}
	return nil
}

// ReadFrame reads a single frame from r, returning the opcode and payload.
// Returns io.EOF when the reader is exhausted cleanly.
func ReadFrame(r io.Reader) (opcode byte, payload []byte, err error) {
	var hdr [HeaderSize]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	length := binary.LittleEndian.Uint32(hdr[0:4])
	opcode = hdr[4]

	if length > MaxPayloadSize {
		return 0, nil, ErrPayloadTooLarge
	}

	payload = make([]byte, length)
	if length > 0 {
		if _, err = io.ReadFull(r, payload); err != nil {
			return 0, nil, fmt.Errorf("binn protocol: read frame payload: %w", err)
		}
	}
	return opcode, payload, nil
}
