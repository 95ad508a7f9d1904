package binn

import (
	"encoding/binary"
	"math"
)

// Buffer is a growable byte buffer used for BINN encoding.
// All multi-byte integers are written in big-endian (network) byte order.
type Buffer struct {
	data []byte
}

// NewBuffer returns a Buffer pre-allocated with the given capacity.
func NewBuffer(cap int) *Buffer {
	return &Buffer{data: make([]byte, 0, cap)}
}

// Bytes returns the accumulated encoded bytes.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Reset clears the buffer for reuse.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}

// grow ensures room for n additional bytes, returning the write offset.
func (b *Buffer) grow(n int) int {
	off := len(b.data)
	need := off + n
	if need <= cap(b.data) {
		b.data = b.data[:need]
		return off
	}
	newCap := cap(b.data) * 2
	if newCap < need {
		newCap = need
	}
	tmp := make([]byte, need, newCap)
	copy(tmp, b.data)
	b.data = tmp
	return off
}

// WriteUint8 appends a single byte.
func (b *Buffer) WriteUint8(v uint8) {
	off := b.grow(1)
	b.data[off] = v
}

// WriteUint16 appends a 16-bit unsigned integer.
func (b *Buffer) WriteUint16(v uint16) {
	off := b.grow(2)
	binary.BigEndian.PutUint16(b.data[off:], v)
}

// WriteUint32 appends a 32-bit unsigned integer.
func (b *Buffer) WriteUint32(v uint32) {
	off := b.grow(4)
	binary.BigEndian.PutUint32(b.data[off:], v)
}

// WriteUint64 appends a 64-bit unsigned integer.
func (b *Buffer) WriteUint64(v uint64) {
	off := b.grow(8)
	binary.BigEndian.PutUint64(b.data[off:], v)
}

// WriteFloat64 appends a 64-bit IEEE 754 float.
func (b *Buffer) WriteFloat64(v float64) {
	b.WriteUint64(math.Float64bits(v))
}

// WriteRaw appends p without any length prefix.
func (b *Buffer) WriteRaw(p []byte) {
	off := b.grow(len(p))
	copy(b.data[off:], p)
}

// writeRawString appends s without any length prefix.
func (b *Buffer) writeRawString(s string) {
	off := b.grow(len(s))
	copy(b.data[off:], s)
}
