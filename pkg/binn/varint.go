package binn

import "fmt"

// Size field limits. Sizes up to maxShortSize take one byte; larger sizes take
// four bytes with the top bit of the first byte set, leaving 31 usable bits.
const (
	maxShortSize = 0x7F
	MaxSize      = 0x7FFFFFFF
	sizeLongFlag = 0x80
)

// SizeLen returns the number of bytes the size field for n occupies.
func SizeLen(n int) int {
	if n <= maxShortSize {
		return 1
	}
	return 4
}

// AppendSize appends the size field for n to dst.
func AppendSize(dst []byte, n int) ([]byte, error) {
	if n < 0 || n > MaxSize {
		return dst, fmt.Errorf("%w: size %d outside [0, %d]", ErrOverflow, n, MaxSize)
	}
	if n <= maxShortSize {
		return append(dst, byte(n)), nil
	}
	v := uint32(n) | 0x80000000
	return append(dst, byte(v>>24), byte(v>>16), byte(v>>8), byte(v)), nil
}

// WriteSize appends the size field for n.
func (b *Buffer) WriteSize(n int) error {
	data, err := AppendSize(b.data, n)
	if err != nil {
		return err
	}
	b.data = data
	return nil
}

// ReadSize reads a size field.
func (r *Reader) ReadSize() (int, error) {
	return readSize(r)
}

// readSize reads the first byte and, when its top bit is set, the three bytes
// that complete a 4-byte big-endian size.
func readSize(src source) (int, error) {
	first, err := src.ReadUint8()
	if err != nil {
		return 0, err
	}
	if first&sizeLongFlag == 0 {
		return int(first), nil
	}
	rest, err := src.ReadRaw(3)
	if err != nil {
		return 0, err
	}
	v := uint32(first&^sizeLongFlag)<<24 | uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2])
	return int(v), nil
}
