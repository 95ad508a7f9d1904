package binn

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// source is the byte supply a Decoder reads from: either an in-memory Reader
// or an io.Reader consumed exactly as far as the current value extends.
type source interface {
	ReadUint8() (uint8, error)
	ReadUint16() (uint16, error)
	ReadUint32() (uint32, error)
	ReadUint64() (uint64, error)
	ReadFloat64() (float64, error)
	ReadRaw(n int) ([]byte, error)
	Offset() int
	// Remaining returns the number of unread bytes, or -1 when unknown.
	Remaining() int
}

// streamChunk bounds the single allocation made for one read from a stream;
// longer payloads are accumulated as they arrive so a forged length cannot
// reserve memory the stream never delivers.
const streamChunk = 64 << 10

// streamSource reads from an io.Reader without reading ahead.
type streamSource struct {
	r      io.Reader
	br     io.ByteReader
	offset int
	one    [1]byte
}

func newStreamSource(r io.Reader) *streamSource {
	s := &streamSource{r: r}
	if br, ok := r.(io.ByteReader); ok {
		s.br = br
	}
	return s
}

func (s *streamSource) Offset() int    { return s.offset }
func (s *streamSource) Remaining() int { return -1 }

// ReadUint8 returns io.EOF unwrapped when the stream ends cleanly so that the
// decoder can tell end-of-stream from truncation.
func (s *streamSource) ReadUint8() (uint8, error) {
	var (
		b   byte
		err error
	)
	if s.br != nil {
		b, err = s.br.ReadByte()
	} else {
		_, err = io.ReadFull(s.r, s.one[:])
		b = s.one[0]
	}
	switch {
	case err == io.EOF:
		return 0, io.EOF
	case err != nil:
		return 0, s.fail(1, err)
	}
	s.offset++
	return b, nil
}

func (s *streamSource) ReadRaw(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative read length %d", ErrInvalidFormat, n)
	}
	if n <= streamChunk {
		buf := make([]byte, n)
		m, err := io.ReadFull(s.r, buf)
		s.offset += m
		if err != nil {
			return nil, s.fail(n, err)
		}
		return buf, nil
	}
	var buf bytes.Buffer
	m, err := io.CopyN(&buf, s.r, int64(n))
	s.offset += int(m)
	if err != nil {
		return nil, s.fail(n, err)
	}
	return buf.Bytes(), nil
}

func (s *streamSource) ReadUint16() (uint16, error) {
	b, err := s.ReadRaw(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (s *streamSource) ReadUint32() (uint32, error) {
	b, err := s.ReadRaw(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (s *streamSource) ReadUint64() (uint64, error) {
	b, err := s.ReadRaw(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (s *streamSource) ReadFloat64() (float64, error) {
	v, err := s.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (s *streamSource) fail(n int, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: stream ended reading %d bytes at offset %d", ErrTruncated, n, s.offset)
	}
	return fmt.Errorf("binn: read stream: %w", err)
}
