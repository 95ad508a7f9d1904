package binn

import (
	"errors"
	"fmt"
	"io"
)

// Serialize encodes a Go value. See FromNative for the accepted types.
func Serialize(v any, reg *Registry) ([]byte, error) {
	val, err := FromNative(v, reg)
	if err != nil {
		return nil, err
	}
	return Encode(val, WithRegistry(reg))
}

// Deserialize decodes data, which must hold exactly one value, into plain Go
// values. See Native for the result types.
func Deserialize(data []byte, reg *Registry) (any, error) {
	val, err := Decode(data, WithRegistry(reg))
	if err != nil {
		return nil, err
	}
	return Native(val, reg)
}

// SerializeTo encodes v and writes it to w in a single Write call.
func SerializeTo(w io.Writer, v any, reg *Registry) error {
	return NewEncoder(w, WithRegistry(reg)).Encode(v)
}

// DeserializeFrom reads one value from r. It consumes exactly the bytes of
// that value, so r can be positioned at the next one afterwards. An empty
// stream is reported as ErrTruncated.
func DeserializeFrom(r io.Reader, reg *Registry) (any, error) {
	val, err := NewDecoder(r, WithRegistry(reg)).Decode()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty stream", ErrTruncated)
	}
	if err != nil {
		return nil, err
	}
	return Native(val, reg)
}
