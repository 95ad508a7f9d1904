package binn

import (
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// defaultMaxDepth bounds container nesting on both encode and decode.
const defaultMaxDepth = 512

// Option configures an Encoder or Decoder.
type Option func(*options)

type options struct {
	registry   *Registry
	strictSize bool
	maxDepth   int
}

func newOptions(opts []Option) options {
	o := options{maxDepth: defaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithRegistry supplies the custom type registry for the call.
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithStrictSize makes the decoder reject containers whose size field differs
// from the number of bytes they actually occupy.
func WithStrictSize() Option {
	return func(o *options) {
		o.strictSize = true
	}
}

// WithMaxDepth overrides the maximum container nesting depth.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// Encoder writes BINN values to an io.Writer. Each call to Encode writes one
// complete value, or nothing if encoding fails.
type Encoder struct {
	w    io.Writer
	opts options
	buf  *Buffer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	return &Encoder{w: w, opts: newOptions(opts), buf: NewBuffer(256)}
}

// Encode writes v. v may be a Value or a native Go value accepted by
// FromNative.
func (e *Encoder) Encode(v any) error {
	val, err := fromNative(v, e.opts.registry, 0, e.opts.maxDepth)
	if err != nil {
		return err
	}
	e.buf.Reset()
	if err := e.opts.writeValue(e.buf, val, 0); err != nil {
		return err
	}
	if _, err := e.w.Write(e.buf.Bytes()); err != nil {
		return fmt.Errorf("binn: write: %w", err)
	}
	return nil
}

// Encode serializes v.
func Encode(v Value, opts ...Option) ([]byte, error) {
	o := newOptions(opts)
	buf := NewBuffer(64)
	if err := o.writeValue(buf, v, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AppendEncode appends the encoding of v to dst.
func AppendEncode(dst []byte, v Value, opts ...Option) ([]byte, error) {
	o := newOptions(opts)
	buf := &Buffer{data: dst}
	if err := o.writeValue(buf, v, 0); err != nil {
		return dst, err
	}
	return buf.Bytes(), nil
}

func (o *options) writeValue(b *Buffer, v Value, depth int) error {
	switch v := v.(type) {
	case nil, Null:
		b.WriteUint8(TagNull)
	case Bool:
		if v {
			b.WriteUint8(TagTrue)
		} else {
			b.WriteUint8(TagFalse)
		}
	case Uint:
		writeUint(b, uint64(v))
	case Int:
		if v >= 0 {
			writeUint(b, uint64(v))
		} else {
			writeNegative(b, int64(v))
		}
	case Float:
		b.WriteUint8(TagFloat64)
		b.WriteFloat64(float64(v))
	case String:
		return writeString(b, string(v))
	case Bytes:
		if uint64(len(v)) > MaxBlobLen {
			return fmt.Errorf("%w: blob length %d exceeds %d", ErrOverflow, len(v), uint64(MaxBlobLen))
		}
		b.WriteUint8(TagBlob)
		b.WriteUint32(uint32(len(v)))
		b.WriteRaw(v)
	case Time:
		b.WriteUint8(TagDatetime)
		b.WriteFloat64(float64(v))
	case List:
		return o.writeContainer(b, TagList, len(v), depth, func(p *Buffer) error {
			for _, item := range v {
				if err := o.writeValue(p, item, depth+1); err != nil {
					return err
				}
			}
			return nil
		})
	case Object:
		return o.writeContainer(b, TagObject, len(v), depth, func(p *Buffer) error {
			for _, f := range v {
				if len(f.Key) > MaxObjectKeyLen {
					return fmt.Errorf("%w: object key of %d bytes exceeds %d", ErrOverflow, len(f.Key), MaxObjectKeyLen)
				}
				if !utf8.ValidString(f.Key) {
					return fmt.Errorf("%w: object key %q is not valid UTF-8", ErrInvalidFormat, f.Key)
				}
				p.WriteUint8(uint8(len(f.Key)))
				p.writeRawString(f.Key)
				if err := o.writeValue(p, f.Value, depth+1); err != nil {
					return err
				}
			}
			return nil
		})
	case Map:
		return o.writeContainer(b, TagMap, len(v), depth, func(p *Buffer) error {
			for _, e := range v {
				p.WriteUint32(e.Key)
				if err := o.writeValue(p, e.Value, depth+1); err != nil {
					return err
				}
			}
			return nil
		})
	case ByteMap:
		return o.writeContainer(b, TagByteMap, len(v), depth, func(p *Buffer) error {
			for _, e := range v {
				p.WriteRaw(e.Key[:])
				if err := o.writeValue(p, e.Value, depth+1); err != nil {
					return err
				}
			}
			return nil
		})
	case Custom:
		if IsReserved(v.Tag) {
			return fmt.Errorf("%w: custom value uses reserved tag 0x%02x (%s)", ErrConfiguration, v.Tag, TagNames[v.Tag])
		}
		b.WriteUint8(v.Tag)
		if err := b.WriteSize(len(v.Data)); err != nil {
			return err
		}
		b.WriteRaw(v.Data)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedType, v)
	}
	return nil
}

// writeContainer frames a container. The payload is encoded into a scratch
// buffer first; the size field then records the length of the complete
// encoding, header included, with the width of the size field itself taken
// into account.
func (o *options) writeContainer(b *Buffer, tag byte, count, depth int, fill func(*Buffer) error) error {
	if depth >= o.maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrOverflow, o.maxDepth)
	}
	if count > MaxSize {
		return fmt.Errorf("%w: %d entries exceed %d", ErrOverflow, count, MaxSize)
	}
	payload := NewBuffer(64)
	if err := fill(payload); err != nil {
		return err
	}
	total := containerSize(count, payload.Len())
	if total > MaxSize {
		return fmt.Errorf("%w: container of %d bytes exceeds %d", ErrOverflow, total, MaxSize)
	}
	b.WriteUint8(tag)
	if err := b.WriteSize(total); err != nil {
		return err
	}
	if err := b.WriteSize(count); err != nil {
		return err
	}
	b.WriteRaw(payload.Bytes())
	return nil
}

// containerSize returns the full encoded length of a container holding count
// entries in payloadLen bytes: tag, size field, count field and payload.
func containerSize(count, payloadLen int) int {
	rest := SizeLen(count) + payloadLen
	if total := 1 + 1 + rest; total <= maxShortSize {
		return total
	}
	return 1 + 4 + rest
}

func writeString(b *Buffer, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: string is not valid UTF-8", ErrInvalidFormat)
	}
	b.WriteUint8(TagString)
	if err := b.WriteSize(len(s)); err != nil {
		return err
	}
	b.writeRawString(s)
	b.WriteUint8(0)
	return nil
}

// writeUint writes v with the narrowest unsigned tag that holds it.
func writeUint(b *Buffer, v uint64) {
	switch {
	case v <= math.MaxUint8:
		b.WriteUint8(TagUint8)
		b.WriteUint8(uint8(v))
	case v <= math.MaxUint16:
		b.WriteUint8(TagUint16)
		b.WriteUint16(uint16(v))
	case v <= math.MaxUint32:
		b.WriteUint8(TagUint32)
		b.WriteUint32(uint32(v))
	default:
		b.WriteUint8(TagUint64)
		b.WriteUint64(v)
	}
}

// writeNegative writes v (< 0) with the narrowest signed tag that holds it.
func writeNegative(b *Buffer, v int64) {
	switch {
	case v >= math.MinInt8:
		b.WriteUint8(TagInt8)
		b.WriteUint8(uint8(int8(v)))
	case v >= math.MinInt16:
		b.WriteUint8(TagInt16)
		b.WriteUint16(uint16(int16(v)))
	case v >= math.MinInt32:
		b.WriteUint8(TagInt32)
		b.WriteUint32(uint32(int32(v)))
	default:
		b.WriteUint8(TagInt64)
		b.WriteUint64(uint64(v))
	}
}
