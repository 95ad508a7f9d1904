package binn

import (
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// Smallest encoded entry of each container kind, used to bound entry counts
// against the input that is left.
var minEntryLen = map[byte]int{
	TagList:    1,
	TagObject:  2,
	TagMap:     MapKeySize + 1,
	TagByteMap: ByteMapKeySize + 1,
}

// Decoder reads BINN values from an io.Reader. It never reads past the end
// of the value being decoded, so a stream may carry other data after it.
type Decoder struct {
	src  source
	opts options
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	return &Decoder{src: newStreamSource(r), opts: newOptions(opts)}
}

// Decode reads the next value. It returns io.EOF if the stream ends before
// the first byte of a value and ErrTruncated if it ends inside one.
func (d *Decoder) Decode() (Value, error) {
	tag, err := d.src.ReadUint8()
	if err != nil {
		return nil, err
	}
	return d.readTagged(tag, d.src.Offset()-1, 0)
}

// Decode parses data, which must hold exactly one encoded value.
func Decode(data []byte, opts ...Option) (Value, error) {
	d := &Decoder{src: NewReader(data), opts: newOptions(opts)}
	v, err := d.readValue(0)
	if err != nil {
		return nil, err
	}
	if n := d.src.Remaining(); n > 0 {
		return nil, &FormatError{Tag: data[d.src.Offset()], Offset: d.src.Offset(), Reason: fmt.Sprintf("%d trailing bytes after value", n)}
	}
	return v, nil
}

// DecodePrefix parses the value at the start of data and returns it with the
// number of bytes it occupied. Bytes after the value are left alone.
func DecodePrefix(data []byte, opts ...Option) (Value, int, error) {
	d := &Decoder{src: NewReader(data), opts: newOptions(opts)}
	v, err := d.readValue(0)
	if err != nil {
		return nil, 0, err
	}
	return v, d.src.Offset(), nil
}

func (d *Decoder) readValue(depth int) (Value, error) {
	tag, err := d.u8()
	if err != nil {
		return nil, err
	}
	return d.readTagged(tag, d.src.Offset()-1, depth)
}

func (d *Decoder) readTagged(tag byte, off, depth int) (Value, error) {
	switch tag {
	case TagNull:
		return Null{}, nil
	case TagTrue:
		return Bool(true), nil
	case TagFalse:
		return Bool(false), nil
	case TagUint8, TagInt8:
		b, err := d.u8()
		if err != nil {
			return nil, err
		}
		if tag == TagInt8 {
			return Int(int8(b)), nil
		}
		return Uint(b), nil
	case TagUint16, TagInt16:
		v, err := d.u16()
		if err != nil {
			return nil, err
		}
		if tag == TagInt16 {
			return Int(int16(v)), nil
		}
		return Uint(v), nil
	case TagUint32, TagInt32:
		v, err := d.u32()
		if err != nil {
			return nil, err
		}
		if tag == TagInt32 {
			return Int(int32(v)), nil
		}
		return Uint(v), nil
	case TagUint64, TagInt64:
		v, err := d.u64()
		if err != nil {
			return nil, err
		}
		if tag == TagInt64 {
			return Int(int64(v)), nil
		}
		return Uint(v), nil
	case TagFloat32:
		v, err := d.u32()
		if err != nil {
			return nil, err
		}
		return Float(math.Float32frombits(v)), nil
	case TagFloat64, TagDatetime:
		f, err := d.f64()
		if err != nil {
			return nil, err
		}
		if tag == TagDatetime {
			return Time(f), nil
		}
		return Float(f), nil
	case TagString:
		return d.readString(off)
	case TagBlob:
		n, err := d.u32()
		if err != nil {
			return nil, err
		}
		data, err := d.raw(int(n))
		if err != nil {
			return nil, err
		}
		return Bytes(clone(data)), nil
	case TagTime:
		return nil, &FormatError{Tag: tag, Offset: off, Reason: "textual time is reserved"}
	case TagList, TagObject, TagMap, TagByteMap:
		return d.readContainer(tag, off, depth)
	}
	if _, ok := d.opts.registry.decoderFor(tag); !ok {
		return nil, &FormatError{Tag: tag, Offset: off, Reason: "unknown tag"}
	}
	n, err := d.size()
	if err != nil {
		return nil, err
	}
	data, err := d.raw(n)
	if err != nil {
		return nil, err
	}
	return Custom{Tag: tag, Data: clone(data)}, nil
}

func (d *Decoder) readString(off int) (Value, error) {
	n, err := d.size()
	if err != nil {
		return nil, err
	}
	b, err := d.raw(n)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(b) {
		return nil, &FormatError{Tag: TagString, Offset: off, Reason: "string is not valid UTF-8"}
	}
	s := String(b)
	// The terminator is consumed without being checked.
	if _, err := d.u8(); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Decoder) readContainer(tag byte, off, depth int) (Value, error) {
	if depth >= d.opts.maxDepth {
		return nil, &FormatError{Tag: tag, Offset: off, Reason: fmt.Sprintf("nesting deeper than %d", d.opts.maxDepth)}
	}
	size, err := d.size()
	if err != nil {
		return nil, err
	}
	count, err := d.size()
	if err != nil {
		return nil, err
	}
	header := d.src.Offset() - off
	if size < header {
		return nil, &FormatError{Tag: tag, Offset: off, Reason: fmt.Sprintf("declared size %d is smaller than the %d byte header", size, header)}
	}
	if rem := d.src.Remaining(); rem >= 0 {
		if size-header > rem {
			return nil, fmt.Errorf("%w: %s at offset %d declares %d bytes, %d available", ErrTruncated, TagName(tag), off, size, header+rem)
		}
		if count > rem/minEntryLen[tag] {
			return nil, fmt.Errorf("%w: %s at offset %d declares %d entries in %d bytes", ErrTruncated, TagName(tag), off, count, rem)
		}
	}
	hint := count
	if hint > 1024 {
		hint = 1024
	}

	var v Value
	switch tag {
	case TagList:
		list := make(List, 0, hint)
		for i := 0; i < count; i++ {
			item, err := d.readValue(depth + 1)
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		v = list
	case TagObject:
		obj := make(Object, 0, hint)
		for i := 0; i < count; i++ {
			keyOff := d.src.Offset()
			n, err := d.u8()
			if err != nil {
				return nil, err
			}
			kb, err := d.raw(int(n))
			if err != nil {
				return nil, err
			}
			if !utf8.Valid(kb) {
				return nil, &FormatError{Tag: tag, Offset: keyOff, Reason: "object key is not valid UTF-8"}
			}
			key := string(kb)
			item, err := d.readValue(depth + 1)
			if err != nil {
				return nil, err
			}
			obj = append(obj, Field{Key: key, Value: item})
		}
		v = obj
	case TagMap:
		m := make(Map, 0, hint)
		for i := 0; i < count; i++ {
			key, err := d.u32()
			if err != nil {
				return nil, err
			}
			item, err := d.readValue(depth + 1)
			if err != nil {
				return nil, err
			}
			m = append(m, MapEntry{Key: key, Value: item})
		}
		v = m
	case TagByteMap:
		m := make(ByteMap, 0, hint)
		for i := 0; i < count; i++ {
			kb, err := d.raw(ByteMapKeySize)
			if err != nil {
				return nil, err
			}
			var e ByteMapEntry
			copy(e.Key[:], kb)
			if e.Value, err = d.readValue(depth + 1); err != nil {
				return nil, err
			}
			m = append(m, e)
		}
		v = m
	}

	if used := d.src.Offset() - off; d.opts.strictSize && used != size {
		return nil, &FormatError{Tag: tag, Offset: off, Reason: fmt.Sprintf("declared size %d, container occupies %d bytes", size, used)}
	}
	return v, nil
}

func (d *Decoder) u16() (uint16, error) {
	v, err := d.src.ReadUint16()
	if err != nil {
		return 0, d.truncated(err)
	}
	return v, nil
}

func (d *Decoder) u32() (uint32, error) {
	v, err := d.src.ReadUint32()
	if err != nil {
		return 0, d.truncated(err)
	}
	return v, nil
}

func (d *Decoder) u64() (uint64, error) {
	v, err := d.src.ReadUint64()
	if err != nil {
		return 0, d.truncated(err)
	}
	return v, nil
}

func (d *Decoder) f64() (float64, error) {
	v, err := d.src.ReadFloat64()
	if err != nil {
		return 0, d.truncated(err)
	}
	return v, nil
}

// u8, raw and size read from the source and turn a clean end of stream inside
// a value into ErrTruncated.
func (d *Decoder) u8() (uint8, error) {
	b, err := d.src.ReadUint8()
	if err != nil {
		return 0, d.truncated(err)
	}
	return b, nil
}

func (d *Decoder) raw(n int) ([]byte, error) {
	b, err := d.src.ReadRaw(n)
	if err != nil {
		return nil, d.truncated(err)
	}
	return b, nil
}

func (d *Decoder) size() (int, error) {
	n, err := readSize(d.src)
	if err != nil {
		return 0, d.truncated(err)
	}
	return n, nil
}

func (d *Decoder) truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: stream ended at offset %d", ErrTruncated, d.src.Offset())
	}
	return err
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
