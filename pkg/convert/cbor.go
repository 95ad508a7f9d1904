package convert

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/strand-protocol/binn/pkg/binn"
)

// CustomCBORTagBase is the CBOR tag number custom BINN tag 0 maps to; custom
// tag t travels as CBOR tag CustomCBORTagBase+t, clear of the registered
// low tag numbers.
const CustomCBORTagBase uint64 = 0x62696E00 // "bin\x00"

const maxCBORDepth = 512

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	// Canonical (RFC 7049 §3.9) ordering so equal values encode identically.
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeUnixDynamic
	opts.TimeTag = cbor.EncTagRequired
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("convert: init CBOR enc mode: %v", err))
	}
	cborEncMode = em

	dm, err := cbor.DecOptions{
		MaxNestedLevels: maxCBORDepth,
		IndefLength:     cbor.IndefLengthAllowed,
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("convert: init CBOR dec mode: %v", err))
	}
	cborDecMode = dm
}

// ToCBOR renders v as canonical CBOR. Times use the epoch time tag, custom
// values a tag at CustomCBORTagBase+tag around a byte string, and ByteMap
// keys are byte strings.
func ToCBOR(v binn.Value) ([]byte, error) {
	n, err := cborNative(v)
	if err != nil {
		return nil, err
	}
	out, err := cborEncMode.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("convert: cbor: %w", err)
	}
	return out, nil
}

func cborNative(v binn.Value) (any, error) {
	switch x := v.(type) {
	case nil, binn.Null:
		return nil, nil
	case binn.Bool:
		return bool(x), nil
	case binn.Uint:
		return uint64(x), nil
	case binn.Int:
		return int64(x), nil
	case binn.Float:
		return float64(x), nil
	case binn.String:
		return string(x), nil
	case binn.Bytes:
		return nonNil(x), nil
	case binn.Time:
		return x.UTC(), nil
	case binn.List:
		out := make([]any, len(x))
		for i, item := range x {
			n, err := cborNative(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case binn.Object:
		out := make(map[string]any, len(x))
		for _, f := range x {
			n, err := cborNative(f.Value)
			if err != nil {
				return nil, err
			}
			out[f.Key] = n
		}
		return out, nil
	case binn.Map:
		out := make(map[uint32]any, len(x))
		for _, e := range x {
			n, err := cborNative(e.Value)
			if err != nil {
				return nil, err
			}
			out[e.Key] = n
		}
		return out, nil
	case binn.ByteMap:
		out := make(map[cbor.ByteString]any, len(x))
		for _, e := range x {
			n, err := cborNative(e.Value)
			if err != nil {
				return nil, err
			}
			out[cbor.ByteString(e.Key[:])] = n
		}
		return out, nil
	case binn.Custom:
		return cbor.Tag{Number: CustomCBORTagBase + uint64(x.Tag), Content: nonNil(x.Data)}, nil
	}
	return nil, fmt.Errorf("%w: %T", binn.ErrUnsupportedType, v)
}

// nonNil keeps empty blobs from encoding as CBOR null.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// FromCBOR converts one CBOR data item into a Value. Maps are written in
// sorted key order. Bignums must fit 64 bits.
func FromCBOR(data []byte) (binn.Value, error) {
	var n any
	if err := cborDecMode.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("convert: cbor: %w", err)
	}
	return cborValue(n)
}

func cborValue(n any) (binn.Value, error) {
	switch x := n.(type) {
	case nil:
		return binn.Null{}, nil
	case bool:
		return binn.Bool(x), nil
	case uint64:
		return binn.Uint(x), nil
	case int64:
		return binn.Int(x), nil
	case float64:
		return binn.Float(x), nil
	case float32:
		return binn.Float(x), nil
	case string:
		return binn.String(x), nil
	case []byte:
		return binn.Bytes(x), nil
	case time.Time:
		return binn.TimeOf(x), nil
	case big.Int:
		return binn.FromNative(&x, nil)
	case *big.Int:
		return binn.FromNative(x, nil)
	case []any:
		list := make(binn.List, len(x))
		for i, item := range x {
			v, err := cborValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = v
		}
		return list, nil
	case map[any]any:
		return cborMap(x)
	case cbor.Tag:
		return cborTag(x)
	}
	return nil, fmt.Errorf("%w: CBOR item of Go type %T", binn.ErrUnsupportedType, n)
}

func cborTag(t cbor.Tag) (binn.Value, error) {
	switch {
	case t.Number >= CustomCBORTagBase && t.Number <= CustomCBORTagBase+0xFF:
		tag := byte(t.Number - CustomCBORTagBase)
		data, ok := t.Content.([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: custom tag 0x%02x content is %T, want bytes", binn.ErrUnsupportedType, tag, t.Content)
		}
		if binn.IsReserved(tag) {
			return nil, fmt.Errorf("%w: custom tag 0x%02x is reserved", binn.ErrConfiguration, tag)
		}
		return binn.Custom{Tag: tag, Data: data}, nil
	case t.Number == 0:
		s, ok := t.Content.(string)
		if !ok {
			return nil, fmt.Errorf("%w: time tag content is %T", binn.ErrUnsupportedType, t.Content)
		}
		tm, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("convert: cbor time: %w", err)
		}
		return binn.TimeOf(tm), nil
	case t.Number == 1:
		switch c := t.Content.(type) {
		case uint64:
			return binn.Time(float64(c)), nil
		case int64:
			return binn.Time(float64(c)), nil
		case float64:
			return binn.Time(c), nil
		}
		return nil, fmt.Errorf("%w: epoch time content is %T", binn.ErrUnsupportedType, t.Content)
	}
	return nil, fmt.Errorf("%w: CBOR tag %d", binn.ErrUnsupportedType, t.Number)
}

// cborMap applies the key policy of binn.FromNative: text keys make an
// Object, unsigned keys up to MaxUint32 a Map, 8-byte byte strings a
// ByteMap, and anything else or a mix is rejected.
func cborMap(m map[any]any) (binn.Value, error) {
	const (
		classText = iota + 1
		classInt
		classBytes
	)
	className := func(c int) string {
		return [...]string{"", "text", "integer", "byte string"}[c]
	}
	class := 0
	for k := range m {
		c := 0
		switch kk := k.(type) {
		case string:
			c = classText
		case uint64:
			c = classInt
		case int64:
			if kk < 0 {
				return nil, fmt.Errorf("%w: map key %d outside [0, %d]", binn.ErrOverflow, kk, uint32(math.MaxUint32))
			}
			c = classInt
		case cbor.ByteString:
			if len(kk) != binn.ByteMapKeySize {
				return nil, fmt.Errorf("%w: byte string key of %d bytes, want %d", binn.ErrUnsupportedType, len(kk), binn.ByteMapKeySize)
			}
			c = classBytes
		default:
			return nil, fmt.Errorf("%w: CBOR map key of Go type %T", binn.ErrUnsupportedType, k)
		}
		if class == 0 {
			class = c
		} else if c != class {
			return nil, fmt.Errorf("%w: map mixes %s and %s keys", binn.ErrUnsupportedType, className(class), className(c))
		}
	}

	switch class {
	case classInt:
		out := make(binn.Map, 0, len(m))
		for k, item := range m {
			var key uint64
			switch kk := k.(type) {
			case uint64:
				key = kk
			case int64:
				key = uint64(kk)
			}
			if key > math.MaxUint32 {
				return nil, fmt.Errorf("%w: map key %d outside [0, %d]", binn.ErrOverflow, key, uint32(math.MaxUint32))
			}
			v, err := cborValue(item)
			if err != nil {
				return nil, err
			}
			out = append(out, binn.MapEntry{Key: uint32(key), Value: v})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
		return out, nil
	case classBytes:
		out := make(binn.ByteMap, 0, len(m))
		for k, item := range m {
			var e binn.ByteMapEntry
			copy(e.Key[:], k.(cbor.ByteString))
			v, err := cborValue(item)
			if err != nil {
				return nil, err
			}
			e.Value = v
			out = append(out, e)
		}
		sort.Slice(out, func(i, j int) bool { return string(out[i].Key[:]) < string(out[j].Key[:]) })
		return out, nil
	}

	obj := make(binn.Object, 0, len(m))
	for k, item := range m {
		key := k.(string)
		if len(key) > binn.MaxObjectKeyLen {
			return nil, fmt.Errorf("%w: object key of %d bytes exceeds %d", binn.ErrOverflow, len(key), binn.MaxObjectKeyLen)
		}
		v, err := cborValue(item)
		if err != nil {
			return nil, err
		}
		obj = append(obj, binn.Field{Key: key, Value: v})
	}
	sortObject(obj)
	return obj, nil
}
