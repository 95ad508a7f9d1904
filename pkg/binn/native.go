package binn

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"sort"
	"time"
)

// FromNative converts a Go value into a Value tree.
//
// Built-in Go types are matched first: nil, Value, bool, the sized integer
// types, floats, string, []byte, time.Time and *big.Int. Any other type is
// looked up in reg, and only then converted by kind: named scalars, slices,
// arrays, maps and pointers. Maps become Objects, Maps or ByteMaps depending
// on their key type and are written in sorted key order. Anything left fails
// with ErrUnsupportedType.
func FromNative(v any, reg *Registry) (Value, error) {
	return fromNative(v, reg, 0, defaultMaxDepth)
}

func fromNative(v any, reg *Registry, depth, maxDepth int) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(x), nil
	case int8:
		return Int(x), nil
	case int16:
		return Int(x), nil
	case int32:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case uint:
		return Uint(x), nil
	case uint8:
		return Uint(x), nil
	case uint16:
		return Uint(x), nil
	case uint32:
		return Uint(x), nil
	case uint64:
		return Uint(x), nil
	case float32:
		return Float(x), nil
	case float64:
		return Float(x), nil
	case string:
		return String(x), nil
	case []byte:
		return Bytes(x), nil
	case time.Time:
		return TimeOf(x), nil
	case *big.Int:
		return bigInt(x)
	}

	rv := reflect.ValueOf(v)
	if ext, ok := reg.encoderFor(rv.Type()); ok {
		data, err := ext.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("binn: encode %T as tag 0x%02x: %w", v, ext.Tag, err)
		}
		return Custom{Tag: ext.Tag, Data: data}, nil
	}
	if depth >= maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrOverflow, maxDepth)
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Uint(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.String:
		return String(rv.String()), nil
	case reflect.Pointer:
		if rv.IsNil() {
			return Null{}, nil
		}
		return fromNative(rv.Elem().Interface(), reg, depth+1, maxDepth)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null{}, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			for i := range b {
				b[i] = byte(rv.Index(i).Uint())
			}
			return Bytes(b), nil
		}
		list := make(List, rv.Len())
		for i := range list {
			item, err := fromNative(rv.Index(i).Interface(), reg, depth+1, maxDepth)
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case reflect.Map:
		if rv.IsNil() {
			return Null{}, nil
		}
		return mapFromNative(rv, reg, depth, maxDepth)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

func bigInt(x *big.Int) (Value, error) {
	switch {
	case x == nil:
		return Null{}, nil
	case x.IsInt64():
		return Int(x.Int64()), nil
	case x.IsUint64():
		return Uint(x.Uint64()), nil
	}
	return nil, fmt.Errorf("%w: integer %s does not fit in 64 bits", ErrOverflow, x)
}

// keyClass is the container a map key selects.
type keyClass int

const (
	keyNone keyClass = iota
	keyString
	keyInt
	keyBytes
)

func (c keyClass) String() string {
	switch c {
	case keyString:
		return "string"
	case keyInt:
		return "integer"
	case keyBytes:
		return "[8]byte"
	}
	return "unsupported"
}

func classifyKey(k reflect.Value) keyClass {
	if k.Kind() == reflect.Interface {
		if k.IsNil() {
			return keyNone
		}
		k = k.Elem()
	}
	switch k.Kind() {
	case reflect.String:
		return keyString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return keyInt
	case reflect.Array:
		if k.Len() == ByteMapKeySize && k.Type().Elem().Kind() == reflect.Uint8 {
			return keyBytes
		}
	}
	return keyNone
}

// mapFromNative picks the container from the key type. Maps with interface
// keys are classified by their dynamic keys, which must all be of one class;
// an empty one becomes an Object.
func mapFromNative(rv reflect.Value, reg *Registry, depth, maxDepth int) (Value, error) {
	keys := rv.MapKeys()
	class := classifyKey(reflect.Zero(rv.Type().Key()))
	if rv.Type().Key().Kind() == reflect.Interface {
		class = keyString
		for i, k := range keys {
			c := classifyKey(k)
			if c == keyNone {
				return nil, fmt.Errorf("%w: map key %v", ErrUnsupportedType, k)
			}
			if i == 0 {
				class = c
			} else if c != class {
				return nil, fmt.Errorf("%w: map mixes %s and %s keys", ErrUnsupportedType, class, c)
			}
		}
	}

	value := func(k reflect.Value) (Value, error) {
		return fromNative(rv.MapIndex(k).Interface(), reg, depth+1, maxDepth)
	}

	switch class {
	case keyString:
		sort.Slice(keys, func(i, j int) bool { return keyElem(keys[i]).String() < keyElem(keys[j]).String() })
		obj := make(Object, 0, len(keys))
		for _, k := range keys {
			key := keyElem(k).String()
			if len(key) > MaxObjectKeyLen {
				return nil, fmt.Errorf("%w: object key of %d bytes exceeds %d", ErrOverflow, len(key), MaxObjectKeyLen)
			}
			item, err := value(k)
			if err != nil {
				return nil, err
			}
			obj = append(obj, Field{Key: key, Value: item})
		}
		return obj, nil
	case keyInt:
		m := make(Map, 0, len(keys))
		for _, k := range keys {
			key, err := mapKey(keyElem(k))
			if err != nil {
				return nil, err
			}
			item, err := value(k)
			if err != nil {
				return nil, err
			}
			m = append(m, MapEntry{Key: key, Value: item})
		}
		sort.Slice(m, func(i, j int) bool { return m[i].Key < m[j].Key })
		return m, nil
	case keyBytes:
		m := make(ByteMap, 0, len(keys))
		for _, k := range keys {
			var e ByteMapEntry
			kv := keyElem(k)
			for i := range e.Key {
				e.Key[i] = byte(kv.Index(i).Uint())
			}
			item, err := value(k)
			if err != nil {
				return nil, err
			}
			e.Value = item
			m = append(m, e)
		}
		sort.Slice(m, func(i, j int) bool { return bytes.Compare(m[i].Key[:], m[j].Key[:]) < 0 })
		return m, nil
	}
	return nil, fmt.Errorf("%w: map key of type %s", ErrUnsupportedType, rv.Type().Key())
}

func keyElem(k reflect.Value) reflect.Value {
	if k.Kind() == reflect.Interface {
		return k.Elem()
	}
	return k
}

// mapKey checks that an integer key fits the 4-byte unsigned key field.
func mapKey(k reflect.Value) (uint32, error) {
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n := k.Int(); n >= 0 && n <= math.MaxUint32 {
			return uint32(n), nil
		}
		return 0, fmt.Errorf("%w: map key %d outside [0, %d]", ErrOverflow, k.Int(), uint32(math.MaxUint32))
	default:
		if n := k.Uint(); n <= math.MaxUint32 {
			return uint32(n), nil
		}
		return 0, fmt.Errorf("%w: map key %d outside [0, %d]", ErrOverflow, k.Uint(), uint32(math.MaxUint32))
	}
}

// Native converts a Value tree into plain Go values: nil, bool, uint64,
// int64, float64, string, []byte, time.Time, []any, map[string]any,
// map[uint32]any and map[[8]byte]any. Custom values are passed to the decoder
// registered for their tag; without one they are returned unchanged.
func Native(v Value, reg *Registry) (any, error) {
	switch x := v.(type) {
	case nil, Null:
		return nil, nil
	case Bool:
		return bool(x), nil
	case Uint:
		return uint64(x), nil
	case Int:
		return int64(x), nil
	case Float:
		return float64(x), nil
	case String:
		return string(x), nil
	case Bytes:
		return []byte(x), nil
	case Time:
		return x.UTC(), nil
	case List:
		out := make([]any, len(x))
		for i, item := range x {
			n, err := Native(item, reg)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case Object:
		out := make(map[string]any, len(x))
		for _, f := range x {
			n, err := Native(f.Value, reg)
			if err != nil {
				return nil, err
			}
			out[f.Key] = n
		}
		return out, nil
	case Map:
		out := make(map[uint32]any, len(x))
		for _, e := range x {
			n, err := Native(e.Value, reg)
			if err != nil {
				return nil, err
			}
			out[e.Key] = n
		}
		return out, nil
	case ByteMap:
		out := make(map[[ByteMapKeySize]byte]any, len(x))
		for _, e := range x {
			n, err := Native(e.Value, reg)
			if err != nil {
				return nil, err
			}
			out[e.Key] = n
		}
		return out, nil
	case Custom:
		ext, ok := reg.decoderFor(x.Tag)
		if !ok || ext.Decode == nil {
			return x, nil
		}
		out, err := ext.Decode(x.Data)
		if err != nil {
			return nil, fmt.Errorf("binn: decode tag 0x%02x: %w", x.Tag, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}
