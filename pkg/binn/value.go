package binn

import (
	"bytes"
	"math"
	"time"
)

// Kind identifies the case of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindUint
	KindInt
	KindFloat
	KindString
	KindBytes
	KindTime
	KindList
	KindObject
	KindMap
	KindByteMap
	KindCustom
)

var kindNames = [...]string{
	KindNull:    "null",
	KindBool:    "bool",
	KindUint:    "uint",
	KindInt:     "int",
	KindFloat:   "float",
	KindString:  "string",
	KindBytes:   "bytes",
	KindTime:    "time",
	KindList:    "list",
	KindObject:  "object",
	KindMap:     "map",
	KindByteMap: "bytemap",
	KindCustom:  "custom",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Value is a node of a decoded BINN document. The set of implementations is
// closed: Null, Bool, Uint, Int, Float, String, Bytes, Time, List, Object,
// Map, ByteMap and Custom.
type Value interface {
	Kind() Kind
	isValue()
}

// Null is the BINN null value.
type Null struct{}

// Bool is a BINN boolean.
type Bool bool

// Uint is an integer decoded from an unsigned tag.
type Uint uint64

// Int is an integer decoded from a signed tag. Non-negative Ints are written
// with unsigned tags, so they decode as Uint; Equal treats both as numbers.
type Int int64

// Float is an IEEE-754 double.
type Float float64

// String is UTF-8 text.
type String string

// Bytes is an opaque blob.
type Bytes []byte

// Time is an instant carried as seconds since the Unix epoch, UTC.
type Time float64

// List is an ordered sequence of values.
type List []Value

// Field is one entry of an Object.
type Field struct {
	Key   string
	Value Value
}

// Object is a string-keyed map. Entry order is preserved on the wire.
type Object []Field

// MapEntry is one entry of a Map.
type MapEntry struct {
	Key   uint32
	Value Value
}

// Map is an integer-keyed map.
type Map []MapEntry

// ByteMapEntry is one entry of a ByteMap.
type ByteMapEntry struct {
	Key   [ByteMapKeySize]byte
	Value Value
}

// ByteMap is a map keyed by fixed 8-byte opaque keys.
type ByteMap []ByteMapEntry

// Custom is a value carried under a caller-assigned tag. Data is the raw
// payload produced or consumed by the registered converter.
type Custom struct {
	Tag  byte
	Data []byte
}

func (Null) Kind() Kind    { return KindNull }
func (Bool) Kind() Kind    { return KindBool }
func (Uint) Kind() Kind    { return KindUint }
func (Int) Kind() Kind     { return KindInt }
func (Float) Kind() Kind   { return KindFloat }
func (String) Kind() Kind  { return KindString }
func (Bytes) Kind() Kind   { return KindBytes }
func (Time) Kind() Kind    { return KindTime }
func (List) Kind() Kind    { return KindList }
func (Object) Kind() Kind  { return KindObject }
func (Map) Kind() Kind     { return KindMap }
func (ByteMap) Kind() Kind { return KindByteMap }
func (Custom) Kind() Kind  { return KindCustom }

func (Null) isValue()    {}
func (Bool) isValue()    {}
func (Uint) isValue()    {}
func (Int) isValue()     {}
func (Float) isValue()   {}
func (String) isValue()  {}
func (Bytes) isValue()   {}
func (Time) isValue()    {}
func (List) isValue()    {}
func (Object) isValue()  {}
func (Map) isValue()     {}
func (ByteMap) isValue() {}
func (Custom) isValue()  {}

// TimeOf converts t to its wire representation.
func TimeOf(t time.Time) Time {
	return Time(float64(t.Unix()) + float64(t.Nanosecond())/1e9)
}

// UTC converts the wire timestamp back to a time.Time in UTC. Precision is
// limited to what a float64 count of seconds can hold.
func (t Time) UTC() time.Time {
	sec, frac := math.Modf(float64(t))
	nsec := math.Round(frac * 1e9)
	return time.Unix(int64(sec), int64(nsec)).UTC()
}

// Get returns the value of the first field named key.
func (o Object) Get(key string) (Value, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Get returns the value of the first entry with the given key.
func (m Map) Get(key uint32) (Value, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Get returns the value of the first entry with the given key.
func (m ByteMap) Get(key [ByteMapKeySize]byte) (Value, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Equal reports whether a and b describe the same document. Integers compare
// by numeric value regardless of Int/Uint, floats and times compare bit for
// bit, and keyed containers compare without regard to entry order. A nil
// Value equals Null.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	if ai, ok := integer(a); ok {
		bi, ok := integer(b)
		return ok && ai == bi
	}
	switch x := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Float:
		y, ok := b.(Float)
		return ok && math.Float64bits(float64(x)) == math.Float64bits(float64(y))
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Bytes:
		y, ok := b.(Bytes)
		return ok && bytes.Equal(x, y)
	case Time:
		y, ok := b.(Time)
		return ok && math.Float64bits(float64(x)) == math.Float64bits(float64(y))
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Object:
		y, ok := b.(Object)
		return ok && len(x) == len(y) && entriesEqual(len(x),
			func(i int) (string, Value) { return x[i].Key, x[i].Value },
			func(i int) (string, Value) { return y[i].Key, y[i].Value })
	case Map:
		y, ok := b.(Map)
		return ok && len(x) == len(y) && entriesEqual(len(x),
			func(i int) (uint32, Value) { return x[i].Key, x[i].Value },
			func(i int) (uint32, Value) { return y[i].Key, y[i].Value })
	case ByteMap:
		y, ok := b.(ByteMap)
		return ok && len(x) == len(y) && entriesEqual(len(x),
			func(i int) ([ByteMapKeySize]byte, Value) { return x[i].Key, x[i].Value },
			func(i int) ([ByteMapKeySize]byte, Value) { return y[i].Key, y[i].Value })
	case Custom:
		y, ok := b.(Custom)
		return ok && x.Tag == y.Tag && bytes.Equal(x.Data, y.Data)
	}
	return false
}

// entriesEqual compares two keyed containers of length n. When either side
// repeats a key the comparison falls back to positional order.
func entriesEqual[K comparable](n int, a, b func(int) (K, Value)) bool {
	index := make(map[K]Value, n)
	for i := 0; i < n; i++ {
		k, v := b(i)
		index[k] = v
	}
	if len(index) != n {
		return positionalEqual(n, a, b)
	}
	seen := make(map[K]struct{}, n)
	for i := 0; i < n; i++ {
		k, v := a(i)
		other, ok := index[k]
		if !ok || !Equal(v, other) {
			return false
		}
		seen[k] = struct{}{}
	}
	return len(seen) == n
}

func positionalEqual[K comparable](n int, a, b func(int) (K, Value)) bool {
	for i := 0; i < n; i++ {
		ka, va := a(i)
		kb, vb := b(i)
		if ka != kb || !Equal(va, vb) {
			return false
		}
	}
	return true
}

// wideInt holds any integer in [math.MinInt64, math.MaxUint64].
type wideInt struct {
	neg bool
	abs uint64
}

func integer(v Value) (wideInt, bool) {
	switch x := v.(type) {
	case Uint:
		return wideInt{abs: uint64(x)}, true
	case Int:
		if x < 0 {
			return wideInt{neg: true, abs: uint64(-(x + 1)) + 1}, true
		}
		return wideInt{abs: uint64(x)}, true
	}
	return wideInt{}, false
}
