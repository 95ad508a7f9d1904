package binn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	nan := Float(math.NaN())
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"nil and null", nil, Null{}, true},
		{"int and uint", Int(5), Uint(5), true},
		{"negative int and uint", Int(-1), Uint(math.MaxUint64), false},
		{"min int64", Int(math.MinInt64), Int(math.MinInt64), true},
		{"int and float", Int(1), Float(1), false},
		{"nan", nan, nan, true},
		{"signed zero", Float(0), Float(math.Copysign(0, -1)), false},
		{"time and float", Time(1), Float(1), false},
		{"bytes", Bytes{1, 2}, Bytes{1, 2}, true},
		{"empty bytes", Bytes{}, Bytes(nil), true},
		{"list order", List{Int(1), Int(2)}, List{Int(2), Int(1)}, false},
		{
			"object order",
			Object{{Key: "a", Value: Int(1)}, {Key: "b", Value: Int(2)}},
			Object{{Key: "b", Value: Uint(2)}, {Key: "a", Value: Uint(1)}},
			true,
		},
		{
			"object value differs",
			Object{{Key: "a", Value: Int(1)}},
			Object{{Key: "a", Value: Int(2)}},
			false,
		},
		{
			"object duplicate keys",
			Object{{Key: "a", Value: Int(1)}, {Key: "a", Value: Int(1)}},
			Object{{Key: "a", Value: Int(1)}, {Key: "b", Value: Int(1)}},
			false,
		},
		{"map order", Map{{1, Null{}}, {2, Bool(true)}}, Map{{2, Bool(true)}, {1, Null{}}}, true},
		{"bytemap", ByteMap{{[8]byte{1}, Null{}}}, ByteMap{{[8]byte{2}, Null{}}}, false},
		{"custom", Custom{Tag: 5, Data: []byte{1}}, Custom{Tag: 6, Data: []byte{1}}, false},
		{"kinds differ", List{}, Object{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
			assert.Equal(t, tt.want, Equal(tt.b, tt.a))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "bytemap", ByteMap{}.Kind().String())
	assert.Equal(t, "int", Int(0).Kind().String())
	assert.Equal(t, "invalid", Kind(200).String())
}

func TestContainerGet(t *testing.T) {
	obj := Object{{Key: "a", Value: Int(1)}, {Key: "a", Value: Int(2)}}
	v, ok := obj.Get("a")
	assert.True(t, ok)
	assert.Equal(t, Int(1), v)
	_, ok = obj.Get("b")
	assert.False(t, ok)

	m := Map{{Key: 3, Value: String("x")}}
	v, ok = m.Get(3)
	assert.True(t, ok)
	assert.Equal(t, String("x"), v)

	bm := ByteMap{{Key: [8]byte{9}, Value: Bool(true)}}
	v, ok = bm.Get([8]byte{9})
	assert.True(t, ok)
	assert.Equal(t, Bool(true), v)
}

func TestFormatTable(t *testing.T) {
	assert.True(t, IsReserved(TagTime))
	assert.True(t, IsReserved(TagFloat32))
	assert.False(t, IsReserved(0x05))
	assert.Equal(t, "OBJECT", TagName(TagObject))
	assert.Equal(t, "CUSTOM(0x05)", TagName(0x05))
	assert.True(t, IsContainer(TagByteMap))
	assert.False(t, IsContainer(TagBlob))
}
