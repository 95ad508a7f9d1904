package convert

import (
	"math"
	"math/big"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strand-protocol/binn/pkg/binn"
)

// sample exercises every value kind that survives all three formats.
func sample() binn.Value {
	return binn.Object{
		{Key: "s", Value: binn.String("true")},
		{Key: "u", Value: binn.Uint(7)},
		{Key: "n", Value: binn.Int(-5)},
		{Key: "f", Value: binn.Float(2)},
		{Key: "b", Value: binn.Bytes{0x00, 0x01}},
		{Key: "t", Value: binn.Time(1700000000)},
		{Key: "l", Value: binn.List{binn.Null{}, binn.Bool(false)}},
		{Key: "m", Value: binn.Map{{Key: 1, Value: binn.String("x")}, {Key: 40000, Value: binn.Uint(2)}}},
		{Key: "bm", Value: binn.ByteMap{{Key: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, Value: binn.Bool(true)}}},
		{Key: "c", Value: binn.Custom{Tag: 0x10, Data: []byte{0xAB, 0xCD}}},
	}
}

func assertEqualValue(t *testing.T, want, got binn.Value) {
	t.Helper()
	assert.Truef(t, binn.Equal(want, got), "want %#v\n got %#v", want, got)
}

func TestFromJSON(t *testing.T) {
	v, err := FromJSON([]byte(`{"b":1,"a":[true,null,-2,1.5,"x"],"big":18446744073709551615,"e":1e3}`))
	require.NoError(t, err)

	obj, ok := v.(binn.Object)
	require.True(t, ok)
	require.Len(t, obj, 4)
	assert.Equal(t, []string{"b", "a", "big", "e"}, []string{obj[0].Key, obj[1].Key, obj[2].Key, obj[3].Key})
	assert.Equal(t, binn.Int(1), obj[0].Value)
	assert.Equal(t, binn.List{binn.Bool(true), binn.Null{}, binn.Int(-2), binn.Float(1.5), binn.String("x")}, obj[1].Value)
	assert.Equal(t, binn.Uint(math.MaxUint64), obj[2].Value)
	assert.Equal(t, binn.Float(1000), obj[3].Value)
}

func TestFromJSONErrors(t *testing.T) {
	for name, in := range map[string]string{
		"trailing":  `1 2`,
		"truncated": `{"a":`,
		"empty":     ``,
		"bad token": `{"a":tru}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromJSON([]byte(in))
			assert.Error(t, err)
		})
	}
}

func TestFromJSONCustom(t *testing.T) {
	v, err := FromJSON([]byte(`{"$tag":16,"$data":"qw=="}`))
	require.NoError(t, err)
	assert.Equal(t, binn.Custom{Tag: 0x10, Data: []byte{0xAB}}, v)

	// An object that only looks similar stays an object.
	v, err = FromJSON([]byte(`{"$tag":"x","$data":"qw=="}`))
	require.NoError(t, err)
	assert.IsType(t, binn.Object{}, v)

	_, err = FromJSON([]byte(`{"$tag":32,"$data":""}`))
	assert.ErrorIs(t, err, binn.ErrConfiguration)

	_, err = FromJSON([]byte(`{"$tag":300,"$data":""}`))
	assert.ErrorIs(t, err, binn.ErrOverflow)
}

func TestToJSON(t *testing.T) {
	out, err := ToJSON(binn.Object{
		{Key: "a", Value: binn.Bytes{1, 2}},
		{Key: "m", Value: binn.Map{{Key: 7, Value: binn.Uint(1)}}},
		{Key: "bm", Value: binn.ByteMap{{Key: [8]byte{0, 0, 0, 0, 0, 0, 0, 0xFF}, Value: binn.Null{}}}},
		{Key: "t", Value: binn.Time(0)},
		{Key: "c", Value: binn.Custom{Tag: 0x10, Data: []byte{0xAB}}},
		{Key: "f", Value: binn.Float(-0.25)},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`{"a":"AQI=","m":{"7":1},"bm":{"00000000000000ff":null},"t":"1970-01-01T00:00:00Z","c":{"$tag":16,"$data":"qw=="},"f":-0.25}`,
		string(out))

	_, err = ToJSON(binn.Float(math.NaN()))
	assert.ErrorIs(t, err, binn.ErrUnsupportedType)
	_, err = ToJSON(binn.List{binn.Float(math.Inf(1))})
	assert.ErrorIs(t, err, binn.ErrUnsupportedType)
}

func TestToJSONIndent(t *testing.T) {
	out, err := ToJSONIndent(binn.Object{{Key: "a", Value: binn.Uint(1)}})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", string(out))
}

func TestJSONRoundTripKeepsOrder(t *testing.T) {
	in := `{"z":1,"a":{"y":"q","b":[]},"m":-3}`
	v, err := FromJSON([]byte(in))
	require.NoError(t, err)
	out, err := ToJSON(v)
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
}

func TestFromYAML(t *testing.T) {
	v, err := FromYAML([]byte("name: x\ncount: 3\nratio: 0.5\nok: true\nnothing: null\ntags: [a, b]\n"))
	require.NoError(t, err)
	assertEqualValue(t, binn.Object{
		{Key: "name", Value: binn.String("x")},
		{Key: "count", Value: binn.Int(3)},
		{Key: "ratio", Value: binn.Float(0.5)},
		{Key: "ok", Value: binn.Bool(true)},
		{Key: "nothing", Value: binn.Null{}},
		{Key: "tags", Value: binn.List{binn.String("a"), binn.String("b")}},
	}, v)
	assert.Equal(t, "name", v.(binn.Object)[0].Key)
}

func TestFromYAMLKeyClasses(t *testing.T) {
	v, err := FromYAML([]byte("1: a\n2: b\n"))
	require.NoError(t, err)
	assert.Equal(t, binn.Map{{Key: 1, Value: binn.String("a")}, {Key: 2, Value: binn.String("b")}}, v)

	v, err = FromYAML([]byte("? !!binary AQIDBAUGBwg=\n: v\n"))
	require.NoError(t, err)
	assert.Equal(t, binn.ByteMap{{Key: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}, Value: binn.String("v")}}, v)

	_, err = FromYAML([]byte("1: a\nb: c\n"))
	assert.ErrorIs(t, err, binn.ErrUnsupportedType)

	_, err = FromYAML([]byte("? !!binary AQI=\n: v\n"))
	assert.ErrorIs(t, err, binn.ErrUnsupportedType)

	_, err = FromYAML([]byte("-1: a\n"))
	assert.ErrorIs(t, err, binn.ErrOverflow)

	_, err = FromYAML([]byte("? [a]\n: v\n"))
	assert.ErrorIs(t, err, binn.ErrUnsupportedType)
}

func TestFromYAMLMisc(t *testing.T) {
	v, err := FromYAML(nil)
	require.NoError(t, err)
	assert.Equal(t, binn.Null{}, v)

	v, err = FromYAML([]byte("base: &b {x: 1}\ncopy: *b\n"))
	require.NoError(t, err)
	obj := v.(binn.Object)
	assertEqualValue(t, obj[0].Value, obj[1].Value)

	v, err = FromYAML([]byte("18446744073709551615"))
	require.NoError(t, err)
	assert.Equal(t, binn.Uint(math.MaxUint64), v)

	_, err = FromYAML([]byte("a: [1, 2"))
	assert.Error(t, err)
}

func TestYAMLRoundTrip(t *testing.T) {
	out, err := ToYAML(sample())
	require.NoError(t, err)
	assert.Contains(t, string(out), `s: "true"`)
	assert.Contains(t, string(out), "f: 2.0")

	v, err := FromYAML(out)
	require.NoError(t, err)
	assertEqualValue(t, sample(), v)
}

func TestYAMLFloat(t *testing.T) {
	cases := map[float64]string{
		2:             "2.0",
		-0.5:          "-0.5",
		1e21:          "1e+21",
		math.Inf(1):   ".inf",
		math.Inf(-1):  "-.inf",
		math.NaN():    ".nan",
		123456.789:    "123456.789",
		math.MaxInt64: "9.223372036854776e+18",
	}
	for in, want := range cases {
		assert.Equal(t, want, yamlFloat(in))
	}
}

func TestCBORRoundTrip(t *testing.T) {
	out, err := ToCBOR(sample())
	require.NoError(t, err)

	v, err := FromCBOR(out)
	require.NoError(t, err)
	assertEqualValue(t, sample(), v)

	// Canonical encoding: equal documents encode identically.
	again, err := ToCBOR(v)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestCBORScalars(t *testing.T) {
	out, err := ToCBOR(binn.Uint(10))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0A}, out)

	out, err = ToCBOR(binn.Null{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xF6}, out)

	out, err = ToCBOR(binn.Custom{Tag: 0x10, Data: nil})
	require.NoError(t, err)
	v, err := FromCBOR(out)
	require.NoError(t, err)
	assertEqualValue(t, binn.Custom{Tag: 0x10, Data: []byte{}}, v)
}

func TestFromCBORErrors(t *testing.T) {
	encode := func(v any) []byte {
		t.Helper()
		b, err := cborEncMode.Marshal(v)
		require.NoError(t, err)
		return b
	}

	_, err := FromCBOR([]byte{0xFF})
	assert.Error(t, err)

	_, err = FromCBOR(encode(map[any]any{"a": 1, uint64(2): 2}))
	assert.ErrorIs(t, err, binn.ErrUnsupportedType)

	_, err = FromCBOR(encode(map[any]any{int64(-1): "x"}))
	assert.ErrorIs(t, err, binn.ErrOverflow)

	_, err = FromCBOR(encode(map[any]any{uint64(math.MaxUint32) + 1: "x"}))
	assert.ErrorIs(t, err, binn.ErrOverflow)

	huge := new(big.Int).Lsh(big.NewInt(1), 70)
	_, err = FromCBOR(encode(huge))
	assert.Error(t, err)

	_, err = FromCBOR(encode(cbor.Tag{Number: 99, Content: "x"}))
	assert.ErrorIs(t, err, binn.ErrUnsupportedType)

	_, err = FromCBOR(encode(cbor.Tag{Number: CustomCBORTagBase + 0x10, Content: "x"}))
	assert.ErrorIs(t, err, binn.ErrUnsupportedType)

	_, err = FromCBOR(encode(cbor.Tag{Number: CustomCBORTagBase + 0x20, Content: []byte{1}}))
	assert.ErrorIs(t, err, binn.ErrConfiguration)
}
