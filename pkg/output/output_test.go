package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strand-protocol/binn/pkg/binn"
	"github.com/strand-protocol/binn/pkg/inspect"
)

type keyRow struct {
	Key  string
	Size int
}

func TestNewFormatter(t *testing.T) {
	assert.IsType(t, &TableFormatter{}, NewFormatter(""))
	assert.IsType(t, &TableFormatter{}, NewFormatter("table"))
	assert.IsType(t, &JSONFormatter{}, NewFormatter("JSON"))
	assert.IsType(t, &YAMLFormatter{}, NewFormatter("yaml"))
}

func TestTableFormatterStructs(t *testing.T) {
	out := NewFormatter(FormatTable).Format([]keyRow{{Key: "a", Size: 3}, {Key: "bb", Size: 10}})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "KEY  SIZE", lines[0])
	assert.Equal(t, "a    3", lines[1])
	assert.Equal(t, "bb   10", lines[2])

	assert.Equal(t, "No results.\n", NewFormatter(FormatTable).Format([]keyRow{}))
	assert.Equal(t, "Key:   a\nSize:  3\n", NewFormatter(FormatTable).Format(keyRow{Key: "a", Size: 3}))
	assert.Equal(t, "x\ny\n", NewFormatter(FormatTable).Format([]string{"x", "y"}))
}

func TestTableFormatterValue(t *testing.T) {
	v := binn.Object{
		{Key: "name", Value: binn.String("x")},
		{Key: "ids", Value: binn.List{binn.Uint(1)}},
		{Key: "m", Value: binn.Map{{Key: 9, Value: binn.Null{}}}},
		{Key: "c", Value: binn.Custom{Tag: 0x10, Data: []byte{0xAB}}},
	}
	rows := Rows(v)
	assert.Equal(t, []ValueRow{
		{Path: "$", Type: "object", Value: "4 entries"},
		{Path: "$.name", Type: "string", Value: `"x"`},
		{Path: "$.ids", Type: "list", Value: "1 entry"},
		{Path: "$.ids[0]", Type: "uint", Value: "1"},
		{Path: "$.m", Type: "map", Value: "1 entry"},
		{Path: "$.m[9]", Type: "null", Value: "null"},
		{Path: "$.c", Type: "custom(0x10)", Value: "1 bytes ab"},
	}, rows)

	out := NewFormatter(FormatTable).Format(v)
	assert.True(t, strings.HasPrefix(out, "PATH"))
	assert.Contains(t, out, "$.ids[0]")
}

func TestJSONFormatter(t *testing.T) {
	out := NewFormatter(FormatJSON).Format(binn.Object{{Key: "b", Value: binn.Bytes{1, 2}}})
	assert.Equal(t, "{\n  \"b\": \"AQI=\"\n}\n", out)

	out = NewFormatter(FormatJSON).Format(keyRow{Key: "a", Size: 1})
	assert.Equal(t, "{\n  \"Key\": \"a\",\n  \"Size\": 1\n}\n", out)

	out = NewFormatter(FormatJSON).Format(binn.Float(-1 / zero()))
	assert.True(t, strings.HasPrefix(out, "error formatting JSON"))
}

func zero() float64 { return 0 }

func TestYAMLFormatter(t *testing.T) {
	out := NewFormatter(FormatYAML).Format(binn.Object{{Key: "n", Value: binn.Int(-1)}})
	assert.Equal(t, "n: -1\n", out)

	out = NewFormatter(FormatYAML).Format(map[string]int{"a": 1})
	assert.Equal(t, "a: 1\n", out)
}

func TestDump(t *testing.T) {
	data, err := binn.Encode(binn.Object{
		{Key: "a", Value: binn.Uint(1)},
		{Key: "b", Value: binn.String("hi")},
	})
	require.NoError(t, err)
	root, err := inspect.Walk(data, nil)
	require.NoError(t, err)

	out := Dump(root, data)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "000000")
	assert.Contains(t, lines[0], "e2 0e 02")
	assert.Contains(t, lines[0], "OBJECT")
	assert.Contains(t, lines[0], "2 entries")
	assert.Contains(t, lines[1], "000005")
	assert.Contains(t, lines[1], "20 01")
	assert.Contains(t, lines[1], "a:")
	assert.Contains(t, lines[2], "000009")
	assert.Contains(t, lines[2], "a0 02 68 69 00")
	assert.Contains(t, lines[2], `"hi"`)
	assert.NotContains(t, out, "declared size")
}

func TestDumpFlagsSizeMismatch(t *testing.T) {
	data := []byte{0xE0, 0x03, 0x01, 0x00}
	root, err := inspect.Walk(data, nil)
	require.NoError(t, err)
	assert.Contains(t, Dump(root, data), "(declared size 3, actual 4)")
}

func TestRawBytesClips(t *testing.T) {
	data, err := binn.Encode(binn.Bytes("0123456789"))
	require.NoError(t, err)
	root, err := inspect.Walk(data, nil)
	require.NoError(t, err)
	assert.Equal(t, "c0 00 00 00 0a 30 31 ..", rawBytes(root, data))
}
