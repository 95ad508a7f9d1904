// Package output renders command results for binnctl.
package output

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/strand-protocol/binn/pkg/binn"
	"github.com/strand-protocol/binn/pkg/convert"
	"github.com/strand-protocol/binn/pkg/inspect"
)

// Output formats accepted by NewFormatter.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Formatter defines the interface for output formatting.
type Formatter interface {
	Format(data any) string
}

// NewFormatter returns a Formatter for the given format string.
// Supported formats: "table" (default), "json", "yaml".
func NewFormatter(format string) Formatter {
	switch strings.ToLower(format) {
	case FormatJSON:
		return &JSONFormatter{}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{}
	}
}

// ValueRow is one line of the table rendering of a binn.Value.
type ValueRow struct {
	Path  string
	Type  string
	Value string
}

// Rows flattens v into one row per node, parents before children. Paths use
// .key for object fields, [i] for list items and [key] for map entries.
func Rows(v binn.Value) []ValueRow {
	var rows []ValueRow
	flatten(&rows, "$", v)
	return rows
}

func flatten(rows *[]ValueRow, path string, v binn.Value) {
	if v == nil {
		v = binn.Null{}
	}
	*rows = append(*rows, ValueRow{Path: path, Type: v.Kind().String(), Value: inspect.Summarize(v)})
	switch x := v.(type) {
	case binn.List:
		for i, item := range x {
			flatten(rows, path+"["+strconv.Itoa(i)+"]", item)
		}
	case binn.Object:
		for _, f := range x {
			flatten(rows, path+"."+f.Key, f.Value)
		}
	case binn.Map:
		for _, e := range x {
			flatten(rows, path+"["+strconv.FormatUint(uint64(e.Key), 10)+"]", e.Value)
		}
	case binn.ByteMap:
		for _, e := range x {
			flatten(rows, path+"["+hex.EncodeToString(e.Key[:])+"]", e.Value)
		}
	case binn.Custom:
		(*rows)[len(*rows)-1].Type = fmt.Sprintf("custom(0x%02x)", x.Tag)
	}
}

// TableFormatter formats data as aligned text tables using tabwriter.
type TableFormatter struct{}

func (f *TableFormatter) Format(data any) string {
	if v, ok := data.(binn.Value); ok {
		data = Rows(v)
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice:
		if v.Len() == 0 {
			return "No results.\n"
		}
		elem := v.Index(0)
		if elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		if elem.Kind() == reflect.Struct {
			t := elem.Type()
			headers := make([]string, t.NumField())
			for i := 0; i < t.NumField(); i++ {
				headers[i] = strings.ToUpper(t.Field(i).Name)
			}
			fmt.Fprintln(w, strings.Join(headers, "\t"))

			for i := 0; i < v.Len(); i++ {
				row := v.Index(i)
				if row.Kind() == reflect.Ptr {
					row = row.Elem()
				}
				vals := make([]string, row.NumField())
				for j := 0; j < row.NumField(); j++ {
					vals[j] = fmt.Sprintf("%v", row.Field(j).Interface())
				}
				fmt.Fprintln(w, strings.Join(vals, "\t"))
			}
		} else {
			for i := 0; i < v.Len(); i++ {
				fmt.Fprintln(w, v.Index(i).Interface())
			}
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			fmt.Fprintf(w, "%s:\t%v\n", t.Field(i).Name, v.Field(i).Interface())
		}
	default:
		fmt.Fprintln(w, data)
	}

	w.Flush()
	return buf.String()
}

// JSONFormatter formats data as indented JSON. binn values go through
// convert.ToJSON so blobs, map keys and custom values get their documented
// JSON forms.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(data any) string {
	var (
		b   []byte
		err error
	)
	if v, ok := data.(binn.Value); ok {
		b, err = convert.ToJSONIndent(v)
	} else {
		b, err = json.MarshalIndent(data, "", "  ")
	}
	if err != nil {
		return fmt.Sprintf("error formatting JSON: %v\n", err)
	}
	return string(b) + "\n"
}

// YAMLFormatter formats data as YAML.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(data any) string {
	var (
		b   []byte
		err error
	)
	if v, ok := data.(binn.Value); ok {
		b, err = convert.ToYAML(v)
	} else {
		b, err = yaml.Marshal(data)
	}
	if err != nil {
		return fmt.Sprintf("error formatting YAML: %v\n", err)
	}
	return string(b)
}
