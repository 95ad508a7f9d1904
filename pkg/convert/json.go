package convert

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/strand-protocol/binn/pkg/binn"
)

const maxJSONDepth = 512

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// FromJSON converts a JSON document into a Value. Object member order is
// kept. Numbers without a fraction or exponent that fit 64 bits become
// integers; all others become floats.
func FromJSON(data []byte) (binn.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := jsonValue(dec, 0)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("convert: json: trailing data after value")
	}
	return v, nil
}

func jsonValue(dec *json.Decoder, depth int) (binn.Value, error) {
	if depth >= maxJSONDepth {
		return nil, fmt.Errorf("convert: json: nesting deeper than %d", maxJSONDepth)
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("convert: json: %w", err)
	}
	switch t := tok.(type) {
	case nil:
		return binn.Null{}, nil
	case bool:
		return binn.Bool(t), nil
	case string:
		return binn.String(t), nil
	case json.Number:
		return jsonNumber(t)
	case json.Delim:
		switch t {
		case '[':
			list := binn.List{}
			for dec.More() {
				item, err := jsonValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				list = append(list, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("convert: json: %w", err)
			}
			return list, nil
		case '{':
			obj := binn.Object{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, fmt.Errorf("convert: json: %w", err)
				}
				key := kt.(string)
				if len(key) > binn.MaxObjectKeyLen {
					return nil, fmt.Errorf("%w: object key of %d bytes exceeds %d", binn.ErrOverflow, len(key), binn.MaxObjectKeyLen)
				}
				item, err := jsonValue(dec, depth+1)
				if err != nil {
					return nil, err
				}
				obj = append(obj, binn.Field{Key: key, Value: item})
			}
			if _, err := dec.Token(); err != nil {
				return nil, fmt.Errorf("convert: json: %w", err)
			}
			c, ok, err := customFromFields(obj)
			if err != nil {
				return nil, err
			}
			if ok {
				return c, nil
			}
			return obj, nil
		}
	}
	return nil, fmt.Errorf("convert: json: unexpected token %v", tok)
}

func jsonNumber(n json.Number) (binn.Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return binn.Int(i), nil
		}
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return binn.Uint(u), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: json number %s", binn.ErrOverflow, s)
	}
	return binn.Float(f), nil
}

// ToJSON renders v as compact JSON. Times become RFC 3339 strings and do not
// round-trip as times; NaN and infinite floats cannot be represented.
func ToJSON(v binn.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ToJSONIndent is ToJSON with two-space indentation.
func ToJSONIndent(v binn.Value) ([]byte, error) {
	compact, err := ToJSON(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return nil, fmt.Errorf("convert: json indent: %w", err)
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v binn.Value) error {
	switch x := v.(type) {
	case nil, binn.Null:
		buf.WriteString("null")
	case binn.Bool:
		buf.WriteString(strconv.FormatBool(bool(x)))
	case binn.Uint:
		buf.WriteString(strconv.FormatUint(uint64(x), 10))
	case binn.Int:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
	case binn.Float:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: %v has no JSON form", binn.ErrUnsupportedType, f)
		}
		b, _ := json.Marshal(f)
		buf.Write(b)
	case binn.String:
		writeJSONString(buf, string(x))
	case binn.Bytes:
		writeJSONString(buf, base64.StdEncoding.EncodeToString(x))
	case binn.Time:
		writeJSONString(buf, x.UTC().Format(time.RFC3339Nano))
	case binn.List:
		buf.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case binn.Object:
		return writeJSONObject(buf, len(x), func(i int) (string, binn.Value) { return x[i].Key, x[i].Value })
	case binn.Map:
		return writeJSONObject(buf, len(x), func(i int) (string, binn.Value) { return mapKeyText(x[i].Key), x[i].Value })
	case binn.ByteMap:
		return writeJSONObject(buf, len(x), func(i int) (string, binn.Value) { return byteMapKeyText(x[i].Key), x[i].Value })
	case binn.Custom:
		buf.WriteString(`{"` + CustomTagField + `":`)
		buf.WriteString(strconv.Itoa(int(x.Tag)))
		buf.WriteString(`,"` + CustomDataField + `":`)
		writeJSONString(buf, base64.StdEncoding.EncodeToString(x.Data))
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: %T", binn.ErrUnsupportedType, v)
	}
	return nil
}

func writeJSONObject(buf *bytes.Buffer, n int, entry func(int) (string, binn.Value)) error {
	buf.WriteByte('{')
	for i := 0; i < n; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, v := entry(i)
		writeJSONString(buf, k)
		buf.WriteByte(':')
		if err := writeJSON(buf, v); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}
