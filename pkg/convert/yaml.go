package convert

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/strand-protocol/binn/pkg/binn"
)

const maxYAMLDepth = 512

// FromYAML converts the first document of a YAML stream into a Value.
// Mapping order is kept. Mappings with integer keys become Maps, those with
// 8-byte !!binary keys become ByteMaps, and all others become Objects.
func FromYAML(data []byte) (binn.Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("convert: yaml: %w", err)
	}
	if doc.Kind == 0 {
		return binn.Null{}, nil
	}
	root := &doc
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return binn.Null{}, nil
		}
		root = doc.Content[0]
	}
	return yamlValue(root, 0)
}

func yamlValue(n *yaml.Node, depth int) (binn.Value, error) {
	if depth >= maxYAMLDepth {
		return nil, fmt.Errorf("convert: yaml: nesting deeper than %d", maxYAMLDepth)
	}
	switch n.Kind {
	case yaml.AliasNode:
		return yamlValue(n.Alias, depth+1)
	case yaml.ScalarNode:
		return yamlScalar(n)
	case yaml.SequenceNode:
		list := make(binn.List, 0, len(n.Content))
		for _, c := range n.Content {
			item, err := yamlValue(c, depth+1)
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		return list, nil
	case yaml.MappingNode:
		return yamlMapping(n, depth)
	}
	return nil, fmt.Errorf("convert: yaml: unexpected node kind %d at line %d", n.Kind, n.Line)
}

func yamlScalar(n *yaml.Node) (binn.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return binn.Null{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, fmt.Errorf("convert: yaml line %d: %w", n.Line, err)
		}
		return binn.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return binn.Int(i), nil
		}
		var u uint64
		if err := n.Decode(&u); err != nil {
			return nil, fmt.Errorf("%w: yaml integer %s at line %d", binn.ErrOverflow, n.Value, n.Line)
		}
		return binn.Uint(u), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, fmt.Errorf("convert: yaml line %d: %w", n.Line, err)
		}
		return binn.Float(f), nil
	case "!!binary":
		b, err := yamlBinary(n)
		if err != nil {
			return nil, err
		}
		return binn.Bytes(b), nil
	case "!!timestamp":
		var t time.Time
		if err := n.Decode(&t); err != nil {
			return nil, fmt.Errorf("convert: yaml line %d: %w", n.Line, err)
		}
		return binn.TimeOf(t), nil
	}
	return binn.String(n.Value), nil
}

func yamlBinary(n *yaml.Node) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(n.Value), ""))
	if err != nil {
		return nil, fmt.Errorf("convert: yaml !!binary at line %d: %w", n.Line, err)
	}
	return b, nil
}

type yamlKeyClass int

const (
	yamlKeyString yamlKeyClass = iota
	yamlKeyInt
	yamlKeyBytes
)

func (c yamlKeyClass) String() string {
	return [...]string{"string", "integer", "8-byte binary"}[c]
}

func yamlMapping(n *yaml.Node, depth int) (binn.Value, error) {
	type entry struct {
		key   *yaml.Node
		value binn.Value
	}
	entries := make([]entry, 0, len(n.Content)/2)
	var class yamlKeyClass
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := n.Content[i]
		for k.Kind == yaml.AliasNode {
			k = k.Alias
		}
		if k.Kind != yaml.ScalarNode || k.ShortTag() == "!!null" {
			return nil, fmt.Errorf("%w: yaml mapping key at line %d is not a scalar", binn.ErrUnsupportedType, k.Line)
		}
		c := yamlKeyString
		switch k.ShortTag() {
		case "!!int":
			c = yamlKeyInt
		case "!!binary":
			c = yamlKeyBytes
		}
		if i == 0 {
			class = c
		} else if c != class {
			return nil, fmt.Errorf("%w: yaml mapping at line %d mixes %s and %s keys", binn.ErrUnsupportedType, n.Line, class, c)
		}
		v, err := yamlValue(n.Content[i+1], depth+1)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{key: k, value: v})
	}

	switch class {
	case yamlKeyInt:
		m := make(binn.Map, 0, len(entries))
		for _, e := range entries {
			var k uint64
			if err := e.key.Decode(&k); err != nil || k > math.MaxUint32 {
				return nil, fmt.Errorf("%w: yaml map key %s at line %d outside [0, %d]", binn.ErrOverflow, e.key.Value, e.key.Line, uint32(math.MaxUint32))
			}
			m = append(m, binn.MapEntry{Key: uint32(k), Value: e.value})
		}
		return m, nil
	case yamlKeyBytes:
		m := make(binn.ByteMap, 0, len(entries))
		for _, e := range entries {
			b, err := yamlBinary(e.key)
			if err != nil {
				return nil, err
			}
			if len(b) != binn.ByteMapKeySize {
				return nil, fmt.Errorf("%w: yaml binary key of %d bytes at line %d, want %d", binn.ErrUnsupportedType, len(b), e.key.Line, binn.ByteMapKeySize)
			}
			var me binn.ByteMapEntry
			copy(me.Key[:], b)
			me.Value = e.value
			m = append(m, me)
		}
		return m, nil
	}

	obj := make(binn.Object, 0, len(entries))
	for _, e := range entries {
		if len(e.key.Value) > binn.MaxObjectKeyLen {
			return nil, fmt.Errorf("%w: object key of %d bytes exceeds %d", binn.ErrOverflow, len(e.key.Value), binn.MaxObjectKeyLen)
		}
		obj = append(obj, binn.Field{Key: e.key.Value, Value: e.value})
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

// ToYAML renders v as a YAML document.
func ToYAML(v binn.Value) ([]byte, error) {
	n, err := yamlNode(v)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("convert: yaml: %w", err)
	}
	return out, nil
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func yamlNode(v binn.Value) (*yaml.Node, error) {
	switch x := v.(type) {
	case nil, binn.Null:
		return scalar("!!null", "null"), nil
	case binn.Bool:
		return scalar("!!bool", strconv.FormatBool(bool(x))), nil
	case binn.Uint:
		return scalar("!!int", strconv.FormatUint(uint64(x), 10)), nil
	case binn.Int:
		return scalar("!!int", strconv.FormatInt(int64(x), 10)), nil
	case binn.Float:
		return scalar("!!float", yamlFloat(float64(x))), nil
	case binn.String:
		return scalar("!!str", string(x)), nil
	case binn.Bytes:
		return scalar("!!binary", base64.StdEncoding.EncodeToString(x)), nil
	case binn.Time:
		return scalar("!!timestamp", x.UTC().Format(time.RFC3339Nano)), nil
	case binn.List:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range x {
			c, err := yamlNode(item)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, c)
		}
		return seq, nil
	case binn.Object:
		return yamlMap(len(x), func(i int) (*yaml.Node, binn.Value) {
			return scalar("!!str", x[i].Key), x[i].Value
		})
	case binn.Map:
		return yamlMap(len(x), func(i int) (*yaml.Node, binn.Value) {
			return scalar("!!int", mapKeyText(x[i].Key)), x[i].Value
		})
	case binn.ByteMap:
		return yamlMap(len(x), func(i int) (*yaml.Node, binn.Value) {
			return scalar("!!binary", base64.StdEncoding.EncodeToString(x[i].Key[:])), x[i].Value
		})
	case binn.Custom:
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{
			scalar("!!str", CustomTagField), scalar("!!int", strconv.Itoa(int(x.Tag))),
			scalar("!!str", CustomDataField), scalar("!!binary", base64.StdEncoding.EncodeToString(x.Data)),
		}}, nil
	}
	return nil, fmt.Errorf("%w: %T", binn.ErrUnsupportedType, v)
}

func yamlMap(n int, entry func(int) (*yaml.Node, binn.Value)) (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i < n; i++ {
		k, v := entry(i)
		vn, err := yamlNode(v)
		if err != nil {
			return nil, err
		}
		m.Content = append(m.Content, k, vn)
	}
	return m, nil
}

// yamlFloat formats f so that it reads back as a float, not an integer.
func yamlFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
