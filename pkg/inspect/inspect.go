// Package inspect annotates an encoded BINN value with the offset, tag and
// length of every unit in it. It backs the binnctl inspect and view commands.
package inspect

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/strand-protocol/binn/pkg/binn"
)

const (
	maxDepth      = 512
	maxSummaryLen = 48
	maxBlobPeek   = 16
)

// Node describes one encoded unit.
type Node struct {
	Offset    int    // offset of the tag byte
	Tag       byte   // wire tag
	TagName   string // binn.TagName(Tag)
	HeaderLen int    // bytes before the payload or first entry
	Len       int    // bytes the unit occupies

	// Key is the entry key under an Object, Map or ByteMap parent, rendered
	// as text. It is empty for list items and the root.
	Key     string
	Summary string

	// Containers only. DeclaredSize is the size field as written; when it
	// differs from Len the encoder used different size accounting, as some
	// older encoders add a fixed amount to the payload length.
	Count        int
	DeclaredSize int
	SizeMismatch bool
	Children     []*Node
}

// IsContainer reports whether n has entries.
func (n *Node) IsContainer() bool { return binn.IsContainer(n.Tag) }

// Visit calls fn for n and every descendant in encoding order.
func (n *Node) Visit(fn func(n *Node, depth int)) {
	n.visit(fn, 0)
}

func (n *Node) visit(fn func(*Node, int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.visit(fn, depth+1)
	}
}

// Walk annotates the single value encoded in data. reg supplies the custom
// tags that may appear; others fail as in binn.Decode.
func Walk(data []byte, reg *binn.Registry) (*Node, error) {
	w := &walker{data: data, opts: []binn.Option{binn.WithRegistry(reg)}}
	n, err := w.node(0, 0)
	if err != nil {
		return nil, err
	}
	if n.Len != len(data) {
		return nil, &binn.FormatError{Tag: data[n.Len], Offset: n.Len, Reason: fmt.Sprintf("%d trailing bytes after value", len(data)-n.Len)}
	}
	return n, nil
}

type walker struct {
	data []byte
	opts []binn.Option
}

func (w *walker) node(off, depth int) (*Node, error) {
	if off >= len(w.data) {
		return nil, fmt.Errorf("%w: no value at offset %d", binn.ErrTruncated, off)
	}
	tag := w.data[off]
	if binn.IsContainer(tag) {
		return w.container(tag, off, depth)
	}

	v, n, err := binn.DecodePrefix(w.data[off:], w.opts...)
	if err != nil {
		return nil, rebase(err, off)
	}
	return &Node{
		Offset:    off,
		Tag:       tag,
		TagName:   binn.TagName(tag),
		HeaderLen: scalarHeaderLen(tag, w.data[off:]),
		Len:       n,
		Summary:   Summarize(v),
	}, nil
}

func (w *walker) container(tag byte, off, depth int) (*Node, error) {
	if depth >= maxDepth {
		return nil, &binn.FormatError{Tag: tag, Offset: off, Reason: fmt.Sprintf("nesting deeper than %d", maxDepth)}
	}
	r := binn.NewReader(w.data[off+1:])
	size, err := r.ReadSize()
	if err != nil {
		return nil, rebase(err, off)
	}
	count, err := r.ReadSize()
	if err != nil {
		return nil, rebase(err, off)
	}

	node := &Node{
		Offset:       off,
		Tag:          tag,
		TagName:      binn.TagName(tag),
		HeaderLen:    1 + r.Offset(),
		Count:        count,
		DeclaredSize: size,
		Summary:      entries(count),
	}
	pos := off + node.HeaderLen
	for i := 0; i < count; i++ {
		key, keyLen, err := w.key(tag, pos)
		if err != nil {
			return nil, err
		}
		child, err := w.node(pos+keyLen, depth+1)
		if err != nil {
			return nil, err
		}
		child.Key = key
		node.Children = append(node.Children, child)
		pos = child.Offset + child.Len
	}
	node.Len = pos - off
	node.SizeMismatch = node.Len != size
	return node, nil
}

// key reads the entry key at pos and returns it as text with its encoded
// length.
func (w *walker) key(tag byte, pos int) (string, int, error) {
	rest := w.data[pos:]
	truncated := func(n int) error {
		return fmt.Errorf("%w: %s key at offset %d needs %d bytes, have %d", binn.ErrTruncated, binn.TagName(tag), pos, n, len(rest))
	}
	switch tag {
	case binn.TagObject:
		if len(rest) < 1 || len(rest) < 1+int(rest[0]) {
			return "", 0, truncated(1 + int(firstByte(rest)))
		}
		k := rest[1 : 1+int(rest[0])]
		if !utf8.Valid(k) {
			return "", 0, &binn.FormatError{Tag: tag, Offset: pos, Reason: "object key is not valid UTF-8"}
		}
		return string(k), 1 + len(k), nil
	case binn.TagMap:
		if len(rest) < binn.MapKeySize {
			return "", 0, truncated(binn.MapKeySize)
		}
		return strconv.FormatUint(uint64(binary.BigEndian.Uint32(rest)), 10), binn.MapKeySize, nil
	case binn.TagByteMap:
		if len(rest) < binn.ByteMapKeySize {
			return "", 0, truncated(binn.ByteMapKeySize)
		}
		return hex.EncodeToString(rest[:binn.ByteMapKeySize]), binn.ByteMapKeySize, nil
	}
	return "", 0, nil
}

func firstByte(b []byte) byte {
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// scalarHeaderLen is the length of the tag plus any length field.
func scalarHeaderLen(tag byte, rest []byte) int {
	switch {
	case tag == binn.TagBlob:
		return 5
	case tag == binn.TagString || !binn.IsReserved(tag):
		if len(rest) > 1 && rest[1]&0x80 != 0 {
			return 5
		}
		return 2
	}
	return 1
}

// rebase shifts the offset of a FormatError from a sub-slice decode to the
// position in the whole document.
func rebase(err error, off int) error {
	if fe, ok := err.(*binn.FormatError); ok {
		return &binn.FormatError{Tag: fe.Tag, Offset: fe.Offset + off, Reason: fe.Reason}
	}
	return err
}

func entries(n int) string {
	if n == 1 {
		return "1 entry"
	}
	return fmt.Sprintf("%d entries", n)
}

// Summarize renders a scalar for display. Containers are summarised by their
// entry count.
func Summarize(v binn.Value) string {
	switch x := v.(type) {
	case nil, binn.Null:
		return "null"
	case binn.Bool:
		return strconv.FormatBool(bool(x))
	case binn.Uint:
		return strconv.FormatUint(uint64(x), 10)
	case binn.Int:
		return strconv.FormatInt(int64(x), 10)
	case binn.Float:
		return strconv.FormatFloat(float64(x), 'g', -1, 64)
	case binn.String:
		return strconv.Quote(clip(string(x)))
	case binn.Bytes:
		return peek(x)
	case binn.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case binn.Custom:
		return peek(x.Data)
	case binn.List:
		return entries(len(x))
	case binn.Object:
		return entries(len(x))
	case binn.Map:
		return entries(len(x))
	case binn.ByteMap:
		return entries(len(x))
	}
	return ""
}

func clip(s string) string {
	if len(s) <= maxSummaryLen {
		return s
	}
	cut := maxSummaryLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func peek(b []byte) string {
	if len(b) <= maxBlobPeek {
		return fmt.Sprintf("%d bytes %x", len(b), b)
	}
	return fmt.Sprintf("%d bytes %x…", len(b), b[:maxBlobPeek])
}
