// Package convert transcodes BINN values to and from JSON, YAML and CBOR.
//
// BINN types with no counterpart in the other format are mapped as follows:
// blobs become base64 text in JSON (YAML !!binary, CBOR byte strings), Map
// keys become decimal text and ByteMap keys hex text wherever the format only
// allows string keys, and Custom values become a two-field object
// {"$tag": n, "$data": payload}. Mappings whose keys mix classes are rejected,
// matching binn.FromNative.
package convert

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/strand-protocol/binn/pkg/binn"
)

// Field names of the object a Custom value is rendered as.
const (
	CustomTagField  = "$tag"
	CustomDataField = "$data"
)

// mapKeyText and byteMapKeyText render non-string keys for formats that only
// have string keys.
func mapKeyText(k uint32) string { return strconv.FormatUint(uint64(k), 10) }

func byteMapKeyText(k [binn.ByteMapKeySize]byte) string { return hex.EncodeToString(k[:]) }

// customFromFields recognises the {"$tag", "$data"} object. ok is false for
// any other object.
func customFromFields(obj binn.Object) (binn.Custom, bool, error) {
	if len(obj) != 2 {
		return binn.Custom{}, false, nil
	}
	tagV, hasTag := obj.Get(CustomTagField)
	dataV, hasData := obj.Get(CustomDataField)
	if !hasTag || !hasData {
		return binn.Custom{}, false, nil
	}
	var tag uint64
	switch t := tagV.(type) {
	case binn.Uint:
		tag = uint64(t)
	case binn.Int:
		if t < 0 {
			return binn.Custom{}, false, fmt.Errorf("%w: custom tag %d", binn.ErrOverflow, t)
		}
		tag = uint64(t)
	default:
		return binn.Custom{}, false, nil
	}
	if tag > 0xFF {
		return binn.Custom{}, false, fmt.Errorf("%w: custom tag %d is not a byte", binn.ErrOverflow, tag)
	}
	if binn.IsReserved(byte(tag)) {
		return binn.Custom{}, false, fmt.Errorf("%w: custom tag 0x%02x is reserved", binn.ErrConfiguration, tag)
	}
	var data []byte
	switch d := dataV.(type) {
	case binn.Bytes:
		data = d
	case binn.String:
		b, err := decodeBase64(string(d))
		if err != nil {
			return binn.Custom{}, false, fmt.Errorf("convert: custom payload: %w", err)
		}
		data = b
	default:
		return binn.Custom{}, false, nil
	}
	return binn.Custom{Tag: byte(tag), Data: data}, true, nil
}

// sortObject orders fields by key, for formats whose maps are unordered.
func sortObject(obj binn.Object) {
	sort.Slice(obj, func(i, j int) bool { return obj[i].Key < obj[j].Key })
}
