// Package binn implements the BINN binary serialization format.
//
// A BINN document is a tree of type-tagged units. Scalars are a tag byte
// followed by a fixed-width big-endian payload; strings, blobs and custom
// values carry a length; lists, objects (string keys), maps (uint32 keys) and
// byte-maps (8-byte keys) carry a total size and an entry count. Sizes up to
// 127 take one byte, larger ones four bytes with the top bit set.
//
// Two layers are provided. Encode and Decode work on Value, a closed sum type
// that preserves the exact wire shape. Serialize and Deserialize convert to
// and from ordinary Go values:
//
//	data, err := binn.Serialize(map[string]any{"id": 7, "tags": []string{"a"}}, nil)
//	v, err := binn.Deserialize(data, nil) // map[string]any{"id": uint64(7), ...}
//
// Application types are carried under caller-assigned tags through a
// Registry passed to each call. Tags used by the format itself cannot be
// registered.
package binn
