package binn

import "fmt"

// Tag constants identify the kind of every encoded unit on the wire. The high
// bits group tags into classes (containers 0xE0, strings and time 0xA0, blobs
// 0xC0, fixed-width scalars below 0xA0) but decoding always matches the full
// byte.
const (
	TagNull  byte = 0x00
	TagTrue  byte = 0x01
	TagFalse byte = 0x02

	TagUint8   byte = 0x20
	TagInt8    byte = 0x21
	TagUint16  byte = 0x40
	TagInt16   byte = 0x41
	TagUint32  byte = 0x60
	TagInt32   byte = 0x61
	TagFloat32 byte = 0x62 // decode only; Float is always written as TagFloat64
	TagUint64  byte = 0x80
	TagInt64   byte = 0x81
	TagFloat64 byte = 0x82

	TagString   byte = 0xA0
	TagTime     byte = 0xA1 // textual time, reserved and never produced
	TagDatetime byte = 0xA2

	TagByteMap byte = 0xB8 // fixed 8-byte keys

	TagBlob byte = 0xC0

	TagList   byte = 0xE0
	TagMap    byte = 0xE1
	TagObject byte = 0xE2
)

// Key and field widths fixed by the format.
const (
	ByteMapKeySize  = 8
	MapKeySize      = 4
	MaxObjectKeyLen = 0xFF
	MaxBlobLen      = 0xFFFFFFFF
)

// TagNames maps built-in tags to human-readable names for diagnostics.
var TagNames = map[byte]string{
	TagNull:     "NULL",
	TagTrue:     "TRUE",
	TagFalse:    "FALSE",
	TagUint8:    "UINT8",
	TagInt8:     "INT8",
	TagUint16:   "UINT16",
	TagInt16:    "INT16",
	TagUint32:   "UINT32",
	TagInt32:    "INT32",
	TagFloat32:  "FLOAT32",
	TagUint64:   "UINT64",
	TagInt64:    "INT64",
	TagFloat64:  "FLOAT64",
	TagString:   "STRING",
	TagTime:     "TIME",
	TagDatetime: "DATETIME",
	TagByteMap:  "BYTEMAP",
	TagBlob:     "BLOB",
	TagList:     "LIST",
	TagMap:      "MAP",
	TagObject:   "OBJECT",
}

// IsReserved reports whether tag belongs to the built-in format table and so
// cannot be assigned to a custom type.
func IsReserved(tag byte) bool {
	_, ok := TagNames[tag]
	return ok
}

// TagName returns the diagnostic name of tag. Tags outside the format table
// are rendered as CUSTOM(0xNN).
func TagName(tag byte) string {
	if name, ok := TagNames[tag]; ok {
		return name
	}
	return fmt.Sprintf("CUSTOM(0x%02X)", tag)
}

// IsContainer reports whether tag introduces a sized, counted container.
func IsContainer(tag byte) bool {
	switch tag {
	case TagList, TagMap, TagObject, TagByteMap:
		return true
	}
	return false
}
