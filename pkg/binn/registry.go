package binn

import (
	"fmt"
	"reflect"
)

// EncodeFunc converts an application value into a custom payload.
type EncodeFunc func(v any) ([]byte, error)

// DecodeFunc converts a custom payload back into an application value.
type DecodeFunc func(data []byte) (any, error)

// Extension binds an application type to a custom tag.
//
// Type and Encode are consulted when encoding: a value whose dynamic type is
// Type (or implements it, when Type is an interface) is written as
// Tag + size + Encode(value). Decode is consulted when deserializing a payload
// carrying Tag. An extension with neither Type nor Decode accepts Tag on decode
// and surfaces the payload unchanged as a Custom value.
type Extension struct {
	Tag    byte
	Type   reflect.Type
	Encode EncodeFunc
	Decode DecodeFunc
}

// Registry is an ordered list of extensions consulted after the built-in
// format table. It is supplied per call and is not safe for registration
// concurrent with use; lookups alone may run concurrently.
type Registry struct {
	exts []Extension
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends ext. It fails with ErrConfiguration if the tag belongs to
// the built-in format table or the extension is incomplete.
func (r *Registry) Register(ext Extension) error {
	if IsReserved(ext.Tag) {
		return fmt.Errorf("%w: tag 0x%02x is reserved for %s", ErrConfiguration, ext.Tag, TagNames[ext.Tag])
	}
	if ext.Type != nil && ext.Encode == nil {
		return fmt.Errorf("%w: extension for %s (tag 0x%02x) has no encode function", ErrConfiguration, ext.Type, ext.Tag)
	}
	if ext.Type == nil && ext.Encode != nil {
		return fmt.Errorf("%w: encode function for tag 0x%02x has no type", ErrConfiguration, ext.Tag)
	}
	r.exts = append(r.exts, ext)
	return nil
}

// RegisterEncoder binds values of typ to tag on the encode side.
func (r *Registry) RegisterEncoder(typ reflect.Type, tag byte, fn EncodeFunc) error {
	if typ == nil {
		return fmt.Errorf("%w: nil type for tag 0x%02x", ErrConfiguration, tag)
	}
	return r.Register(Extension{Tag: tag, Type: typ, Encode: fn})
}

// RegisterDecoder binds tag to fn on the decode side.
func (r *Registry) RegisterDecoder(tag byte, fn DecodeFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: nil decode function for tag 0x%02x", ErrConfiguration, tag)
	}
	return r.Register(Extension{Tag: tag, Decode: fn})
}

// RegisterTag accepts tag on decode and keeps its payload as a Custom value.
func (r *Registry) RegisterTag(tag byte) error {
	return r.Register(Extension{Tag: tag})
}

// RegisterType binds T to tag in both directions.
func RegisterType[T any](r *Registry, tag byte, enc func(T) ([]byte, error), dec func([]byte) (T, error)) error {
	if enc == nil || dec == nil {
		return fmt.Errorf("%w: tag 0x%02x needs both converters", ErrConfiguration, tag)
	}
	typ := reflect.TypeOf((*T)(nil)).Elem()
	return r.Register(Extension{
		Tag:  tag,
		Type: typ,
		Encode: func(v any) ([]byte, error) {
			t, ok := v.(T)
			if !ok {
				return nil, fmt.Errorf("%w: %T is not %s", ErrUnsupportedType, v, typ)
			}
			return enc(t)
		},
		Decode: func(data []byte) (any, error) {
			return dec(data)
		},
	})
}

// Len returns the number of registered extensions.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.exts)
}

// Tags returns the registered tags in registration order, without duplicates.
func (r *Registry) Tags() []byte {
	if r == nil {
		return nil
	}
	seen := make(map[byte]bool, len(r.exts))
	tags := make([]byte, 0, len(r.exts))
	for _, ext := range r.exts {
		if !seen[ext.Tag] {
			seen[ext.Tag] = true
			tags = append(tags, ext.Tag)
		}
	}
	return tags
}

// encoderFor returns the first extension able to encode values of type t.
func (r *Registry) encoderFor(t reflect.Type) (*Extension, bool) {
	if r == nil || t == nil {
		return nil, false
	}
	for i := range r.exts {
		ext := &r.exts[i]
		if ext.Type == nil {
			continue
		}
		if t == ext.Type || (ext.Type.Kind() == reflect.Interface && t.Implements(ext.Type)) {
			return ext, true
		}
	}
	return nil, false
}

// decoderFor returns the first extension accepting tag on decode.
func (r *Registry) decoderFor(tag byte) (*Extension, bool) {
	if r == nil {
		return nil, false
	}
	for i := range r.exts {
		ext := &r.exts[i]
		if ext.Tag != tag {
			continue
		}
		if ext.Decode != nil || ext.Type == nil {
			return ext, true
		}
	}
	return nil, false
}
