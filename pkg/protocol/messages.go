package protocol

import (
	"errors"
	"fmt"

	"github.com/strand-protocol/binn/pkg/binn"
)

// Allocation guard: cap the number of keys a single KEYS response may carry.
const MaxListKeys = 10000

// ErrMalformed is returned when a message body decodes as BINN but does not
// have the expected shape.
var ErrMalformed = errors.New("binn protocol: malformed message")

// PutRequest stores Document under Key. When Create is set the request fails
// with ErrAlreadyExists if the key is taken.
type PutRequest struct {
	Key      string
	Document []byte // encoded BINN value
	Create   bool
}

// Encode serialises the request as a BINN object.
func (m *PutRequest) Encode() ([]byte, error) {
	return binn.Encode(binn.Object{
		{Key: "key", Value: binn.String(m.Key)},
		{Key: "doc", Value: binn.Bytes(m.Document)},
		{Key: "create", Value: binn.Bool(m.Create)},
	})
}

// Decode parses a request produced by Encode.
func (m *PutRequest) Decode(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	if m.Key, err = f.str("key"); err != nil {
		return err
	}
	if m.Document, err = f.blob("doc"); err != nil {
		return err
	}
	m.Create, err = f.optBool("create")
	return err
}

// KeyRequest names a single document. It is the body of OpGet and OpDelete.
type KeyRequest struct {
	Key string
}

// Encode serialises the request as a BINN object.
func (m *KeyRequest) Encode() ([]byte, error) {
	return binn.Encode(binn.Object{{Key: "key", Value: binn.String(m.Key)}})
}

// Decode parses a request produced by Encode.
func (m *KeyRequest) Decode(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	m.Key, err = f.str("key")
	return err
}

// ListRequest asks for at most Limit keys starting with Prefix. A zero Limit
// means no limit beyond MaxListKeys.
type ListRequest struct {
	Prefix string
	Limit  uint32
}

// Encode serialises the request as a BINN object.
func (m *ListRequest) Encode() ([]byte, error) {
	return binn.Encode(binn.Object{
		{Key: "prefix", Value: binn.String(m.Prefix)},
		{Key: "limit", Value: binn.Uint(m.Limit)},
	})
}

// Decode parses a request produced by Encode.
func (m *ListRequest) Decode(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	if m.Prefix, err = f.str("prefix"); err != nil {
		return err
	}
	limit, err := f.unsigned("limit")
	if err != nil {
		return err
	}
	if limit > MaxListKeys {
		limit = MaxListKeys
	}
	m.Limit = uint32(limit)
	return nil
}

// ValueResponse carries a stored document.
type ValueResponse struct {
	Key      string
	Document []byte
}

// Encode serialises the response as a BINN object.
func (m *ValueResponse) Encode() ([]byte, error) {
	return binn.Encode(binn.Object{
		{Key: "key", Value: binn.String(m.Key)},
		{Key: "doc", Value: binn.Bytes(m.Document)},
	})
}

// Decode parses a response produced by Encode.
func (m *ValueResponse) Decode(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	if m.Key, err = f.str("key"); err != nil {
		return err
	}
	m.Document, err = f.blob("doc")
	return err
}

// KeysResponse lists document keys in ascending order.
type KeysResponse struct {
	Keys []string
}

// Encode serialises the response as a BINN object.
func (m *KeysResponse) Encode() ([]byte, error) {
	keys := make(binn.List, len(m.Keys))
	for i, k := range m.Keys {
		keys[i] = binn.String(k)
	}
	return binn.Encode(binn.Object{{Key: "keys", Value: keys}})
}

// Decode parses a response produced by Encode.
func (m *KeysResponse) Decode(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	v, ok := f.Get("keys")
	if !ok {
		return fmt.Errorf("%w: missing field %q", ErrMalformed, "keys")
	}
	list, ok := v.(binn.List)
	if !ok {
		return fmt.Errorf("%w: field %q is %s, want list", ErrMalformed, "keys", v.Kind())
	}
	if len(list) > MaxListKeys {
		return fmt.Errorf("%w: %d keys exceed limit %d", ErrMalformed, len(list), MaxListKeys)
	}
	m.Keys = make([]string, len(list))
	for i, item := range list {
		s, ok := item.(binn.String)
		if !ok {
			return fmt.Errorf("%w: key %d is %s, want string", ErrMalformed, i, item.Kind())
		}
		m.Keys[i] = string(s)
	}
	return nil
}

// ErrorMessage is the body of an OpError frame.
type ErrorMessage struct {
	Code    Code
	Message string
}

// Encode serialises the message as a BINN object.
func (m *ErrorMessage) Encode() ([]byte, error) {
	return binn.Encode(binn.Object{
		{Key: "code", Value: binn.Uint(m.Code)},
		{Key: "message", Value: binn.String(m.Message)},
	})
}

// Decode parses a message produced by Encode.
func (m *ErrorMessage) Decode(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	code, err := f.unsigned("code")
	if err != nil {
		return err
	}
	if code > 0xFFFF {
		return fmt.Errorf("%w: error code %d out of range", ErrMalformed, code)
	}
	m.Code = Code(code)
	m.Message, err = f.str("message")
	return err
}

// Err returns the message as a *RemoteError.
func (m *ErrorMessage) Err() error {
	return &RemoteError{Code: m.Code, Message: m.Message}
}

// fields is a decoded message body with typed accessors.
type fields struct {
	binn.Object
}

func decodeFields(data []byte) (fields, error) {
	v, err := binn.Decode(data)
	if err != nil {
		return fields{}, fmt.Errorf("binn protocol: decode message: %w", err)
	}
	obj, ok := v.(binn.Object)
	if !ok {
		return fields{}, fmt.Errorf("%w: body is %s, want object", ErrMalformed, v.Kind())
	}
	return fields{obj}, nil
}

func (f fields) field(name string) (binn.Value, error) {
	v, ok := f.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: missing field %q", ErrMalformed, name)
	}
	return v, nil
}

func (f fields) str(name string) (string, error) {
	v, err := f.field(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(binn.String)
	if !ok {
		return "", fmt.Errorf("%w: field %q is %s, want string", ErrMalformed, name, v.Kind())
	}
	return string(s), nil
}

func (f fields) blob(name string) ([]byte, error) {
	v, err := f.field(name)
	if err != nil {
		return nil, err
	}
	b, ok := v.(binn.Bytes)
	if !ok {
		return nil, fmt.Errorf("%w: field %q is %s, want bytes", ErrMalformed, name, v.Kind())
	}
	return []byte(b), nil
}

func (f fields) unsigned(name string) (uint64, error) {
	v, err := f.field(name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case binn.Uint:
		return uint64(n), nil
	case binn.Int:
		if n >= 0 {
			return uint64(n), nil
		}
	}
	return 0, fmt.Errorf("%w: field %q is %s, want unsigned integer", ErrMalformed, name, v.Kind())
}

func (f fields) optBool(name string) (bool, error) {
	v, ok := f.Get(name)
	if !ok {
		return false, nil
	}
	b, ok := v.(binn.Bool)
	if !ok {
		return false, fmt.Errorf("%w: field %q is %s, want bool", ErrMalformed, name, v.Kind())
	}
	return bool(b), nil
}
