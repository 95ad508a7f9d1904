package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/strand-protocol/binn/pkg/binn"
)

func TestPutRequestRoundTrip(t *testing.T) {
	doc, err := binn.Serialize(map[string]any{"name": "alice", "age": 32}, nil)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	orig := &PutRequest{Key: "users/alice", Document: doc, Create: true}

	data, err := orig.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded := &PutRequest{}
	if err := decoded.Decode(data); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if decoded.Key != orig.Key {
		t.Errorf("Key: %q != %q", decoded.Key, orig.Key)
	}
	if !bytes.Equal(decoded.Document, orig.Document) {
		t.Errorf("Document mismatch")
	}
	if !decoded.Create {
		t.Errorf("Create lost in round trip")
	}
}

func TestPutRequestCreateOptional(t *testing.T) {
	data, err := binn.Encode(binn.Object{
		{Key: "key", Value: binn.String("k")},
		{Key: "doc", Value: binn.Bytes{0x00}},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m := &PutRequest{}
	if err := m.Decode(data); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.Create {
		t.Errorf("Create = true, want false when absent")
	}
}

func TestKeyRequestRoundTrip(t *testing.T) {
	data, err := (&KeyRequest{Key: "a/b"}).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m := &KeyRequest{}
	if err := m.Decode(data); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.Key != "a/b" {
		t.Errorf("Key = %q", m.Key)
	}
}

func TestListRequestRoundTrip(t *testing.T) {
	data, err := (&ListRequest{Prefix: "users/", Limit: 50}).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m := &ListRequest{}
	if err := m.Decode(data); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.Prefix != "users/" || m.Limit != 50 {
		t.Errorf("got %+v", m)
	}
}

func TestListRequestLimitCapped(t *testing.T) {
	data, _ := (&ListRequest{Limit: MaxListKeys + 1}).Encode()
	m := &ListRequest{}
	if err := m.Decode(data); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.Limit != MaxListKeys {
		t.Errorf("Limit = %d, want %d", m.Limit, MaxListKeys)
	}
}

func TestValueResponseRoundTrip(t *testing.T) {
	orig := &ValueResponse{Key: "k", Document: []byte{0xA0, 0x02, 0x68, 0x69, 0x00}}
	data, err := orig.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m := &ValueResponse{}
	if err := m.Decode(data); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.Key != orig.Key || !bytes.Equal(m.Document, orig.Document) {
		t.Errorf("got %+v, want %+v", m, orig)
	}
}

func TestKeysResponseRoundTrip(t *testing.T) {
	for _, keys := range [][]string{{}, {"a"}, {"a", "b/c", "d"}} {
		data, err := (&KeysResponse{Keys: keys}).Encode()
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		m := &KeysResponse{}
		if err := m.Decode(data); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if len(m.Keys) != len(keys) {
			t.Fatalf("len = %d, want %d", len(m.Keys), len(keys))
		}
		for i := range keys {
			if m.Keys[i] != keys[i] {
				t.Errorf("Keys[%d] = %q, want %q", i, m.Keys[i], keys[i])
			}
		}
	}
}

func TestErrorMessageRoundTrip(t *testing.T) {
	data, err := (&ErrorMessage{Code: ErrNotFound, Message: "no such key"}).Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m := &ErrorMessage{}
	if err := m.Decode(data); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.Code != ErrNotFound || m.Message != "no such key" {
		t.Errorf("got %+v", m)
	}

	rerr := m.Err()
	if !errors.Is(rerr, &RemoteError{Code: ErrNotFound}) {
		t.Errorf("errors.Is(%v, NOT_FOUND) = false", rerr)
	}
	if errors.Is(rerr, &RemoteError{Code: ErrInternal}) {
		t.Errorf("errors.Is(%v, INTERNAL_ERROR) = true", rerr)
	}
}

func TestDecodeMalformed(t *testing.T) {
	notObject, _ := binn.Encode(binn.List{})
	wrongType, _ := binn.Encode(binn.Object{{Key: "key", Value: binn.Int(1)}})
	negative, _ := binn.Encode(binn.Object{
		{Key: "prefix", Value: binn.String("")},
		{Key: "limit", Value: binn.Int(-1)},
	})
	badKeys, _ := binn.Encode(binn.Object{{Key: "keys", Value: binn.List{binn.Null{}}}})

	tests := []struct {
		name string
		msg  interface{ Decode([]byte) error }
		data []byte
	}{
		{"not an object", &KeyRequest{}, notObject},
		{"empty body", &PutRequest{}, nil},
		{"wrong field type", &KeyRequest{}, wrongType},
		{"negative limit", &ListRequest{}, negative},
		{"non-string key", &KeysResponse{}, badKeys},
		{"missing keys", &KeysResponse{}, wrongType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.msg.Decode(tt.data); err == nil {
				t.Fatalf("Decode succeeded on malformed input")
			}
		})
	}

	if err := (&KeyRequest{}).Decode(wrongType); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
	if err := (&KeyRequest{}).Decode([]byte{0x99}); !errors.Is(err, binn.ErrInvalidFormat) {
		t.Errorf("err = %v, want binn.ErrInvalidFormat", err)
	}
}

func TestCodeString(t *testing.T) {
	if got := ErrTooLarge.String(); got != "TOO_LARGE" {
		t.Errorf("String = %q", got)
	}
	if got := Code(0x1234).String(); got != "CODE(0x1234)" {
		t.Errorf("String = %q", got)
	}
	if got := OpcodeName(OpPong); got != "PONG" {
		t.Errorf("OpcodeName = %q", got)
	}
	if got := OpcodeName(0x70); got != "UNKNOWN" {
		t.Errorf("OpcodeName = %q", got)
	}
}
