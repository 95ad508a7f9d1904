// Package client provides a typed client for the BINN document server. It
// wraps a transport.Transport with one method per protocol operation.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/strand-protocol/binn/pkg/binn"
	"github.com/strand-protocol/binn/pkg/protocol"
	"github.com/strand-protocol/binn/pkg/transport"
)

// ErrClosed is returned by calls on a closed Client.
var ErrClosed = errors.New("binn client: client is closed")

// Option configures a Client during construction.
type Option func(*Client)

// WithTransport overrides the transport used by the Client, skipping the
// dial. This is useful for testing or for custom transports.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithDecodeOptions sets the options GetValue decodes documents with.
func WithDecodeOptions(opts ...binn.Option) Option {
	return func(c *Client) {
		c.decodeOpts = opts
	}
}

// Client issues requests one at a time over a single transport. Responses are
// matched to requests by order, so concurrent calls are serialised. Over UDP
// a lost datagram surfaces as the context's deadline error.
type Client struct {
	transport  transport.Transport
	decodeOpts []binn.Option

	reqMu  sync.Mutex // held for a whole request/response exchange
	mu     sync.Mutex
	closed bool
}

// Dial connects to the server at addr over network ("tcp" or "udp").
func Dial(ctx context.Context, network, addr string, opts ...Option) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport != nil {
		return c, nil
	}
	switch network {
	case "tcp", "tcp4", "tcp6":
		t, err := transport.DialStream(ctx, network, addr)
		if err != nil {
			return nil, fmt.Errorf("binn client: dial: %w", err)
		}
		c.transport = t
	case "udp":
		t, err := transport.DialOverlay(addr)
		if err != nil {
			return nil, fmt.Errorf("binn client: dial: %w", err)
		}
		c.transport = t
	default:
		return nil, fmt.Errorf("binn client: unsupported network %q", network)
	}
	return c, nil
}

// roundTrip sends one request and returns the payload of a response with
// opcode want. An OpError response is returned as a *protocol.RemoteError.
func (c *Client) roundTrip(ctx context.Context, op byte, payload []byte, want byte) ([]byte, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	name := protocol.OpcodeName(op)
	if err := c.transport.Send(ctx, op, payload); err != nil {
		return nil, fmt.Errorf("binn client: send %s: %w", name, err)
	}
	rop, body, err := c.transport.Recv(ctx)
	if err != nil {
		return nil, fmt.Errorf("binn client: recv %s response: %w", name, err)
	}
	switch rop {
	case want:
		return body, nil
	case protocol.OpError:
		var msg protocol.ErrorMessage
		if err := msg.Decode(body); err != nil {
			return nil, fmt.Errorf("binn client: decode error response: %w", err)
		}
		return nil, msg.Err()
	}
	return nil, fmt.Errorf("binn client: unexpected opcode 0x%02x (%s), want %s",
		rop, protocol.OpcodeName(rop), protocol.OpcodeName(want))
}

// Put stores an encoded document under key, replacing any existing one.
func (c *Client) Put(ctx context.Context, key string, doc []byte) error {
	return c.put(ctx, &protocol.PutRequest{Key: key, Document: doc})
}

// Create stores doc under key, failing with protocol.ErrAlreadyExists if the
// key is taken.
func (c *Client) Create(ctx context.Context, key string, doc []byte) error {
	return c.put(ctx, &protocol.PutRequest{Key: key, Document: doc, Create: true})
}

// PutValue encodes v and stores it under key.
func (c *Client) PutValue(ctx context.Context, key string, v binn.Value) error {
	doc, err := binn.Encode(v)
	if err != nil {
		return fmt.Errorf("binn client: encode %q: %w", key, err)
	}
	return c.Put(ctx, key, doc)
}

func (c *Client) put(ctx context.Context, req *protocol.PutRequest) error {
	body, err := req.Encode()
	if err != nil {
		return fmt.Errorf("binn client: encode put: %w", err)
	}
	_, err = c.roundTrip(ctx, protocol.OpPut, body, protocol.OpOK)
	return err
}

// Get returns the encoded document stored under key.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := (&protocol.KeyRequest{Key: key}).Encode()
	if err != nil {
		return nil, fmt.Errorf("binn client: encode get: %w", err)
	}
	resp, err := c.roundTrip(ctx, protocol.OpGet, body, protocol.OpValue)
	if err != nil {
		return nil, err
	}
	var v protocol.ValueResponse
	if err := v.Decode(resp); err != nil {
		return nil, fmt.Errorf("binn client: decode value: %w", err)
	}
	return v.Document, nil
}

// GetValue fetches and decodes the document stored under key.
func (c *Client) GetValue(ctx context.Context, key string) (binn.Value, error) {
	doc, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	v, err := binn.Decode(doc, c.decodeOpts...)
	if err != nil {
		return nil, fmt.Errorf("binn client: decode %q: %w", key, err)
	}
	return v, nil
}

// Delete removes the document stored under key.
func (c *Client) Delete(ctx context.Context, key string) error {
	body, err := (&protocol.KeyRequest{Key: key}).Encode()
	if err != nil {
		return fmt.Errorf("binn client: encode delete: %w", err)
	}
	_, err = c.roundTrip(ctx, protocol.OpDelete, body, protocol.OpOK)
	return err
}

// List returns up to limit keys starting with prefix, in ascending order.
// A zero limit asks for the server maximum.
func (c *Client) List(ctx context.Context, prefix string, limit uint32) ([]string, error) {
	body, err := (&protocol.ListRequest{Prefix: prefix, Limit: limit}).Encode()
	if err != nil {
		return nil, fmt.Errorf("binn client: encode list: %w", err)
	}
	resp, err := c.roundTrip(ctx, protocol.OpList, body, protocol.OpKeys)
	if err != nil {
		return nil, err
	}
	var keys protocol.KeysResponse
	if err := keys.Decode(resp); err != nil {
		return nil, fmt.Errorf("binn client: decode keys: %w", err)
	}
	return keys.Keys, nil
}

// Ping measures one request round trip.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if _, err := c.roundTrip(ctx, protocol.OpPing, nil, protocol.OpPong); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Close shuts down the client transport.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.transport.Close()
}
