package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strand-protocol/binn/pkg/binn"
	"github.com/strand-protocol/binn/pkg/protocol"
	"github.com/strand-protocol/binn/pkg/server"
	"github.com/strand-protocol/binn/pkg/store"
	"github.com/strand-protocol/binn/pkg/transport"
)

// startServer serves a fresh MemoryStore on loopback over network.
func startServer(t *testing.T, network string, opts ...server.Option) string {
	t.Helper()
	s := server.New(store.NewMemoryStore(), opts...)
	errc := make(chan error, 1)
	var addr string
	switch network {
	case "tcp":
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr = ln.Addr().String()
		go func() { errc <- s.Serve(ln) }()
	case "udp":
		ov, err := transport.ListenOverlay("127.0.0.1:0")
		require.NoError(t, err)
		addr = ov.LocalAddr().String()
		go func() { errc <- s.ServeOverlay(ov) }()
	}
	t.Cleanup(func() {
		s.Stop()
		assert.NoError(t, <-errc)
	})
	return addr
}

func dial(t *testing.T, network, addr string, opts ...Option) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, network, addr, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func isCode(code protocol.Code) error { return &protocol.RemoteError{Code: code} }

func TestClientOperations(t *testing.T) {
	for _, network := range []string{"tcp", "udp"} {
		t.Run(network, func(t *testing.T) {
			c := dial(t, network, startServer(t, network))
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			rtt, err := c.Ping(ctx)
			require.NoError(t, err)
			assert.Positive(t, rtt)

			doc := binn.Object{{Key: "name", Value: binn.String("widget")}, {Key: "qty", Value: binn.Uint(3)}}
			require.NoError(t, c.PutValue(ctx, "items/1", doc))
			require.NoError(t, c.Create(ctx, "items/2", []byte{0x01}))
			assert.ErrorIs(t, c.Create(ctx, "items/2", []byte{0x01}), isCode(protocol.ErrAlreadyExists))

			got, err := c.GetValue(ctx, "items/1")
			require.NoError(t, err)
			assert.True(t, binn.Equal(doc, got))

			raw, err := c.Get(ctx, "items/2")
			require.NoError(t, err)
			assert.Equal(t, []byte{0x01}, raw)

			keys, err := c.List(ctx, "items/", 0)
			require.NoError(t, err)
			assert.Equal(t, []string{"items/1", "items/2"}, keys)

			keys, err = c.List(ctx, "items/", 1)
			require.NoError(t, err)
			assert.Equal(t, []string{"items/1"}, keys)

			require.NoError(t, c.Delete(ctx, "items/1"))
			_, err = c.Get(ctx, "items/1")
			assert.ErrorIs(t, err, isCode(protocol.ErrNotFound))
			assert.ErrorIs(t, c.Delete(ctx, "items/1"), isCode(protocol.ErrNotFound))
		})
	}
}

func TestClientRemoteError(t *testing.T) {
	c := dial(t, "tcp", startServer(t, "tcp"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := c.Put(ctx, "bad", []byte{0xE2, 0x7F})
	var re *protocol.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, protocol.ErrInvalidDocument, re.Code)
	assert.NotEmpty(t, re.Message)
}

func TestClientCustomTags(t *testing.T) {
	reg := binn.NewRegistry()
	require.NoError(t, reg.RegisterTag(0x09))
	addr := startServer(t, "tcp", server.WithDecodeOptions(binn.WithRegistry(reg)))
	c := dial(t, "tcp", addr, WithDecodeOptions(binn.WithRegistry(reg)))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	v := binn.List{binn.Custom{Tag: 0x09, Data: []byte("opaque")}}
	require.NoError(t, c.PutValue(ctx, "ext", v))
	got, err := c.GetValue(ctx, "ext")
	require.NoError(t, err)
	assert.True(t, binn.Equal(v, got))
}

// scriptedTransport answers every request with a fixed frame.
type scriptedTransport struct {
	op      byte
	payload []byte
	closed  bool
}

func (s *scriptedTransport) Send(context.Context, byte, []byte) error { return nil }
func (s *scriptedTransport) Recv(context.Context) (byte, []byte, error) {
	return s.op, s.payload, nil
}
func (s *scriptedTransport) Close() error { s.closed = true; return nil }

func TestClientUnexpectedOpcode(t *testing.T) {
	c, err := Dial(context.Background(), "tcp", "unused", WithTransport(&scriptedTransport{op: protocol.OpKeys}))
	require.NoError(t, err)

	_, err = c.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected opcode")
}

func TestClientUndecodableErrorFrame(t *testing.T) {
	c, err := Dial(context.Background(), "tcp", "unused", WithTransport(&scriptedTransport{op: protocol.OpError, payload: []byte{0xFF}}))
	require.NoError(t, err)

	err = c.Delete(context.Background(), "k")
	require.Error(t, err)
	var re *protocol.RemoteError
	assert.False(t, errors.As(err, &re))
}

func TestClientClose(t *testing.T) {
	tr := &scriptedTransport{op: protocol.OpPong}
	c, err := Dial(context.Background(), "tcp", "unused", WithTransport(tr))
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, tr.closed)

	_, err = c.Ping(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDialUnsupportedNetwork(t *testing.T) {
	_, err := Dial(context.Background(), "sctp", "127.0.0.1:1")
	assert.Error(t, err)
}
