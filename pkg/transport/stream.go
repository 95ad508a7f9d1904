package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/strand-protocol/binn/pkg/protocol"
)

// ErrTransportClosed is returned by operations on a closed transport.
var ErrTransportClosed = errors.New("binn transport: transport is closed")

// StreamTransport frames messages over a net.Conn using protocol.WriteFrame
// and protocol.ReadFrame. Send and Recv may be called concurrently with each
// other; concurrent Sends are serialised.
type StreamTransport struct {
	conn net.Conn
	r    *bufio.Reader

	wmu sync.Mutex
	rmu sync.Mutex

	mu     sync.Mutex
	closed bool
}

// NewStreamTransport wraps an established connection.
func NewStreamTransport(conn net.Conn) *StreamTransport {
	return &StreamTransport{conn: conn, r: bufio.NewReader(conn)}
}

// DialStream connects to a stream endpoint at addr over network ("tcp",
// "unix", ...).
func DialStream(ctx context.Context, network, addr string) (*StreamTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("binn transport: dial %s %s: %w", network, addr, err)
	}
	return NewStreamTransport(conn), nil
}

func (t *StreamTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Send writes one frame.
func (t *StreamTransport) Send(ctx context.Context, opcode byte, payload []byte) error {
	if t.isClosed() {
		return ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()

	stop, err := watchContext(ctx, t.conn.SetWriteDeadline)
	if err != nil {
		return err
	}
	defer stop()
	if err := protocol.WriteFrame(t.conn, opcode, payload); err != nil {
		return ctxErr(ctx, err)
	}
	return nil
}

// Recv reads one frame. It returns io.EOF when the peer closes the
// connection between frames.
func (t *StreamTransport) Recv(ctx context.Context) (byte, []byte, error) {
	if t.isClosed() {
		return 0, nil, ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	t.rmu.Lock()
	defer t.rmu.Unlock()

	stop, err := watchContext(ctx, t.conn.SetReadDeadline)
	if err != nil {
		return 0, nil, err
	}
	defer stop()
	op, payload, err := protocol.ReadFrame(t.r)
	if err != nil {
		return 0, nil, ctxErr(ctx, err)
	}
	return op, payload, nil
}

// Close closes the underlying connection.
func (t *StreamTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

// RemoteAddr returns the peer's address.
func (t *StreamTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}
