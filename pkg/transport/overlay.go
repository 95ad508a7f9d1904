package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
)

// Overlay transport wire constants.
const (
	OverlayMagic   uint16 = 0x424E // "BN"
	OverlayVersion byte   = 1
	overlayHdrSize        = 8 // 2B magic + 1B version + 1B flags + 4B length
	maxUDPPayload         = 65507
)

var (
	ErrInvalidMagic    = errors.New("binn overlay: invalid magic bytes")
	ErrVersionMismatch = errors.New("binn overlay: unsupported version")
	ErrMessageTooLarge = errors.New("binn overlay: message exceeds maximum UDP payload")
)

// MaxOverlayPayload is the largest payload a single overlay frame can carry.
const MaxOverlayPayload = maxUDPPayload - overlayHdrSize - 1

// OverlayTransport frames messages over UDP, one frame per datagram.
//
// Frame layout on the wire:
//
//	[2B magic 0x424E][1B version][1B flags][4B length LE][1B opcode][payload...]
//
// A dialled transport talks to one peer. A listening transport replies to
// the sender of the most recent datagram on Send; servers that handle many
// peers use RecvFrom and SendTo instead.
type OverlayTransport struct {
	conn   *net.UDPConn
	dialed bool

	mu     sync.Mutex
	remote *net.UDPAddr
	closed bool
}

// DialOverlay connects to a remote overlay endpoint.
func DialOverlay(addr string) (*OverlayTransport, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("binn overlay: resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("binn overlay: dial %s: %w", addr, err)
	}
	return &OverlayTransport{conn: conn, dialed: true, remote: raddr}, nil
}

// ListenOverlay creates a listening overlay transport bound to addr.
func ListenOverlay(addr string) (*OverlayTransport, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("binn overlay: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("binn overlay: listen %s: %w", addr, err)
	}
	return &OverlayTransport{conn: conn}, nil
}

func (t *OverlayTransport) state() (remote *net.UDPAddr, closed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remote, t.closed
}

// Send transmits a single frame to the connected peer, or for a listening
// transport to the sender of the last received datagram.
func (t *OverlayTransport) Send(ctx context.Context, opcode byte, payload []byte) error {
	remote, closed := t.state()
	if closed {
		return ErrTransportClosed
	}
	if remote == nil {
		return errors.New("binn overlay: no peer to send to")
	}
	return t.send(ctx, remote, opcode, payload)
}

// SendTo transmits a single frame to addr. It is only valid on a listening
// transport.
func (t *OverlayTransport) SendTo(ctx context.Context, addr net.Addr, opcode byte, payload []byte) error {
	if _, closed := t.state(); closed {
		return ErrTransportClosed
	}
	if t.dialed {
		return errors.New("binn overlay: SendTo on a dialled transport")
	}
	return t.send(ctx, addr, opcode, payload)
}

func (t *OverlayTransport) send(ctx context.Context, addr net.Addr, opcode byte, payload []byte) error {
	if len(payload) > MaxOverlayPayload {
		return ErrMessageTooLarge
	}
	frame := make([]byte, overlayHdrSize+1+len(payload))
	binary.BigEndian.PutUint16(frame[0:2], OverlayMagic)
	frame[2] = OverlayVersion
	frame[3] = 0 // flags, reserved
	binary.LittleEndian.PutUint32(frame[4:8], uint32(1+len(payload)))
	frame[8] = opcode
	copy(frame[9:], payload)

	stop, err := watchContext(ctx, t.conn.SetWriteDeadline)
	if err != nil {
		return err
	}
	defer stop()

	if t.dialed {
		_, err = t.conn.Write(frame)
	} else {
		_, err = t.conn.WriteTo(frame, addr)
	}
	return ctxErr(ctx, err)
}

// Recv blocks until a complete overlay frame arrives.
func (t *OverlayTransport) Recv(ctx context.Context) (byte, []byte, error) {
	op, payload, _, err := t.RecvFrom(ctx)
	return op, payload, err
}

// RecvFrom blocks until a complete overlay frame arrives and also returns
// the sender's address.
func (t *OverlayTransport) RecvFrom(ctx context.Context) (byte, []byte, net.Addr, error) {
	if _, closed := t.state(); closed {
		return 0, nil, nil, ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, nil, nil, err
	}

	stop, err := watchContext(ctx, t.conn.SetReadDeadline)
	if err != nil {
		return 0, nil, nil, err
	}
	defer stop()

	buf := make([]byte, maxUDPPayload)
	n, from, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		return 0, nil, nil, ctxErr(ctx, err)
	}
	if !t.dialed && from != nil {
		t.mu.Lock()
		t.remote = from
		t.mu.Unlock()
	}

	op, payload, err := parseOverlayFrame(buf[:n])
	if err != nil {
		return 0, nil, from, err
	}
	return op, payload, from, nil
}

func parseOverlayFrame(buf []byte) (byte, []byte, error) {
	if len(buf) < overlayHdrSize+1 {
		return 0, nil, fmt.Errorf("binn overlay: frame too short (%d bytes)", len(buf))
	}
	if binary.BigEndian.Uint16(buf[0:2]) != OverlayMagic {
		return 0, nil, ErrInvalidMagic
	}
	if buf[2] != OverlayVersion {
		return 0, nil, ErrVersionMismatch
	}
	length := binary.LittleEndian.Uint32(buf[4:8])
	if length == 0 || uint64(overlayHdrSize)+uint64(length) > uint64(len(buf)) {
		return 0, nil, fmt.Errorf("binn overlay: declared length %d exceeds received %d", length, len(buf)-overlayHdrSize)
	}
	payload := make([]byte, length-1)
	copy(payload, buf[overlayHdrSize+1:])
	return buf[overlayHdrSize], payload, nil
}

// Close shuts down the overlay transport.
func (t *OverlayTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

// LocalAddr returns the local network address of the underlying connection.
func (t *OverlayTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}
