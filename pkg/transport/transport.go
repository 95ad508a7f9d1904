// Package transport carries protocol frames between binn clients and servers.
//
// StreamTransport frames messages over a connected byte stream such as TCP.
// OverlayTransport carries one frame per UDP datagram behind a small header,
// for deployments where connection setup is unwanted.
package transport

import (
	"context"
	"errors"
	"net"
	"time"
)

// Transport is the message-level transport used by the client and server.
// Each call to Send/Recv operates on one complete frame (opcode + payload).
type Transport interface {
	// Send transmits a single frame identified by opcode with the given
	// payload. The context may carry deadlines or cancellation.
	Send(ctx context.Context, opcode byte, payload []byte) error

	// Recv blocks until a complete frame arrives. The context may carry
	// deadlines or cancellation.
	Recv(ctx context.Context) (opcode byte, payload []byte, err error)

	// Close shuts down the transport. Blocked operations return an error.
	Close() error
}

// watchContext applies ctx's deadline through set and, when ctx is cancelled
// before stop is called, sets an expired deadline so a blocked read or write
// returns promptly.
func watchContext(ctx context.Context, set func(time.Time) error) (stop func(), err error) {
	deadline, _ := ctx.Deadline()
	if err := set(deadline); err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = set(time.Now())
		case <-done:
		}
	}()
	return func() { close(done) }, nil
}

// ctxErr reports a timeout caused by ctx as ctx's error.
func ctxErr(ctx context.Context, err error) error {
	var ne net.Error
	if err == nil || !errors.As(err, &ne) || !ne.Timeout() {
		return err
	}
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return context.DeadlineExceeded
	}
	return err
}
