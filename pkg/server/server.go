// Package server implements the BINN document server. It accepts protocol
// frames over TCP streams or UDP overlay datagrams, validates documents with
// the configured codec options and keeps them in a store.Store.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/strand-protocol/binn/pkg/binn"
	"github.com/strand-protocol/binn/pkg/observability"
	"github.com/strand-protocol/binn/pkg/protocol"
	"github.com/strand-protocol/binn/pkg/store"
	"github.com/strand-protocol/binn/pkg/transport"
)

const (
	// defaultShutdownTimeout is how long Stop waits for in-flight requests
	// before forcibly closing connections.
	defaultShutdownTimeout = 5 * time.Second
	// defaultMaxConns bounds concurrently served TCP connections and
	// in-flight UDP requests.
	defaultMaxConns = 256
)

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithDecodeOptions sets the options used to validate stored documents, for
// example a registry accepting custom tags or strict size checking.
func WithDecodeOptions(opts ...binn.Option) Option {
	return func(s *Server) {
		s.decodeOpts = opts
	}
}

// WithMaxConns bounds concurrent connections (TCP) or requests (UDP).
func WithMaxConns(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxConns = n
		}
	}
}

// WithShutdownTimeout configures how long Stop waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// Server serves one store over the document protocol.
type Server struct {
	store           store.Store
	log             *zap.Logger
	metrics         *observability.Metrics
	decodeOpts      []binn.Option
	maxConns        int
	shutdownTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	overlay  *transport.OverlayTransport
	conns    map[*transport.StreamTransport]struct{}
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	sem      chan struct{}
	wg       sync.WaitGroup
}

// New creates a Server backed by st.
func New(st store.Store, opts ...Option) *Server {
	s := &Server{
		store:           st,
		log:             zap.NewNop(),
		maxConns:        defaultMaxConns,
		shutdownTimeout: defaultShutdownTimeout,
		conns:           make(map[*transport.StreamTransport]struct{}),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observability.NewMetrics()
	}
	s.sem = make(chan struct{}, s.maxConns)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *observability.Metrics { return s.metrics }

// ListenAndServe binds addr on network ("tcp" or "udp") and serves until Stop.
func (s *Server) ListenAndServe(network, addr string) error {
	switch network {
	case "tcp", "tcp4", "tcp6":
		ln, err := net.Listen(network, addr)
		if err != nil {
			return fmt.Errorf("binn server: listen: %w", err)
		}
		return s.Serve(ln)
	case "udp":
		t, err := transport.ListenOverlay(addr)
		if err != nil {
			return fmt.Errorf("binn server: listen: %w", err)
		}
		return s.ServeOverlay(t)
	}
	return fmt.Errorf("binn server: unsupported network %q", network)
}

// Addr returns the address being served, or nil before Serve is called.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.listener != nil:
		return s.listener.Addr()
	case s.overlay != nil:
		return s.overlay.LocalAddr()
	}
	return nil
}

func (s *Server) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Serve accepts stream connections on ln until Stop is called. It returns
// nil after a graceful stop.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.stopped() {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.listener = ln
	s.mu.Unlock()

	s.log.Info("serving", zap.String("network", "tcp"), zap.Stringer("addr", ln.Addr()))
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.stopped() {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warn("accept timeout", zap.Error(err))
				continue
			}
			return fmt.Errorf("binn server: accept: %w", err)
		}

		select {
		case s.sem <- struct{}{}:
		default:
			s.log.Warn("overloaded, refusing connection", zap.Stringer("remote", conn.RemoteAddr()))
			conn.Close()
			continue
		}

		t := transport.NewStreamTransport(conn)
		if !s.track(t) {
			<-s.sem
			t.Close()
			return nil
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			defer s.untrack(t)
			s.serveConn(t)
		}()
	}
}

func (s *Server) track(t *transport.StreamTransport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped() {
		return false
	}
	s.conns[t] = struct{}{}
	return true
}

func (s *Server) untrack(t *transport.StreamTransport) {
	s.mu.Lock()
	delete(s.conns, t)
	s.mu.Unlock()
	t.Close()
}

// serveConn handles frames from one connection in order until the peer
// disconnects or the server stops.
func (s *Server) serveConn(t *transport.StreamTransport) {
	s.metrics.ConnOpened()
	defer s.metrics.ConnClosed()

	log := s.log.With(zap.Stringer("remote", t.RemoteAddr()))
	log.Debug("connection opened")
	defer log.Debug("connection closed")

	for {
		op, payload, err := t.Recv(s.ctx)
		if err != nil {
			if errors.Is(err, protocol.ErrPayloadTooLarge) {
				rop, body := s.errorFrame(log, op, err)
				_ = t.Send(context.Background(), rop, body)
			} else if !s.stopped() && !isDisconnect(err) {
				log.Warn("recv failed", zap.Error(err))
			}
			return
		}

		// A request that has been read runs to completion even if Stop is
		// called meanwhile.
		ctx := context.WithoutCancel(s.ctx)
		rop, body := s.handle(ctx, log, op, payload)
		if err := t.Send(ctx, rop, body); err != nil {
			log.Warn("send failed", zap.Error(err))
			return
		}
	}
}

// ServeOverlay serves UDP datagrams on t until Stop is called. Requests are
// handled concurrently; each reply goes to the datagram's sender.
func (s *Server) ServeOverlay(t *transport.OverlayTransport) error {
	s.mu.Lock()
	if s.stopped() {
		s.mu.Unlock()
		t.Close()
		return nil
	}
	s.overlay = t
	s.mu.Unlock()

	s.log.Info("serving", zap.String("network", "udp"), zap.Stringer("addr", t.LocalAddr()))
	for {
		op, payload, from, err := t.RecvFrom(s.ctx)
		if err != nil {
			if s.stopped() {
				return nil
			}
			if errors.Is(err, transport.ErrInvalidMagic) || errors.Is(err, transport.ErrVersionMismatch) {
				s.log.Debug("dropping bad datagram", zap.Error(err))
				continue
			}
			return fmt.Errorf("binn server: recv: %w", err)
		}

		select {
		case s.sem <- struct{}{}:
		default:
			s.log.Warn("overloaded, dropping frame", zap.String("opcode", protocol.OpcodeName(op)), zap.Stringer("remote", from))
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() { <-s.sem }()
			ctx := context.WithoutCancel(s.ctx)
			log := s.log.With(zap.Stringer("remote", from))
			rop, body := s.handle(ctx, log, op, payload)
			err := t.SendTo(ctx, from, rop, body)
			if errors.Is(err, transport.ErrMessageTooLarge) {
				rop, body = s.errorFrame(log, op, err)
				err = t.SendTo(ctx, from, rop, body)
			}
			if err != nil && !s.stopped() {
				log.Warn("send failed", zap.Error(err))
			}
		}()
	}
}

// Stop stops accepting work and waits up to the shutdown timeout for
// in-flight requests before closing every connection.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopped() {
		s.mu.Unlock()
		return
	}
	close(s.done)
	ln, ov := s.listener, s.overlay
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	// Unblocks idle Recv calls; requests already read keep running.
	s.cancel()

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		s.log.Info("all in-flight requests drained")
	case <-time.After(s.shutdownTimeout):
		s.log.Warn("shutdown timeout exceeded, forcing close", zap.Duration("timeout", s.shutdownTimeout))
		s.mu.Lock()
		for t := range s.conns {
			t.Close()
		}
		s.mu.Unlock()
	}
	if ov != nil {
		ov.Close()
	}
}

func isDisconnect(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, transport.ErrTransportClosed) ||
		errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
