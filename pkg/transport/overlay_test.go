package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"
)

var (
	_ Transport = (*OverlayTransport)(nil)
	_ Transport = (*StreamTransport)(nil)
)

func TestOverlayLoopback(t *testing.T) {
	listener, err := ListenOverlay("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenOverlay: %v", err)
	}
	defer listener.Close()

	sender, err := DialOverlay(listener.LocalAddr().String())
	if err != nil {
		t.Fatalf("DialOverlay: %v", err)
	}
	defer sender.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload := []byte{0xA0, 0x02, 0x68, 0x69, 0x00}
	if err := sender.Send(ctx, 0x01, payload); err != nil {
		t.Fatalf("Send: %v", err)
	}
	gotOp, gotPayload, err := listener.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if gotOp != 0x01 {
		t.Errorf("opcode = 0x%02x, want 0x01", gotOp)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Errorf("payload = % x, want % x", gotPayload, payload)
	}

	// The listener replies to the last sender.
	if err := listener.Send(ctx, 0x84, nil); err != nil {
		t.Fatalf("reply Send: %v", err)
	}
	gotOp, gotPayload, err = sender.Recv(ctx)
	if err != nil {
		t.Fatalf("reply Recv: %v", err)
	}
	if gotOp != 0x84 || len(gotPayload) != 0 {
		t.Errorf("reply = 0x%02x % x", gotOp, gotPayload)
	}
}

func TestOverlaySendTo(t *testing.T) {
	listener, err := ListenOverlay("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenOverlay: %v", err)
	}
	defer listener.Close()

	a, err := DialOverlay(listener.LocalAddr().String())
	if err != nil {
		t.Fatalf("DialOverlay: %v", err)
	}
	defer a.Close()
	b, err := DialOverlay(listener.LocalAddr().String())
	if err != nil {
		t.Fatalf("DialOverlay: %v", err)
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := a.Send(ctx, 0x05, []byte("a")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_, _, fromA, err := listener.RecvFrom(ctx)
	if err != nil {
		t.Fatalf("RecvFrom: %v", err)
	}
	if err := b.Send(ctx, 0x05, []byte("b")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, _, _, err := listener.RecvFrom(ctx); err != nil {
		t.Fatalf("RecvFrom: %v", err)
	}

	if err := listener.SendTo(ctx, fromA, 0x84, []byte("to-a")); err != nil {
		t.Fatalf("SendTo: %v", err)
	}
	_, got, err := a.Recv(ctx)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(got) != "to-a" {
		t.Errorf("payload = %q, want %q", got, "to-a")
	}

	if err := a.SendTo(ctx, fromA, 0x01, nil); err == nil {
		t.Errorf("SendTo on dialled transport succeeded")
	}
}

func TestOverlayMessageTooLarge(t *testing.T) {
	sender, err := DialOverlay("127.0.0.1:9")
	if err != nil {
		t.Fatalf("DialOverlay: %v", err)
	}
	defer sender.Close()

	err = sender.Send(context.Background(), 0x01, make([]byte, MaxOverlayPayload+1))
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("err = %v, want ErrMessageTooLarge", err)
	}
}

func TestOverlayRejectsBadFrames(t *testing.T) {
	good := make([]byte, overlayHdrSize+1)
	binary.BigEndian.PutUint16(good[0:2], OverlayMagic)
	good[2] = OverlayVersion
	binary.LittleEndian.PutUint32(good[4:8], 1)

	if _, _, err := parseOverlayFrame(good); err != nil {
		t.Fatalf("parse valid frame: %v", err)
	}

	badMagic := append([]byte(nil), good...)
	badMagic[0] = 'P'
	if _, _, err := parseOverlayFrame(badMagic); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("bad magic: err = %v", err)
	}

	badVersion := append([]byte(nil), good...)
	badVersion[2] = 9
	if _, _, err := parseOverlayFrame(badVersion); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("bad version: err = %v", err)
	}

	badLength := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(badLength[4:8], 100)
	if _, _, err := parseOverlayFrame(badLength); err == nil {
		t.Errorf("overlong length accepted")
	}

	if _, _, err := parseOverlayFrame(good[:4]); err == nil {
		t.Errorf("short frame accepted")
	}
}

func TestOverlayRecvCancel(t *testing.T) {
	listener, err := ListenOverlay("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenOverlay: %v", err)
	}
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, _, err = listener.Recv(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestOverlayClosed(t *testing.T) {
	listener, err := ListenOverlay("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenOverlay: %v", err)
	}
	if err := listener.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := listener.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, _, err := listener.Recv(context.Background()); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("Recv after Close: err = %v", err)
	}
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9}
	if err := listener.SendTo(context.Background(), addr, 0x01, nil); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("SendTo after Close: err = %v", err)
	}
}
