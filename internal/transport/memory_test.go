package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMemoryRendezvous(t *testing.T) {
	net := NewMemoryNetwork()
	ctx := context.Background()

	ln, err := net.Open(ctx, "ABCD")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ln.Close()

	if _, err := net.Open(ctx, "ABCD"); !errors.Is(err, ErrRoomTaken) {
		t.Fatalf("duplicate open = %v, want room taken", err)
	}

	dialed, err := net.Dial(ctx, "ABCD")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	accepted, err := ln.Accept(ctx)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := dialed.Send([]byte("ping")); err != nil {
		t.Fatalf("send: %v", err)
	}
	payload, err := accepted.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if string(payload) != "ping" {
		t.Errorf("got %q", payload)
	}
}

func TestMemoryDialUnknownRoom(t *testing.T) {
	net := NewMemoryNetwork()
	if _, err := net.Dial(context.Background(), "ZZZZ"); !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("dial = %v, want connection failure", err)
	}
}

func TestMemoryRoomFreedOnClose(t *testing.T) {
	net := NewMemoryNetwork()
	ctx := context.Background()

	ln, err := net.Open(ctx, "ABCD")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ln.Close()

	// The code is reusable once the previous host is gone
	ln2, err := net.Open(ctx, "ABCD")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	ln2.Close()
}

func TestMemoryChannelFIFOAcrossClose(t *testing.T) {
	net := NewMemoryNetwork()
	ctx := context.Background()

	ln, _ := net.Open(ctx, "ABCD")
	defer ln.Close()
	dialed, err := net.Dial(ctx, "ABCD")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	accepted, _ := ln.Accept(ctx)

	for i := 0; i < 3; i++ {
		if err := dialed.Send([]byte(fmt.Sprintf("m%d", i))); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	dialed.Close()

	// In-flight payloads drain in order before the close surfaces
	for i := 0; i < 3; i++ {
		payload, err := accepted.Recv()
		if err != nil {
			t.Fatalf("recv %d: %v", i, err)
		}
		if want := fmt.Sprintf("m%d", i); string(payload) != want {
			t.Errorf("recv %d = %q, want %q", i, payload, want)
		}
	}
	if _, err := accepted.Recv(); err == nil {
		t.Fatal("recv after drain should fail")
	}
}

func TestMemoryDialRespectsContext(t *testing.T) {
	net := NewMemoryNetwork()
	ln, _ := net.Open(context.Background(), "ABCD")
	defer ln.Close()

	// Saturate the listener inbox so the next dial blocks
	for i := 0; i < 8; i++ {
		if _, err := net.Dial(context.Background(), "ABCD"); err != nil {
			t.Fatalf("warmup dial %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := net.Dial(ctx, "ABCD"); !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("blocked dial = %v, want connection failure", err)
	}
}

func TestFlakyChannelFailure(t *testing.T) {
	a, b := newChannelPair()
	flaky := NewFlakyChannel(a)

	if err := flaky.Send([]byte("ok")); err != nil {
		t.Fatalf("healthy send: %v", err)
	}
	if payload, _ := b.Recv(); string(payload) != "ok" {
		t.Errorf("got %q", payload)
	}

	flaky.SetFailing(true)
	if err := flaky.Send([]byte("lost")); err == nil {
		t.Fatal("failing send should error")
	}

	flaky.SetFailing(false)
	if err := flaky.Send([]byte("back")); err != nil {
		t.Fatalf("recovered send: %v", err)
	}
	if payload, _ := b.Recv(); string(payload) != "back" {
		t.Errorf("got %q", payload)
	}
}
